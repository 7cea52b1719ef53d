package metadata

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation matches every ValidationError.
var ErrValidation = errors.New("metadata: validation failed")

// ValidationError describes a rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("metadata: invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ValidateImage checks an image record before insertion.
func ValidateImage(rec ImageRecord) error {
	if rec.ImageID == "" {
		return invalid("image_id", "must not be empty")
	}
	if rec.IndexKey < 0 {
		return invalid("index_key", "must not be negative")
	}
	if rec.StoredFilename == "" {
		return invalid("stored_filename", "must not be empty")
	}
	return nil
}

// ValidatePost checks a post before insertion.
func ValidatePost(p Post) error {
	if p.ID == "" {
		return invalid("id", "must not be empty")
	}
	if p.UserID == "" {
		return invalid("user_id", "must not be empty")
	}
	if err := validatePostType(p.PostType); err != nil {
		return err
	}
	return validateCommon(p.Gender, p.Location, p.LostDate)
}

// ValidateUpdate checks a partial update.
func ValidateUpdate(u PostUpdate) error {
	if u.IsEmpty() {
		return invalid("update", "no fields to update")
	}
	if u.PostType != nil {
		if err := validatePostType(*u.PostType); err != nil {
			return err
		}
	}
	return validateCommon(u.Gender, u.Location, u.LostDate)
}

func validatePostType(t string) error {
	switch t {
	case PostTypeLost, PostTypeFound, PostTypeAdoption:
		return nil
	case "":
		return invalid("post_type", "must not be empty")
	default:
		return invalid("post_type", fmt.Sprintf("%q is not one of lost, found, adoption", t))
	}
}

func validateCommon(gender *string, loc *Location, lostDate *string) error {
	if gender != nil && *gender != GenderMale && *gender != GenderFemale {
		return invalid("gender", fmt.Sprintf("%q is not one of male, female", *gender))
	}
	if loc != nil && (loc.Province == "" || loc.District == "" || loc.SubDistrict == "") {
		return invalid("location", "province, district and sub_district are required")
	}
	if lostDate != nil {
		if _, err := ParseDate(*lostDate); err != nil {
			return invalid("lost_date", err.Error())
		}
	}
	return nil
}

// ParseDate accepts RFC 3339 timestamps and plain ISO dates.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	return t, nil
}
