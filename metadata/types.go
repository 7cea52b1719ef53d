package metadata

import (
	"strconv"
	"time"
)

// Gender values.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Post types.
const (
	PostTypeLost     = "lost"
	PostTypeFound    = "found"
	PostTypeAdoption = "adoption"
)

// Location is an administrative address of a sighting.
type Location struct {
	Province    string `json:"province"`
	District    string `json:"district"`
	SubDistrict string `json:"sub_district"`
}

// ImageRecord is the metadata of one uploaded image.
type ImageRecord struct {
	ImageID        string    `json:"image_id"`
	StoredFilename string    `json:"stored_filename"`
	StoragePath    string    `json:"image_path"`
	IndexKey       int64     `json:"index_key"`
	CreatedAt      time.Time `json:"created_at"`
}

// Ref returns the reference a post embeds for this image.
func (r ImageRecord) Ref() ImageRef {
	return ImageRef{
		ImageID:   r.ImageID,
		IndexKey:  r.IndexKey,
		ImagePath: r.StoragePath,
	}
}

// ImageRef links a post to an image record.
type ImageRef struct {
	ImageID   string `json:"image_id"`
	IndexKey  int64  `json:"index_key"`
	ImagePath string `json:"image_path"`
}

// Post is a lost, found or adoption announcement.
type Post struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	CatName           *string   `json:"cat_name,omitempty"`
	Gender            *string   `json:"gender,omitempty"`
	Color             *string   `json:"color,omitempty"`
	Breed             *string   `json:"breed,omitempty"`
	CatMarking        *string   `json:"cat_marking,omitempty"`
	Location          *Location `json:"location,omitempty"`
	LostDate          *string   `json:"lost_date,omitempty"`
	OtherInformation  *string   `json:"other_information,omitempty"`
	EmailNotification bool      `json:"email_notification"`
	Image             *ImageRef `json:"cat_image,omitempty"`
	PostType          string    `json:"post_type"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PostUpdate is a partial update. Nil fields are left unchanged.
type PostUpdate struct {
	CatName           *string   `json:"cat_name,omitempty"`
	Gender            *string   `json:"gender,omitempty"`
	Color             *string   `json:"color,omitempty"`
	Breed             *string   `json:"breed,omitempty"`
	CatMarking        *string   `json:"cat_marking,omitempty"`
	Location          *Location `json:"location,omitempty"`
	LostDate          *string   `json:"lost_date,omitempty"`
	OtherInformation  *string   `json:"other_information,omitempty"`
	EmailNotification *bool     `json:"email_notification,omitempty"`
	Image             *ImageRef `json:"cat_image,omitempty"`
	PostType          *string   `json:"post_type,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u PostUpdate) IsEmpty() bool {
	return u.CatName == nil && u.Gender == nil && u.Color == nil && u.Breed == nil &&
		u.CatMarking == nil && u.Location == nil && u.LostDate == nil &&
		u.OtherInformation == nil && u.EmailNotification == nil && u.Image == nil &&
		u.PostType == nil
}

// Apply returns p with the non-nil fields of u applied.
func (u PostUpdate) Apply(p Post) Post {
	if u.CatName != nil {
		p.CatName = u.CatName
	}
	if u.Gender != nil {
		p.Gender = u.Gender
	}
	if u.Color != nil {
		p.Color = u.Color
	}
	if u.Breed != nil {
		p.Breed = u.Breed
	}
	if u.CatMarking != nil {
		p.CatMarking = u.CatMarking
	}
	if u.Location != nil {
		loc := *u.Location
		p.Location = &loc
	}
	if u.LostDate != nil {
		p.LostDate = u.LostDate
	}
	if u.OtherInformation != nil {
		p.OtherInformation = u.OtherInformation
	}
	if u.EmailNotification != nil {
		p.EmailNotification = *u.EmailNotification
	}
	if u.Image != nil {
		ref := *u.Image
		p.Image = &ref
	}
	if u.PostType != nil {
		p.PostType = *u.PostType
	}
	return p
}

// LocationFilter holds equality constraints. Empty fields are unconstrained.
type LocationFilter struct {
	Province    string
	District    string
	SubDistrict string
}

// IsEmpty reports whether no location field is constrained.
func (f LocationFilter) IsEmpty() bool {
	return f.Province == "" && f.District == "" && f.SubDistrict == ""
}

// Matches reports whether loc satisfies every constrained field.
func (f LocationFilter) Matches(loc *Location) bool {
	if f.IsEmpty() {
		return true
	}
	if loc == nil {
		return false
	}
	return (f.Province == "" || f.Province == loc.Province) &&
		(f.District == "" || f.District == loc.District) &&
		(f.SubDistrict == "" || f.SubDistrict == loc.SubDistrict)
}

// IndexKeyFromImageID parses the decimal image id back into its index key.
func IndexKeyFromImageID(imageID string) (int64, error) {
	return strconv.ParseInt(imageID, 10, 64)
}

// ImageIDFromIndexKey formats an index key as image id.
func ImageIDFromIndexKey(key int64) string {
	return strconv.FormatInt(key, 10)
}
