package findmymeow

import (
	"errors"
	"fmt"

	"github.com/hupe1980/findmymeow/blobstore"
	"github.com/hupe1980/findmymeow/embedding"
	"github.com/hupe1980/findmymeow/idalloc"
	"github.com/hupe1980/findmymeow/index"
	"github.com/hupe1980/findmymeow/indexstore"
	"github.com/hupe1980/findmymeow/metadata"
	"github.com/hupe1980/findmymeow/persistence"
)

var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyQuery is returned when a search has neither image nor location.
	// It matches ErrValidation.
	ErrEmptyQuery = fmt.Errorf("%w: at least one of image, province, district or sub_district is required", ErrValidation)

	// ErrNotFound is returned when an image or post does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoMatches is returned when a search yields no posts.
	ErrNoMatches = errors.New("no matching posts")

	// ErrNoSubjectDetected is returned when the embedding provider finds no
	// cat in an image.
	ErrNoSubjectDetected = errors.New("no cat detected in image")

	// ErrEmbeddingUnavailable is returned when the embedding provider fails
	// or times out.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrStorageUnavailable is returned when blob, metadata or counter
	// storage cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrPersistFailure is returned when the index snapshot could not be
	// published after a mutation.
	ErrPersistFailure = errors.New("index persist failed")

	// ErrCorruptSnapshot is returned when the persisted index does not decode.
	ErrCorruptSnapshot = errors.New("corrupt index snapshot")
)

// ErrDimensionMismatch indicates a vector dimensionality mismatch.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// translateError maps errors of the subpackages onto the public taxonomy.
// The original error stays in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{
		ErrValidation, ErrNotFound, ErrNoMatches, ErrNoSubjectDetected,
		ErrEmbeddingUnavailable, ErrStorageUnavailable, ErrPersistFailure, ErrCorruptSnapshot,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var rootDM *ErrDimensionMismatch
	if errors.As(err, &rootDM) {
		return err
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	switch {
	case errors.Is(err, metadata.ErrValidation),
		errors.Is(err, index.ErrInvalidK),
		errors.Is(err, index.ErrInvalidKey),
		errors.Is(err, index.ErrEmptyBatch):
		return fmt.Errorf("%w: %w", ErrValidation, err)

	case errors.Is(err, metadata.ErrNotFound),
		errors.Is(err, blobstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)

	case errors.Is(err, indexstore.ErrPersistFailure):
		return fmt.Errorf("%w: %w", ErrPersistFailure, err)

	case errors.Is(err, persistence.ErrCorruptSnapshot):
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)

	case errors.Is(err, embedding.ErrTimeout):
		return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)

	case errors.Is(err, idalloc.ErrStorageUnavailable),
		errors.Is(err, metadata.ErrUnavailable),
		errors.Is(err, blobstore.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return err
}
