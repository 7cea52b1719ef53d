package metadata

import (
	"context"
	"errors"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// DefaultLimit caps FindPosts when PostQuery.Limit is not positive.
const DefaultLimit = 100

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("metadata: not found")

	// ErrAlreadyExists is returned when inserting a duplicate id.
	ErrAlreadyExists = errors.New("metadata: already exists")

	// ErrUnavailable wraps failures of the underlying database.
	ErrUnavailable = errors.New("metadata: store unavailable")
)

// PostQuery selects posts. All present constraints are combined with AND.
type PostQuery struct {
	Location LocationFilter

	// IndexKeys restricts results to posts whose image index key is in the
	// set. Nil means unconstrained; an empty bitmap matches nothing.
	IndexKeys *roaring64.Bitmap

	PostType string
	Limit    int
}

func (q PostQuery) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Matches reports whether p satisfies q.
func (q PostQuery) Matches(p *Post) bool {
	if q.PostType != "" && p.PostType != q.PostType {
		return false
	}
	if !q.Location.Matches(p.Location) {
		return false
	}
	if q.IndexKeys != nil {
		if p.Image == nil || p.Image.IndexKey < 0 || !q.IndexKeys.Contains(uint64(p.Image.IndexKey)) {
			return false
		}
	}
	return true
}

// Store persists image and post documents.
//
// Implementations must be safe for concurrent use. Records are validated at
// this boundary; invalid input yields an error matching ErrValidation.
type Store interface {
	InsertImage(ctx context.Context, rec ImageRecord) error
	GetImage(ctx context.Context, imageID string) (ImageRecord, error)
	DeleteImage(ctx context.Context, imageID string) error

	InsertPost(ctx context.Context, post Post) error
	GetPost(ctx context.Context, id string) (Post, error)
	UpdatePost(ctx context.Context, id string, update PostUpdate) (Post, error)
	DeletePost(ctx context.Context, id string) error

	// FindPosts returns matching posts in insertion order, at most
	// q.Limit (DefaultLimit if unset).
	FindPosts(ctx context.Context, q PostQuery) ([]Post, error)

	Close() error
}
