// Package metadatatest provides a conformance suite for metadata.Store
// implementations.
package metadatatest

import (
	"context"
	"strconv"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/findmymeow/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newPost(id int, postType string, loc *metadata.Location, key int64) metadata.Post {
	p := metadata.Post{
		ID:       strconv.Itoa(id),
		UserID:   "user-1",
		PostType: postType,
		Location: loc,
	}
	if key > 0 {
		p.Image = &metadata.ImageRef{ImageID: strconv.FormatInt(key, 10), IndexKey: key, ImagePath: "mem://x.jpg"}
	}
	return p
}

var (
	bangkok = &metadata.Location{Province: "Bangkok", District: "Bang Rak", SubDistrict: "Silom"}
	chiang  = &metadata.Location{Province: "Chiang Mai", District: "Mueang", SubDistrict: "Si Phum"}
)

// RunStoreConformance exercises the Store contract against fresh stores.
func RunStoreConformance(t *testing.T, newStore func(t *testing.T) metadata.Store) {
	ctx := context.Background()

	t.Run("Images", func(t *testing.T) {
		s := newStore(t)

		rec := metadata.ImageRecord{ImageID: "7", StoredFilename: "findmymeow_a.jpg", StoragePath: "mem://findmymeow_a.jpg", IndexKey: 7}
		require.NoError(t, s.InsertImage(ctx, rec))
		assert.ErrorIs(t, s.InsertImage(ctx, rec), metadata.ErrAlreadyExists)

		got, err := s.GetImage(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, rec.StoragePath, got.StoragePath)
		assert.Equal(t, int64(7), got.IndexKey)
		assert.False(t, got.CreatedAt.IsZero())

		require.NoError(t, s.DeleteImage(ctx, "7"))
		_, err = s.GetImage(ctx, "7")
		assert.ErrorIs(t, err, metadata.ErrNotFound)
		assert.ErrorIs(t, s.DeleteImage(ctx, "7"), metadata.ErrNotFound)
	})

	t.Run("InvalidImage", func(t *testing.T) {
		s := newStore(t)
		err := s.InsertImage(ctx, metadata.ImageRecord{ImageID: "1", IndexKey: -1, StoredFilename: "x"})
		assert.ErrorIs(t, err, metadata.ErrValidation)
	})

	t.Run("PostLifecycle", func(t *testing.T) {
		s := newStore(t)

		p := newPost(1, metadata.PostTypeLost, bangkok, 3)
		p.CatName = ptr("Mochi")
		p.Gender = ptr(metadata.GenderFemale)
		p.LostDate = ptr("2024-05-01")
		require.NoError(t, s.InsertPost(ctx, p))
		assert.ErrorIs(t, s.InsertPost(ctx, p), metadata.ErrAlreadyExists)

		got, err := s.GetPost(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Mochi", *got.CatName)
		require.NotNil(t, got.Image)
		assert.Equal(t, int64(3), got.Image.IndexKey)
		assert.Equal(t, *bangkok, *got.Location)

		updated, err := s.UpdatePost(ctx, "1", metadata.PostUpdate{Color: ptr("orange"), PostType: ptr(metadata.PostTypeFound)})
		require.NoError(t, err)
		assert.Equal(t, "orange", *updated.Color)
		assert.Equal(t, "Mochi", *updated.CatName, "untouched fields survive")
		assert.Equal(t, metadata.PostTypeFound, updated.PostType)

		found, err := s.FindPosts(ctx, metadata.PostQuery{PostType: metadata.PostTypeFound})
		require.NoError(t, err)
		require.Len(t, found, 1)

		lost, err := s.FindPosts(ctx, metadata.PostQuery{PostType: metadata.PostTypeLost})
		require.NoError(t, err)
		assert.Empty(t, lost)

		_, err = s.UpdatePost(ctx, "1", metadata.PostUpdate{})
		assert.ErrorIs(t, err, metadata.ErrValidation)
		_, err = s.UpdatePost(ctx, "404", metadata.PostUpdate{Color: ptr("black")})
		assert.ErrorIs(t, err, metadata.ErrNotFound)

		require.NoError(t, s.DeletePost(ctx, "1"))
		_, err = s.GetPost(ctx, "1")
		assert.ErrorIs(t, err, metadata.ErrNotFound)
		assert.ErrorIs(t, s.DeletePost(ctx, "1"), metadata.ErrNotFound)
	})

	t.Run("FindPosts", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.InsertPost(ctx, newPost(1, metadata.PostTypeLost, bangkok, 3)))
		require.NoError(t, s.InsertPost(ctx, newPost(2, metadata.PostTypeFound, chiang, 7)))
		require.NoError(t, s.InsertPost(ctx, newPost(3, metadata.PostTypeLost, bangkok, 0)))
		require.NoError(t, s.InsertPost(ctx, newPost(4, metadata.PostTypeLost, bangkok, 9)))

		ids := func(posts []metadata.Post) []string {
			out := make([]string, 0, len(posts))
			for _, p := range posts {
				out = append(out, p.ID)
			}
			return out
		}

		got, err := s.FindPosts(ctx, metadata.PostQuery{Location: metadata.LocationFilter{Province: "Bangkok"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "3", "4"}, ids(got))

		got, err = s.FindPosts(ctx, metadata.PostQuery{IndexKeys: roaring64.BitmapOf(7, 9, 100)})
		require.NoError(t, err)
		assert.Equal(t, []string{"2", "4"}, ids(got))

		got, err = s.FindPosts(ctx, metadata.PostQuery{
			Location:  metadata.LocationFilter{Province: "Bangkok", SubDistrict: "Silom"},
			IndexKeys: roaring64.BitmapOf(7, 9),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"4"}, ids(got))

		got, err = s.FindPosts(ctx, metadata.PostQuery{
			Location:  metadata.LocationFilter{Province: "Chiang Mai"},
			IndexKeys: roaring64.BitmapOf(3),
		})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.FindPosts(ctx, metadata.PostQuery{IndexKeys: roaring64.New()})
		require.NoError(t, err)
		assert.Empty(t, got, "empty key set matches nothing")

		got, err = s.FindPosts(ctx, metadata.PostQuery{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, ids(got))

		got, err = s.FindPosts(ctx, metadata.PostQuery{Location: metadata.LocationFilter{District: "Nowhere"}})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("InvalidPost", func(t *testing.T) {
		s := newStore(t)

		p := newPost(1, "missing", nil, 0)
		assert.ErrorIs(t, s.InsertPost(ctx, p), metadata.ErrValidation)

		p = newPost(1, metadata.PostTypeLost, &metadata.Location{Province: "Bangkok"}, 0)
		assert.ErrorIs(t, s.InsertPost(ctx, p), metadata.ErrValidation)
	})

	t.Run("ReturnedPostsAreCopies", func(t *testing.T) {
		s := newStore(t)
		p := newPost(1, metadata.PostTypeLost, bangkok, 3)
		p.CatName = ptr("Mochi")
		require.NoError(t, s.InsertPost(ctx, p))

		got, err := s.GetPost(ctx, "1")
		require.NoError(t, err)
		*got.CatName = "Changed"
		got.Location.Province = "Changed"

		again, err := s.GetPost(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Mochi", *again.CatName)
		assert.Equal(t, "Bangkok", again.Location.Province)
	})
}
