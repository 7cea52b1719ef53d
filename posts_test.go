package findmymeow

import (
	"context"
	"testing"

	"github.com/hupe1980/findmymeow/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newPost(postType string) metadata.Post {
	return metadata.Post{
		UserID:   "user-1",
		CatName:  ptr("Mochi"),
		Gender:   ptr(metadata.GenderFemale),
		Location: bangkok(),
		LostDate: ptr("2024-03-01"),
		PostType: postType,
	}
}

func TestCreatePost_WithImage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.svc.CreatePost(ctx, newPost(metadata.PostTypeLost), &ImageUpload{Filename: "mochi.jpg", Data: jpeg(1)})
	require.NoError(t, err)

	assert.Equal(t, "1", p.ID)
	require.NotNil(t, p.Image)
	assert.Equal(t, int64(1), p.Image.IndexKey)
	assert.False(t, p.CreatedAt.IsZero())
	assert.True(t, h.idx.Contains(p.Image.IndexKey))

	resp, err := h.svc.Search(ctx, SearchRequest{Image: jpeg(3), Province: "Bangkok"})
	require.NoError(t, err)
	assert.Equal(t, ProvenanceImageAndLocation, resp.Provenance)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, p.ID, resp.Posts[0].ID)
}

func TestCreatePost_WithoutImage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.svc.CreatePost(ctx, newPost(metadata.PostTypeFound), nil)
	require.NoError(t, err)
	assert.Nil(t, p.Image)
	assert.Zero(t, h.idx.Len())

	got, err := h.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mochi", *got.CatName)
}

func TestCreatePost_InvalidUploadsNothing(t *testing.T) {
	h := newHarness(t)

	bad := newPost("stray")
	_, err := h.svc.CreatePost(context.Background(), bad, &ImageUpload{Filename: "x.jpg", Data: jpeg(1)})
	require.ErrorIs(t, err, ErrValidation)

	bad = newPost(metadata.PostTypeLost)
	bad.Location = &metadata.Location{Province: "Bangkok"}
	_, err = h.svc.CreatePost(context.Background(), bad, nil)
	require.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, h.embedCall.Load())
	assert.Zero(t, h.idCalls.Load())
	assert.Empty(t, h.imageBlobs(t))
}

func TestCreatePost_InsertFailureDeletesImage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.meta.failInsertPost = true

	_, err := h.svc.CreatePost(ctx, newPost(metadata.PostTypeLost), &ImageUpload{Filename: "x.jpg", Data: jpeg(1)})
	require.ErrorIs(t, err, ErrStorageUnavailable)

	assert.Zero(t, h.idx.Len())
	assert.Empty(t, h.imageBlobs(t))

	_, err = h.svc.GetImage(ctx, "1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListPosts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for _, typ := range []string{metadata.PostTypeLost, metadata.PostTypeFound, metadata.PostTypeLost} {
		_, err := h.svc.CreatePost(ctx, newPost(typ), nil)
		require.NoError(t, err)
	}

	lost, err := h.svc.ListPosts(ctx, metadata.PostTypeLost)
	require.NoError(t, err)
	assert.Len(t, lost, 2)

	all, err := h.svc.ListPosts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.svc.CreatePost(ctx, newPost(metadata.PostTypeLost), nil)
	require.NoError(t, err)

	_, err = h.svc.UpdatePost(ctx, p.ID, metadata.PostUpdate{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.UpdatePost(ctx, p.ID, metadata.PostUpdate{Gender: ptr("unknown")})
	require.ErrorIs(t, err, ErrValidation)

	updated, err := h.svc.UpdatePost(ctx, p.ID, metadata.PostUpdate{
		PostType: ptr(metadata.PostTypeFound),
		Color:    ptr("calico"),
	})
	require.NoError(t, err)
	assert.Equal(t, metadata.PostTypeFound, updated.PostType)
	assert.Equal(t, "calico", *updated.Color)
	assert.Equal(t, "Mochi", *updated.CatName)

	_, err = h.svc.UpdatePost(ctx, "404", metadata.PostUpdate{Color: ptr("black")})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePost_RemovesImage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.svc.CreatePost(ctx, newPost(metadata.PostTypeLost), &ImageUpload{Filename: "x.jpg", Data: jpeg(4)})
	require.NoError(t, err)

	require.NoError(t, h.svc.DeletePost(ctx, p.ID))

	_, err = h.svc.GetPost(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = h.svc.GetImage(ctx, p.Image.ImageID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, h.idx.Len())
	assert.Empty(t, h.imageBlobs(t))

	require.ErrorIs(t, h.svc.DeletePost(ctx, p.ID), ErrNotFound)
}

func TestDeletePost_ImageAlreadyGone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.svc.CreatePost(ctx, newPost(metadata.PostTypeLost), &ImageUpload{Filename: "x.jpg", Data: jpeg(1)})
	require.NoError(t, err)

	_, err = h.svc.DeleteImage(ctx, p.Image.ImageID)
	require.NoError(t, err)

	require.NoError(t, h.svc.DeletePost(ctx, p.ID))
}
