package findmymeow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/findmymeow/embedding"
	"github.com/hupe1980/findmymeow/idalloc"
	"github.com/hupe1980/findmymeow/indexstore"
	"github.com/hupe1980/findmymeow/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index store is required")
	assert.Contains(t, err.Error(), "embedding provider is required")
}

func TestUploadImage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec, err := h.svc.UploadImage(ctx, "Garfield.PNG", jpeg(4))
	require.NoError(t, err)

	assert.Equal(t, int64(1), rec.IndexKey)
	assert.Equal(t, "1", rec.ImageID)
	assert.True(t, strings.HasPrefix(rec.StoredFilename, "findmymeow_"))
	assert.True(t, strings.HasSuffix(rec.StoredFilename, ".png"))
	assert.Equal(t, "mem://"+DefaultImagePrefix+rec.StoredFilename, rec.StoragePath)

	assert.True(t, h.idx.Contains(1))
	assert.Equal(t, 2, h.idx.Len())
	assert.Equal(t, []string{DefaultImagePrefix + rec.StoredFilename}, h.imageBlobs(t))

	got, err := h.svc.GetImage(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, rec.StoredFilename, got.StoredFilename)
	assert.Equal(t, rec.IndexKey, got.IndexKey)

	// The snapshot was published before UploadImage returned.
	exists, err := h.mem.List(ctx, indexstore.DefaultSnapshotKey)
	require.NoError(t, err)
	assert.Len(t, exists, 1)
}

func TestUploadImage_KeysAreUnique(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	a, err := h.svc.UploadImage(ctx, "a.jpg", jpeg(1))
	require.NoError(t, err)
	b, err := h.svc.UploadImage(ctx, "b.jpg", jpeg(2))
	require.NoError(t, err)

	assert.NotEqual(t, a.IndexKey, b.IndexKey)
	assert.NotEqual(t, a.StoredFilename, b.StoredFilename)
}

func TestUploadImage_NoSubjectWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.UploadImage(ctx, "dog.jpg", jpeg(42))
	require.ErrorIs(t, err, ErrNoSubjectDetected)

	assert.Zero(t, h.idCalls.Load())
	assert.Zero(t, h.blobs.calls.Load())
	assert.Zero(t, h.meta.calls.Load())
	assert.Zero(t, h.idx.Len())
}

func TestUploadImage_DimensionMismatchBeforeAllocation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.UploadImage(context.Background(), "cat.jpg", jpeg(9))

	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, testDim, dm.Expected)
	assert.Equal(t, 3, dm.Actual)
	assert.Zero(t, h.idCalls.Load())
	assert.Empty(t, h.imageBlobs(t))
}

func TestUploadImage_EmptyImage(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.UploadImage(context.Background(), "cat.jpg", nil)
	require.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, h.embedCall.Load())
}

func TestUploadImage_EmbedTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	slow := embedding.Func(func(ctx context.Context, _ []byte) ([][]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	svc, err := New(Dependencies{
		Index:    h.idx,
		Blobs:    h.blobs,
		Metadata: h.meta,
		IDs:      h.ids,
		Embedder: slow,
	}, WithEmbedTimeout(10*time.Millisecond))
	require.NoError(t, err)

	_, err = svc.UploadImage(ctx, "cat.jpg", jpeg(1))
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Zero(t, h.idx.Len())
	assert.Empty(t, h.imageBlobs(t))
}

func TestUploadImage_EmbedFailure(t *testing.T) {
	h := newHarness(t)

	broken := embedding.Func(func(context.Context, []byte) ([][]float32, error) {
		return nil, errInjected
	})
	svc, err := New(Dependencies{
		Index:    h.idx,
		Blobs:    h.blobs,
		Metadata: h.meta,
		IDs:      h.ids,
		Embedder: broken,
	})
	require.NoError(t, err)

	_, err = svc.UploadImage(context.Background(), "cat.jpg", jpeg(1))
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	require.ErrorIs(t, err, errInjected)
}

func TestUploadImage_AllocatorUnavailable(t *testing.T) {
	h := newHarness(t)

	down := idalloc.Func(func(context.Context, string) (int64, error) {
		return 0, idalloc.ErrStorageUnavailable
	})
	svc, err := New(Dependencies{
		Index:    h.idx,
		Blobs:    h.blobs,
		Metadata: h.meta,
		IDs:      down,
		Embedder: fakeEmbedder(nil),
	})
	require.NoError(t, err)

	_, err = svc.UploadImage(context.Background(), "cat.jpg", jpeg(1))
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Empty(t, h.imageBlobs(t))
	assert.Zero(t, h.idx.Len())
}

func TestUploadImage_BlobFailureAbortsBeforeIndex(t *testing.T) {
	h := newHarness(t)
	h.blobs.failPut.Store(true)

	_, err := h.svc.UploadImage(context.Background(), "cat.jpg", jpeg(1))
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Zero(t, h.idx.Len())
	assert.Zero(t, h.meta.calls.Load())
}

func TestUploadImage_PersistFailureCompensates(t *testing.T) {
	h := newHarness(t)
	h.blobs.failRename.Store(true)

	_, err := h.svc.UploadImage(context.Background(), "cat.jpg", jpeg(1))
	require.ErrorIs(t, err, ErrPersistFailure)

	assert.False(t, h.idx.Contains(1))
	assert.Empty(t, h.imageBlobs(t))
	assert.Zero(t, h.meta.calls.Load())
}

func TestUploadImage_MetadataFailureCompensates(t *testing.T) {
	h := newHarness(t)
	h.meta.failInsertImage = true

	_, err := h.svc.UploadImage(context.Background(), "cat.jpg", jpeg(4))
	require.ErrorIs(t, err, ErrStorageUnavailable)

	assert.False(t, h.idx.Contains(1))
	assert.Zero(t, h.idx.Len())
	assert.Empty(t, h.imageBlobs(t))

	// The key is burned, the next upload gets a fresh one.
	h.meta.failInsertImage = false
	rec, err := h.svc.UploadImage(context.Background(), "cat.jpg", jpeg(4))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.IndexKey)
}

func TestDeleteImage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec, err := h.svc.UploadImage(ctx, "cat.jpg", jpeg(4))
	require.NoError(t, err)

	removed, err := h.svc.DeleteImage(ctx, rec.ImageID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.False(t, h.idx.Contains(rec.IndexKey))
	assert.Empty(t, h.imageBlobs(t))

	_, err = h.svc.GetImage(ctx, rec.ImageID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = h.svc.DeleteImage(ctx, rec.ImageID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteImage_BlobFailureTouchesNothingElse(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec, err := h.svc.UploadImage(ctx, "cat.jpg", jpeg(1))
	require.NoError(t, err)

	h.blobs.failDelete.Store(true)
	_, err = h.svc.DeleteImage(ctx, rec.ImageID)
	require.ErrorIs(t, err, ErrStorageUnavailable)

	assert.True(t, h.idx.Contains(rec.IndexKey))
	_, err = h.svc.GetImage(ctx, rec.ImageID)
	require.NoError(t, err)
}

func TestDeleteImage_PersistFailureKeepsRecordForRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec, err := h.svc.UploadImage(ctx, "cat.jpg", jpeg(4))
	require.NoError(t, err)

	h.blobs.failRename.Store(true)
	_, err = h.svc.DeleteImage(ctx, rec.ImageID)
	require.ErrorIs(t, err, ErrPersistFailure)

	_, err = h.svc.GetImage(ctx, rec.ImageID)
	require.NoError(t, err, "record stays so the delete can be retried")

	h.blobs.failRename.Store(false)
	removed, err := h.svc.DeleteImage(ctx, rec.ImageID)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = h.svc.GetImage(ctx, rec.ImageID)
	require.ErrorIs(t, err, ErrNotFound)

	reloaded, err := indexstore.New(h.mem, func(o *indexstore.Options) { o.Dimension = testDim })
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(ctx))
	assert.False(t, reloaded.Contains(rec.IndexKey), "snapshot must not keep the deleted image")
	assert.Zero(t, reloaded.Len())
}

func TestDeleteImage_MissingIndexEntryIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.meta.Store.InsertImage(ctx, metadata.ImageRecord{
		ImageID:        "5",
		StoredFilename: "findmymeow_x.jpg",
		IndexKey:       5,
	}))

	removed, err := h.svc.DeleteImage(ctx, "5")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestUploadImage_Metrics(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}
	h := newHarness(t, WithMetricsCollector(mc))

	_, err := h.svc.UploadImage(ctx, "cat.jpg", jpeg(4))
	require.NoError(t, err)
	_, err = h.svc.UploadImage(ctx, "dog.jpg", jpeg(42))
	require.Error(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.IngestCount)
	assert.Equal(t, int64(1), stats.IngestErrors)
	assert.Equal(t, int64(2), stats.IngestVectors)
	assert.Equal(t, int64(1), stats.PersistCount)
	assert.Positive(t, stats.PersistBytes)
}

func TestStoredFilename(t *testing.T) {
	tests := []struct {
		in  string
		ext string
	}{
		{"cat.jpg", ".jpg"},
		{"CAT.JPEG", ".jpeg"},
		{"noext", ".jpg"},
		{"dir/evil.png", ".png"},
		{"", ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := storedFilename(tt.in)
			assert.True(t, strings.HasPrefix(got, "findmymeow_"), got)
			assert.True(t, strings.HasSuffix(got, tt.ext), got)
			assert.NotContains(t, got, "/")
		})
	}
}
