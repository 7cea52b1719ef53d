package findmymeow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/findmymeow/blobstore"
	"github.com/hupe1980/findmymeow/embedding"
	"github.com/hupe1980/findmymeow/idalloc"
	"github.com/hupe1980/findmymeow/indexstore"
	"github.com/hupe1980/findmymeow/metadata"
	"github.com/hupe1980/findmymeow/testutil"
	"github.com/stretchr/testify/require"
)

const testDim = 4

var errInjected = errors.New("injected failure")

// catVectors maps the tag byte of testutil.JPEGBytes to detected cats.
var catVectors = map[byte][][]float32{
	1: {{1, 0, 0, 0}},
	2: {{0, 1, 0, 0}},
	3: {{0.9, 0.1, 0, 0}},
	4: {{0, 0, 1, 0}, {0, 0, 0, 1}},
	9: {{1, 0, 0}},
}

func fakeEmbedder(calls *atomic.Int64) embedding.Provider {
	return embedding.Func(func(ctx context.Context, image []byte) ([][]float32, error) {
		if calls != nil {
			calls.Add(1)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(image) < 5 {
			return nil, nil
		}
		return catVectors[image[4]], nil
	})
}

// recordingMetadata counts calls and fails selected operations.
type recordingMetadata struct {
	metadata.Store
	calls           atomic.Int64
	failInsertImage bool
	failInsertPost  bool
	failFindPosts   bool

	mu               sync.Mutex
	findPostsQueries []metadata.PostQuery
}

func (r *recordingMetadata) InsertImage(ctx context.Context, rec metadata.ImageRecord) error {
	r.calls.Add(1)
	if r.failInsertImage {
		return metadata.ErrUnavailable
	}
	return r.Store.InsertImage(ctx, rec)
}

func (r *recordingMetadata) GetImage(ctx context.Context, id string) (metadata.ImageRecord, error) {
	r.calls.Add(1)
	return r.Store.GetImage(ctx, id)
}

func (r *recordingMetadata) InsertPost(ctx context.Context, p metadata.Post) error {
	r.calls.Add(1)
	if r.failInsertPost {
		return metadata.ErrUnavailable
	}
	return r.Store.InsertPost(ctx, p)
}

func (r *recordingMetadata) FindPosts(ctx context.Context, q metadata.PostQuery) ([]metadata.Post, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.findPostsQueries = append(r.findPostsQueries, q)
	r.mu.Unlock()
	if r.failFindPosts {
		return nil, metadata.ErrUnavailable
	}
	return r.Store.FindPosts(ctx, q)
}

// flakyBlobs fails Rename (snapshot publish), Put (image upload) or Delete
// on demand.
type flakyBlobs struct {
	blobstore.BlobStore
	calls      atomic.Int64
	failRename atomic.Bool
	failPut    atomic.Bool
	failDelete atomic.Bool
}

func (f *flakyBlobs) Put(ctx context.Context, name string, data []byte) error {
	f.calls.Add(1)
	if f.failPut.Load() {
		return errors.Join(blobstore.ErrUnavailable, errInjected)
	}
	return f.BlobStore.Put(ctx, name, data)
}

func (f *flakyBlobs) Delete(ctx context.Context, name string) error {
	if f.failDelete.Load() {
		return errors.Join(blobstore.ErrUnavailable, errInjected)
	}
	return f.BlobStore.Delete(ctx, name)
}

func (f *flakyBlobs) Rename(ctx context.Context, src, dst string) error {
	if f.failRename.Load() {
		return errInjected
	}
	return f.BlobStore.Rename(ctx, src, dst)
}

type harness struct {
	svc       *Service
	idx       *indexstore.Store
	blobs     *flakyBlobs
	mem       *blobstore.MemoryStore
	meta      *recordingMetadata
	ids       *idalloc.Memory
	idCalls   *atomic.Int64
	embedCall *atomic.Int64
}

func newHarness(t *testing.T, optFns ...Option) *harness {
	t.Helper()

	h := &harness{
		mem:       blobstore.NewMemoryStore(),
		meta:      &recordingMetadata{Store: metadata.NewMemoryStore()},
		ids:       idalloc.NewMemory(),
		idCalls:   new(atomic.Int64),
		embedCall: new(atomic.Int64),
	}
	h.blobs = &flakyBlobs{BlobStore: h.mem}

	idx, err := indexstore.New(h.blobs, func(o *indexstore.Options) {
		o.Dimension = testDim
	})
	require.NoError(t, err)
	require.NoError(t, idx.Load(context.Background()))
	h.idx = idx

	ids := idalloc.Func(func(ctx context.Context, ns string) (int64, error) {
		h.idCalls.Add(1)
		return h.ids.NextID(ctx, ns)
	})

	h.svc, err = New(Dependencies{
		Index:    idx,
		Blobs:    h.blobs,
		Metadata: h.meta,
		IDs:      ids,
		Embedder: fakeEmbedder(h.embedCall),
	}, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.svc.Close() })

	return h
}

// imageBlobs lists the uploaded image blobs.
func (h *harness) imageBlobs(t *testing.T) []string {
	t.Helper()
	names, err := h.mem.List(context.Background(), DefaultImagePrefix)
	require.NoError(t, err)
	return names
}

// seedPost inserts a post with an image reference and indexes the vectors
// of the cat tagged tag under key.
func (h *harness) seedPost(t *testing.T, id string, key int64, tag byte, loc *metadata.Location) {
	t.Helper()
	h.seedPostVectors(t, id, key, catVectors[tag], loc)
}

func (h *harness) seedPostVectors(t *testing.T, id string, key int64, vectors [][]float32, loc *metadata.Location) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, h.idx.Add(ctx, key, vectors))
	require.NoError(t, h.meta.Store.InsertPost(ctx, metadata.Post{
		ID:       id,
		UserID:   "user-1",
		PostType: metadata.PostTypeLost,
		Location: loc,
		Image: &metadata.ImageRef{
			ImageID:   metadata.ImageIDFromIndexKey(key),
			IndexKey:  key,
			ImagePath: "mem://images/" + id,
		},
	}))
}

func jpeg(tag byte) []byte { return testutil.JPEGBytes(tag) }

func bangkok() *metadata.Location {
	return &metadata.Location{Province: "Bangkok", District: "Pathum Wan", SubDistrict: "Lumphini"}
}
