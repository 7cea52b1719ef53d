package metadata

import (
	"context"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Indexed post fields.
const (
	fieldProvince    = "province"
	fieldDistrict    = "district"
	fieldSubDistrict = "sub_district"
	fieldPostType    = "post_type"
)

// MemoryStore is an in-memory Store.
//
// Posts are addressed internally by an insertion sequence number. Equality
// filters are answered from posting lists (field -> value -> bitmap of
// sequence numbers) and index-key membership from a key -> bitmap map, so a
// query is a handful of bitmap intersections followed by an ordered scan.
type MemoryStore struct {
	mu sync.RWMutex

	images map[string]ImageRecord

	nextSeq  uint64
	posts    map[uint64]*Post
	seqByID  map[string]uint64
	all      *roaring64.Bitmap
	inverted map[string]map[string]*roaring64.Bitmap
	byKey    map[int64]*roaring64.Bitmap

	now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		images:   make(map[string]ImageRecord),
		posts:    make(map[uint64]*Post),
		seqByID:  make(map[string]uint64),
		all:      roaring64.New(),
		inverted: make(map[string]map[string]*roaring64.Bitmap),
		byKey:    make(map[int64]*roaring64.Bitmap),
		now:      time.Now,
	}
}

// InsertImage implements Store.
func (s *MemoryStore) InsertImage(ctx context.Context, rec ImageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateImage(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[rec.ImageID]; ok {
		return ErrAlreadyExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.images[rec.ImageID] = rec
	return nil
}

// GetImage implements Store.
func (s *MemoryStore) GetImage(ctx context.Context, imageID string) (ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return ImageRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.images[imageID]
	if !ok {
		return ImageRecord{}, ErrNotFound
	}
	return rec, nil
}

// DeleteImage implements Store.
func (s *MemoryStore) DeleteImage(ctx context.Context, imageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[imageID]; !ok {
		return ErrNotFound
	}
	delete(s.images, imageID)
	return nil
}

// InsertPost implements Store.
func (s *MemoryStore) InsertPost(ctx context.Context, post Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidatePost(post); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seqByID[post.ID]; ok {
		return ErrAlreadyExists
	}

	now := s.now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	s.nextSeq++
	seq := s.nextSeq
	p := clonePost(post)
	s.posts[seq] = &p
	s.seqByID[post.ID] = seq
	s.all.Add(seq)
	s.addToIndexLocked(seq, &p)
	return nil
}

// GetPost implements Store.
func (s *MemoryStore) GetPost(ctx context.Context, id string) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, ok := s.seqByID[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return clonePost(*s.posts[seq]), nil
}

// UpdatePost implements Store.
func (s *MemoryStore) UpdatePost(ctx context.Context, id string, update PostUpdate) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	if err := ValidateUpdate(update); err != nil {
		return Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.seqByID[id]
	if !ok {
		return Post{}, ErrNotFound
	}

	old := s.posts[seq]
	s.removeFromIndexLocked(seq, old)

	updated := clonePost(update.Apply(*old))
	updated.UpdatedAt = s.now().UTC()
	s.posts[seq] = &updated
	s.addToIndexLocked(seq, &updated)

	return clonePost(updated), nil
}

// DeletePost implements Store.
func (s *MemoryStore) DeletePost(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.seqByID[id]
	if !ok {
		return ErrNotFound
	}

	s.removeFromIndexLocked(seq, s.posts[seq])
	s.all.Remove(seq)
	delete(s.posts, seq)
	delete(s.seqByID, id)
	return nil
}

// FindPosts implements Store.
func (s *MemoryStore) FindPosts(ctx context.Context, q PostQuery) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.compileLocked(q)

	limit := q.limit()
	out := make([]Post, 0, min(limit, int(candidates.GetCardinality())))

	it := candidates.Iterator()
	for it.HasNext() && len(out) < limit {
		out = append(out, clonePost(*s.posts[it.Next()]))
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// compileLocked intersects the posting lists selected by q.
// Caller must hold s.mu.
func (s *MemoryStore) compileLocked(q PostQuery) *roaring64.Bitmap {
	result := s.all.Clone()

	for field, value := range map[string]string{
		fieldProvince:    q.Location.Province,
		fieldDistrict:    q.Location.District,
		fieldSubDistrict: q.Location.SubDistrict,
		fieldPostType:    q.PostType,
	} {
		if value == "" {
			continue
		}
		bm, ok := s.inverted[field][value]
		if !ok {
			return roaring64.New()
		}
		result.And(bm)
	}

	if q.IndexKeys != nil {
		withKey := roaring64.New()
		it := q.IndexKeys.Iterator()
		for it.HasNext() {
			key := it.Next()
			if key > uint64(1<<63-1) {
				continue
			}
			if bm, ok := s.byKey[int64(key)]; ok {
				withKey.Or(bm)
			}
		}
		result.And(withKey)
	}

	return result
}

// addToIndexLocked adds a post to the posting lists.
// Caller must hold s.mu.Lock().
func (s *MemoryStore) addToIndexLocked(seq uint64, p *Post) {
	for field, value := range indexedFields(p) {
		valueMap, ok := s.inverted[field]
		if !ok {
			valueMap = make(map[string]*roaring64.Bitmap)
			s.inverted[field] = valueMap
		}
		bm, ok := valueMap[value]
		if !ok {
			bm = roaring64.New()
			valueMap[value] = bm
		}
		bm.Add(seq)
	}

	if p.Image != nil {
		bm, ok := s.byKey[p.Image.IndexKey]
		if !ok {
			bm = roaring64.New()
			s.byKey[p.Image.IndexKey] = bm
		}
		bm.Add(seq)
	}
}

// removeFromIndexLocked removes a post from the posting lists.
// Caller must hold s.mu.Lock().
func (s *MemoryStore) removeFromIndexLocked(seq uint64, p *Post) {
	for field, value := range indexedFields(p) {
		valueMap, ok := s.inverted[field]
		if !ok {
			continue
		}
		bm, ok := valueMap[value]
		if !ok {
			continue
		}
		bm.Remove(seq)
		if bm.IsEmpty() {
			delete(valueMap, value)
			if len(valueMap) == 0 {
				delete(s.inverted, field)
			}
		}
	}

	if p.Image != nil {
		if bm, ok := s.byKey[p.Image.IndexKey]; ok {
			bm.Remove(seq)
			if bm.IsEmpty() {
				delete(s.byKey, p.Image.IndexKey)
			}
		}
	}
}

func indexedFields(p *Post) map[string]string {
	fields := map[string]string{fieldPostType: p.PostType}
	if p.Location != nil {
		fields[fieldProvince] = p.Location.Province
		fields[fieldDistrict] = p.Location.District
		fields[fieldSubDistrict] = p.Location.SubDistrict
	}
	return fields
}

func clonePost(p Post) Post {
	for _, f := range []**string{&p.CatName, &p.Gender, &p.Color, &p.Breed, &p.CatMarking, &p.LostDate, &p.OtherInformation} {
		if *f != nil {
			v := **f
			*f = &v
		}
	}
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	if p.Image != nil {
		ref := *p.Image
		p.Image = &ref
	}
	return p
}
