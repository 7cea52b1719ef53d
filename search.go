package findmymeow

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/findmymeow/index"
	"github.com/hupe1980/findmymeow/metadata"
)

// Provenance tells which criteria produced a search result.
type Provenance string

// Provenance tags.
const (
	ProvenanceLocation             Provenance = "location"
	ProvenanceImage                Provenance = "image"
	ProvenanceImageAndLocation     Provenance = "image and location"
	ProvenanceImageLocationIgnored Provenance = "image (location ignored)"
)

// SearchRequest is a combined image and location query. At least one of
// Image, Province, District or SubDistrict must be set.
type SearchRequest struct {
	Image       []byte
	Province    string
	District    string
	SubDistrict string

	// TopK caps the number of posts. Zero means DefaultTopK.
	TopK int
}

func (r SearchRequest) location() metadata.LocationFilter {
	return metadata.LocationFilter{
		Province:    strings.TrimSpace(r.Province),
		District:    strings.TrimSpace(r.District),
		SubDistrict: strings.TrimSpace(r.SubDistrict),
	}
}

// SearchResponse holds the matched posts. Message carries the provenance
// tag for clients that only read the message.
type SearchResponse struct {
	Message    string          `json:"message"`
	Provenance Provenance      `json:"-"`
	Posts      []metadata.Post `json:"posts"`
}

// Search finds posts by image similarity, location or both.
//
// Image matches are ranked by the distance of their closest vector. When an
// image and a location are given but no post satisfies both, the location
// is dropped and the result is tagged ProvenanceImageLocationIgnored. If the
// image matches nothing in the index, the location alone is queried and the
// result is tagged ProvenanceLocation. A search without results fails with
// ErrNoMatches.
func (s *Service) Search(ctx context.Context, req SearchRequest) (resp SearchResponse, err error) {
	start := time.Now()
	topK := req.TopK
	defer func() {
		s.logger.LogSearch(ctx, resp.Provenance, topK, len(resp.Posts), err)
		s.metrics.RecordSearch(topK, len(resp.Posts), time.Since(start), err)
	}()

	filter := req.location()
	hasImage := len(req.Image) > 0

	if !hasImage && filter.IsEmpty() {
		return SearchResponse{}, ErrEmptyQuery
	}

	topK, err = s.resolveTopK(req.TopK)
	if err != nil {
		return SearchResponse{}, err
	}

	if !hasImage {
		posts, err := s.meta.FindPosts(ctx, metadata.PostQuery{Location: filter, Limit: topK})
		if err != nil {
			return SearchResponse{}, translateError(err)
		}
		return newSearchResponse(ProvenanceLocation, posts)
	}

	ranks, err := s.matchImage(ctx, req.Image, topK)
	if err != nil {
		return SearchResponse{}, err
	}

	if len(ranks) == 0 {
		if filter.IsEmpty() {
			return SearchResponse{Provenance: ProvenanceImage}, fmt.Errorf("%w: no similar images", ErrNoMatches)
		}
		posts, err := s.meta.FindPosts(ctx, metadata.PostQuery{Location: filter, Limit: topK})
		if err != nil {
			return SearchResponse{}, translateError(err)
		}
		return newSearchResponse(ProvenanceLocation, posts)
	}

	keys := roaring64.New()
	for key := range ranks {
		keys.Add(uint64(key))
	}

	provenance := ProvenanceImage
	if !filter.IsEmpty() {
		provenance = ProvenanceImageAndLocation
	}

	// Every matched key must reach rankPosts, so the store limit is the size
	// of the candidate set and truncation to topK happens after ranking.
	q := metadata.PostQuery{
		Location:  filter,
		IndexKeys: keys,
		Limit:     max(int(keys.GetCardinality()), topK),
	}

	posts, err := s.meta.FindPosts(ctx, q)
	if err != nil {
		return SearchResponse{}, translateError(err)
	}

	if len(posts) == 0 && !filter.IsEmpty() {
		q.Location = metadata.LocationFilter{}
		posts, err = s.meta.FindPosts(ctx, q)
		if err != nil {
			return SearchResponse{}, translateError(err)
		}
		provenance = ProvenanceImageLocationIgnored
	}

	rankPosts(posts, ranks)
	if len(posts) > topK {
		posts = posts[:topK]
	}

	return newSearchResponse(provenance, posts)
}

// matchImage embeds the query image and returns the best distance per
// matched index key. Keys below 1 are discarded. The map is empty when the
// index holds nothing similar.
func (s *Service) matchImage(ctx context.Context, image []byte, topK int) (map[int64]float32, error) {
	vectors, err := s.embed(ctx, image)
	if err != nil {
		return nil, err
	}

	results, err := s.idx.Search(ctx, vectors, topK*s.opts.overfetch)
	if err != nil {
		return nil, translateError(err)
	}

	ranks := make(map[int64]float32)
	for _, r := range index.BestByKey(results...) {
		if r.Key > 0 {
			ranks[r.Key] = r.Distance
		}
	}

	return ranks, nil
}

func (s *Service) resolveTopK(topK int) (int, error) {
	switch {
	case topK < 0:
		return 0, fmt.Errorf("%w: top_k must not be negative", ErrValidation)
	case topK == 0:
		topK = DefaultTopK
	}
	if s.opts.maxTopK > 0 && topK > s.opts.maxTopK {
		topK = s.opts.maxTopK
	}
	return topK, nil
}

// rankPosts orders posts by the distance of their image. The sort is stable
// so ties keep store order.
func rankPosts(posts []metadata.Post, ranks map[int64]float32) {
	distance := func(p metadata.Post) float32 {
		if p.Image == nil {
			return math.MaxFloat32
		}
		if d, ok := ranks[p.Image.IndexKey]; ok {
			return d
		}
		return math.MaxFloat32
	}

	slices.SortStableFunc(posts, func(a, b metadata.Post) int {
		return cmp.Compare(distance(a), distance(b))
	})
}

func newSearchResponse(provenance Provenance, posts []metadata.Post) (SearchResponse, error) {
	if len(posts) == 0 {
		return SearchResponse{Provenance: provenance}, ErrNoMatches
	}
	return SearchResponse{
		Message:    string(provenance),
		Provenance: provenance,
		Posts:      posts,
	}, nil
}
