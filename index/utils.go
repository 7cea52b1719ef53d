package index

import "sort"

// BestByKey collapses results of several queries to one entry per key,
// keeping the smallest distance. Keys at or below SentinelKey are dropped.
// The output is sorted by ascending distance, ties by key.
func BestByKey(lists ...[]SearchResult) []SearchResult {
	best := make(map[int64]float32)
	for _, list := range lists {
		for _, r := range list {
			if r.Key <= SentinelKey {
				continue
			}
			if d, ok := best[r.Key]; !ok || r.Distance < d {
				best[r.Key] = r.Distance
			}
		}
	}

	out := make([]SearchResult, 0, len(best))
	for k, d := range best {
		out = append(out, SearchResult{Key: k, Distance: d})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Key < out[j].Key
	})

	return out
}
