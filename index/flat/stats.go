package flat

import "github.com/hupe1980/findmymeow/distance"

// Stats describes the current contents of the index.
type Stats struct {
	Vectors   int             `json:"vectors"`
	Keys      int             `json:"keys"`
	Dimension int             `json:"dimension"`
	Metric    distance.Metric `json:"-"`
	Bytes     int64           `json:"bytes"`
}

// Stats returns statistics about the index.
func (f *Flat) Stats() Stats {
	st := f.state.Load()

	return Stats{
		Vectors:   len(st.keys),
		Keys:      len(st.counts),
		Dimension: f.opts.Dimension,
		Metric:    f.opts.Metric,
		Bytes:     int64(len(st.keys))*8 + int64(len(st.vectors))*4,
	}
}
