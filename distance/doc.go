// Package distance provides vector distance calculations. Every function
// returns a value where smaller means closer.
//
// # Supported Metrics
//
//   - MetricL2: Squared Euclidean distance (default)
//   - MetricCosine: 1 - cosine similarity
//   - MetricDot: negated inner product
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	fn, err := distance.Provider(distance.MetricCosine)
package distance
