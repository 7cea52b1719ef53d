// Package testutil provides testing utilities for findmymeow.
//
// This package is intended for use in tests only. It generates deterministic
// random vectors and computes exact nearest neighbors as ground truth.
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(10, 768)
//	truth := testutil.ExactTopK(query, keys, vecs, k, distance.SquaredL2)
package testutil
