// Package index provides the vector index abstraction used by the image
// similarity search.
//
// Vectors are addressed by an int64 index key. A single key may tag several
// vectors, one per cat detected in an uploaded image, and removing a key
// removes all of them. Keys are assigned by the ID allocator and never
// reused.
//
// # Subpackages
//
//   - flat: exact search over a copy-on-write, contiguous vector array
package index
