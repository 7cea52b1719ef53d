// Package indexstore owns the similarity index of a process: an exact
// in-memory index persisted as one snapshot blob.
//
// Mutations are serialized by a writer mutex and return only after the new
// snapshot has been published. The snapshot is written to a temporary key
// and renamed over the well-known key, so readers of the blob store observe
// either the previous or the new snapshot. Searches run lock-free on an
// immutable copy-on-write state and are never blocked by uploads.
//
// There is no cross-process coordination. Run a single writer process; every
// process reloads the snapshot at startup.
package indexstore
