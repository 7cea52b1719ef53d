// Package blobstore provides the storage abstraction for raw images and
// index snapshots.
//
// BlobStore is the interface for reading and writing named blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral deployments
//   - LocalStore: local filesystem, atomic writes via temp file + rename
//   - s3.Store: Amazon S3 with multipart uploads and CRC32C checksums
//   - minio.Store: any S3-compatible server through minio-go
//
// # Publishing
//
// Rename is used to publish a fully written object under its final name.
// On object stores it is implemented as copy + delete of the source, so the
// destination is replaced in one step.
package blobstore
