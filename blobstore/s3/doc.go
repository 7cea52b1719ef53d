// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion("eu-central-1"))
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "findmymeow/")
//
// # Features
//
//   - Multipart streaming uploads for snapshots
//   - CRC32C checksums on every upload
//   - Server-side copy for publishing snapshots under their final key
//   - Automatic pagination for listing
package s3
