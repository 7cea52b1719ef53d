// Package minio stores images and index snapshots in MinIO or another
// S3-compatible server through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    return err
//	}
//	blobs := minioblob.NewStore(client, "findmymeow", "prod/")
//
// Snapshots are written as a streaming upload to a temporary key and
// published with a server-side copy followed by a delete of the source.
// Readers of the published key therefore see either the previous or the new
// snapshot. Missing objects map to blobstore.ErrNotFound, transport and
// permission failures to blobstore.ErrUnavailable.
package minio
