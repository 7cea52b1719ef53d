// Package findmymeow finds lost and found cats by visual similarity and
// location.
//
// A Service ties together five collaborators:
//
//   - an embedding.Provider that turns an image into one vector per detected cat
//   - an idalloc.Allocator that hands out collision-free integer index keys
//   - an indexstore.Store holding the persistent similarity index
//   - a blobstore.BlobStore for the raw images
//   - a metadata.Store for image and post documents
//
// # Ingestion
//
// UploadImage embeds the image, allocates an index key, uploads the blob,
// adds the vectors to the index (which persists its snapshot) and finally
// inserts the image record. A failure after a store was mutated runs an
// ordered undo of the earlier steps; anything the undo cannot clean up is
// logged as an orphan record for offline repair.
//
// # Search
//
// Search combines a vector query with location filters:
//
//	res, err := svc.Search(ctx, findmymeow.SearchRequest{
//	    Image:    jpeg,
//	    Province: "Bangkok",
//	    TopK:     20,
//	})
//	if errors.Is(err, findmymeow.ErrNoMatches) {
//	    // nothing found
//	}
//	fmt.Println(res.Provenance, len(res.Posts))
//
// When both image and location are given but no post satisfies both, the
// location filter is dropped and the result is tagged
// ProvenanceImageLocationIgnored.
//
// # Concurrency
//
// A Service is safe for concurrent use. Index mutations are serialized and
// return after the snapshot is published; searches never block on them. Run
// a single writer process per snapshot key.
package findmymeow
