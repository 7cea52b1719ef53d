// Package metadata defines the image and post documents and the store
// contract used to persist and query them.
//
// Image records bridge the similarity index and the domain: every record
// carries the integer index key under which its vectors were added. Posts
// optionally embed a reference to one image.
//
// # Querying
//
// FindPosts combines equality filters on location fields and post type with
// a set-membership filter on the referenced image's index key:
//
//	keys := roaring64.BitmapOf(3, 7, 11)
//	posts, err := store.FindPosts(ctx, metadata.PostQuery{
//	    Location:  metadata.LocationFilter{Province: "Bangkok"},
//	    IndexKeys: keys,
//	    Limit:     100,
//	})
//
// The in-memory Store answers these queries from roaring-bitmap posting lists.
// SQL backends live in the sqlstore subpackage.
package metadata
