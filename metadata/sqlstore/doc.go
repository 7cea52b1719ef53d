// Package sqlstore implements metadata.Store on SQL databases.
//
// The backend is chosen from the DSN:
//   - empty: SQLite at data/findmymeow.db
//   - postgres:// or postgresql://: PostgreSQL through pgx
//   - anything else: SQLite at the given path (":memory:" for tests)
//
// Posts keep their full document as JSON next to denormalized filter
// columns. The counters table backs NextID, so a Store doubles as an
// idalloc.Allocator sharing the metadata database.
package sqlstore
