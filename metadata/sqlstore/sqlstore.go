package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/findmymeow/codec"
	"github.com/hupe1980/findmymeow/idalloc"
	"github.com/hupe1980/findmymeow/metadata"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DefaultSQLitePath is used for an empty DSN.
const DefaultSQLitePath = "data/findmymeow.db"

// maxInList bounds the number of index keys bound as query parameters.
// Larger sets are filtered while scanning.
const maxInList = 2000

// Store is a metadata.Store backed by database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

var (
	_ metadata.Store    = (*Store)(nil)
	_ idalloc.Allocator = (*Store)(nil)
)

// Open creates a store for dsn, running migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	}

	return OpenSQLite(ctx, dsn)
}

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultSQLitePath
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	return newStore(ctx, db, sqliteDialect)
}

// OpenPostgres connects to PostgreSQL through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return newStore(ctx, db, postgresDialect)
}

func newStore(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	s := &Store{db: db, dialect: d, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	names, err := fs.Glob(s.dialect.migrations, s.dialect.dir+"/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := fs.ReadFile(s.dialect.migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	return nil
}

// Dialect returns "sqlite" or "postgres".
func (s *Store) Dialect() string { return s.dialect.name }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", metadata.ErrUnavailable, op, err)
}

// NextID implements idalloc.Allocator with an upsert on the counters table.
func (s *Store) NextID(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, idalloc.ErrInvalidNamespace
	}

	var id int64
	err := s.queryRow(ctx, `
		INSERT INTO counters (name, seq) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq`, namespace).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", idalloc.ErrStorageUnavailable, namespace, err)
	}
	return id, nil
}

// InsertImage implements metadata.Store.
func (s *Store) InsertImage(ctx context.Context, rec metadata.ImageRecord) error {
	if err := metadata.ValidateImage(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	_, err := s.exec(ctx, `
		INSERT INTO images (image_id, stored_filename, storage_path, index_key, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ImageID, rec.StoredFilename, rec.StoragePath, rec.IndexKey, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return metadata.ErrAlreadyExists
		}
		return unavailable("insert image", err)
	}
	return nil
}

// GetImage implements metadata.Store.
func (s *Store) GetImage(ctx context.Context, imageID string) (metadata.ImageRecord, error) {
	var (
		rec       metadata.ImageRecord
		createdAt int64
	)

	err := s.queryRow(ctx, `
		SELECT image_id, stored_filename, storage_path, index_key, created_at
		FROM images WHERE image_id = ?`, imageID).Scan(
		&rec.ImageID, &rec.StoredFilename, &rec.StoragePath, &rec.IndexKey, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, metadata.ErrNotFound
	}
	if err != nil {
		return rec, unavailable("query image", err)
	}

	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}

// DeleteImage implements metadata.Store.
func (s *Store) DeleteImage(ctx context.Context, imageID string) error {
	res, err := s.exec(ctx, `DELETE FROM images WHERE image_id = ?`, imageID)
	if err != nil {
		return unavailable("delete image", err)
	}
	return requireAffected(res)
}

// InsertPost implements metadata.Store.
func (s *Store) InsertPost(ctx context.Context, post metadata.Post) error {
	if err := metadata.ValidatePost(post); err != nil {
		return err
	}

	now := s.now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	cols, err := postColumns(post)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, `
		INSERT INTO posts (id, post_type, province, district, sub_district, index_key, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, cols.postType, cols.province, cols.district, cols.subDistrict, cols.indexKey,
		cols.doc, post.CreatedAt.UnixNano(), post.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return metadata.ErrAlreadyExists
		}
		return unavailable("insert post", err)
	}
	return nil
}

// GetPost implements metadata.Store.
func (s *Store) GetPost(ctx context.Context, id string) (metadata.Post, error) {
	var doc string
	err := s.queryRow(ctx, `SELECT doc FROM posts WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return metadata.Post{}, metadata.ErrNotFound
	}
	if err != nil {
		return metadata.Post{}, unavailable("query post", err)
	}
	return decodePost(doc)
}

// UpdatePost implements metadata.Store. The read and write run in one
// transaction.
func (s *Store) UpdatePost(ctx context.Context, id string, update metadata.PostUpdate) (metadata.Post, error) {
	if err := metadata.ValidateUpdate(update); err != nil {
		return metadata.Post{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return metadata.Post{}, unavailable("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var doc string
	err = tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT doc FROM posts WHERE id = ?`), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return metadata.Post{}, metadata.ErrNotFound
	}
	if err != nil {
		return metadata.Post{}, unavailable("query post", err)
	}

	old, err := decodePost(doc)
	if err != nil {
		return metadata.Post{}, err
	}

	post := update.Apply(old)
	post.UpdatedAt = s.now().UTC()

	cols, err := postColumns(post)
	if err != nil {
		return metadata.Post{}, err
	}

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
		UPDATE posts SET post_type = ?, province = ?, district = ?, sub_district = ?,
			index_key = ?, doc = ?, updated_at = ?
		WHERE id = ?`),
		cols.postType, cols.province, cols.district, cols.subDistrict, cols.indexKey,
		cols.doc, post.UpdatedAt.UnixNano(), id,
	)
	if err != nil {
		return metadata.Post{}, unavailable("update post", err)
	}

	if err := tx.Commit(); err != nil {
		return metadata.Post{}, unavailable("commit", err)
	}
	return post, nil
}

// DeletePost implements metadata.Store.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete post", err)
	}
	return requireAffected(res)
}

// FindPosts implements metadata.Store.
func (s *Store) FindPosts(ctx context.Context, q metadata.PostQuery) ([]metadata.Post, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = metadata.DefaultLimit
	}

	var (
		where []string
		args  []any
	)

	addEq := func(col, val string) {
		if val != "" {
			where = append(where, col+" = ?")
			args = append(args, val)
		}
	}
	addEq("province", q.Location.Province)
	addEq("district", q.Location.District)
	addEq("sub_district", q.Location.SubDistrict)
	addEq("post_type", q.PostType)

	scanFilter := false
	if q.IndexKeys != nil {
		n := q.IndexKeys.GetCardinality()
		switch {
		case n == 0:
			return []metadata.Post{}, nil
		case n <= maxInList:
			placeholders := make([]string, 0, n)
			it := q.IndexKeys.Iterator()
			for it.HasNext() {
				placeholders = append(placeholders, "?")
				args = append(args, int64(it.Next()))
			}
			where = append(where, "index_key IN ("+strings.Join(placeholders, ", ")+")")
		default:
			where = append(where, "index_key IS NOT NULL")
			scanFilter = true
		}
	}

	query := "SELECT doc FROM posts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if !scanFilter {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, unavailable("query posts", err)
	}
	defer rows.Close()

	posts := make([]metadata.Post, 0)
	for rows.Next() && len(posts) < limit {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, unavailable("scan post", err)
		}
		p, err := decodePost(doc)
		if err != nil {
			return nil, err
		}
		if scanFilter && !q.Matches(&p) {
			continue
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate posts", err)
	}

	return posts, nil
}

type columns struct {
	postType    string
	province    sql.NullString
	district    sql.NullString
	subDistrict sql.NullString
	indexKey    sql.NullInt64
	doc         string
}

func postColumns(p metadata.Post) (columns, error) {
	data, err := codec.Default.Marshal(p)
	if err != nil {
		return columns{}, fmt.Errorf("marshal post: %w", err)
	}

	c := columns{postType: p.PostType, doc: string(data)}
	if p.Location != nil {
		c.province = sql.NullString{String: p.Location.Province, Valid: true}
		c.district = sql.NullString{String: p.Location.District, Valid: true}
		c.subDistrict = sql.NullString{String: p.Location.SubDistrict, Valid: true}
	}
	if p.Image != nil {
		c.indexKey = sql.NullInt64{Int64: p.Image.IndexKey, Valid: true}
	}
	return c, nil
}

func decodePost(doc string) (metadata.Post, error) {
	var p metadata.Post
	if err := codec.Default.Unmarshal([]byte(doc), &p); err != nil {
		return p, fmt.Errorf("unmarshal post: %w", err)
	}
	return p, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return metadata.ErrNotFound
	}
	return nil
}
