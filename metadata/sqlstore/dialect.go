package sqlstore

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"

	"github.com/hupe1980/findmymeow/metadata/sqlstore/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type dialect struct {
	name       string
	driver     string
	migrations fs.FS
	dir        string
	ordinal    bool
}

var (
	sqliteDialect = dialect{
		name:       "sqlite",
		driver:     "sqlite",
		migrations: migrations.SQLite,
		dir:        "sqlite",
	}

	postgresDialect = dialect{
		name:       "postgres",
		driver:     "pgx",
		migrations: migrations.Postgres,
		dir:        "postgres",
		ordinal:    true,
	}
)

// rebind rewrites ? placeholders into $n for ordinal dialects.
func (d dialect) rebind(query string) string {
	if !d.ordinal {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d dialect) isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return false
}
