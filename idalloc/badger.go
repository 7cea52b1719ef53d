package idalloc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "counter/"

// Badger keeps counters in an embedded BadgerDB. A single process owns the
// directory, so this backend suits single-node deployments.
type Badger struct {
	db     *badger.DB
	opts   Options
	logger *slog.Logger
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	InMemory bool
}

// NewBadger opens (or creates) the counter database.
func NewBadger(bopts BadgerOptions, optFns ...func(o *Options)) (*Badger, error) {
	if !bopts.InMemory && bopts.Dir == "" {
		return nil, errors.New("id allocator: BadgerOptions.Dir is required for on-disk mode")
	}

	opts := applyOptions(optFns)

	dbOpts := badger.DefaultOptions(bopts.Dir)
	if bopts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Badger{db: db, opts: opts, logger: opts.Logger}, nil
}

// NextID implements Allocator. Conflicting transactions are retried.
func (b *Badger) NextID(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, ErrInvalidNamespace
	}

	key := []byte(badgerKeyPrefix + namespace)

	for attempt := 0; attempt <= b.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		var next int64
		err := b.db.Update(func(txn *badger.Txn) error {
			var cur int64

			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				if err := item.Value(func(val []byte) error {
					if len(val) != 8 {
						return fmt.Errorf("corrupt counter value of %d bytes", len(val))
					}
					cur = int64(binary.BigEndian.Uint64(val))
					return nil
				}); err != nil {
					return err
				}
			}

			next = cur + 1
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(next))
			return txn.Set(key, buf)
		})

		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			b.logger.Error("id allocation failed", "namespace", namespace, "backend", "badger", "error", err)
			return 0, unavailable(namespace, err)
		}

		return next, nil
	}

	return 0, unavailable(namespace, badger.ErrConflict)
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger forwards badger warnings and errors to slog and drops the rest.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error(fmt.Sprintf("[badger] "+f, v...))
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn(fmt.Sprintf("[badger] "+f, v...))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
