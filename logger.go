package findmymeow

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/findmymeow/indexstore"
)

// Logger wraps slog.Logger with findmymeow-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithImageID adds an image_id field to the logger.
func (l *Logger) WithImageID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("image_id", id),
	}
}

// WithPostID adds a post_id field to the logger.
func (l *Logger) WithPostID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("post_id", id),
	}
}

// LogIngest logs an image upload.
func (l *Logger) LogIngest(ctx context.Context, imageID string, vectors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"image_id", imageID,
			"vectors", vectors,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "ingest completed",
			"image_id", imageID,
			"vectors", vectors,
		)
	}
}

// LogSearch logs a search.
func (l *Logger) LogSearch(ctx context.Context, provenance Provenance, topK, results int, err error) {
	if err != nil {
		l.WarnContext(ctx, "search failed",
			"provenance", provenance,
			"top_k", topK,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"provenance", provenance,
			"top_k", topK,
			"results", results,
		)
	}
}

// LogDelete logs an image deletion.
func (l *Logger) LogDelete(ctx context.Context, imageID string, removed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"image_id", imageID,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "delete completed",
			"image_id", imageID,
			"vectors_removed", removed,
		)
	}
}

// LogPersist logs a snapshot upload.
func (l *Logger) LogPersist(ctx context.Context, info indexstore.PersistInfo) {
	if info.Err != nil {
		l.ErrorContext(ctx, "snapshot persist failed",
			"key", info.Key,
			"vectors", info.Vectors,
			"error", info.Err,
		)
	} else {
		l.DebugContext(ctx, "snapshot persisted",
			"key", info.Key,
			"vectors", info.Vectors,
			"bytes", info.Bytes,
			"duration", info.Duration,
		)
	}
}

// LogOrphan records state left behind by a partially failed multi-store
// operation. These records drive the offline repair job.
func (l *Logger) LogOrphan(ctx context.Context, kind OrphanKind, ref string, indexKey int64, cause error) {
	l.ErrorContext(ctx, "orphan",
		"kind", kind,
		"ref", ref,
		"index_key", indexKey,
		"error", cause,
	)
}

// OrphanKind names the store an orphan lives in.
type OrphanKind string

// Orphan kinds.
const (
	OrphanBlob          OrphanKind = "blob"
	OrphanIndexEntry    OrphanKind = "index_entry"
	OrphanImageRecord   OrphanKind = "image_record"
	OrphanPostImageLink OrphanKind = "post_image"
)
