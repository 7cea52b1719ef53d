package findmymeow

import (
	"log/slog"
	"time"

	"github.com/hupe1980/findmymeow/resource"
)

const (
	// DefaultTopK is used when a search does not set TopK.
	DefaultTopK = 100

	// DefaultOverfetch multiplies TopK for the vector stage so that metadata
	// filtering can drop candidates and still fill the result.
	DefaultOverfetch = 3

	// DefaultImagePrefix is the blob key prefix of uploaded images.
	DefaultImagePrefix = "images/"

	// DefaultEmbedTimeout bounds a single embedding call.
	DefaultEmbedTimeout = 30 * time.Second
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	resources        *resource.Controller
	embedTimeout     time.Duration
	overfetch        int
	maxTopK          int
	imagePrefix      string
	now              func() time.Time
}

// Option configures a Service.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := findmymeow.NewJSONLogger(slog.LevelInfo)
//	svc, _ := findmymeow.New(deps, findmymeow.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &findmymeow.BasicMetricsCollector{}
//	svc, _ := findmymeow.New(deps, findmymeow.WithMetricsCollector(metrics))
//	// ... use svc ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResources bounds concurrent embedding calls and in-flight image bytes.
func WithResources(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithEmbedTimeout bounds each embedding call. A timeout fails the request
// before any store is mutated. Zero disables the bound.
func WithEmbedTimeout(d time.Duration) Option {
	return func(o *options) {
		o.embedTimeout = d
	}
}

// WithOverfetch sets the vector-stage multiplier of TopK.
func WithOverfetch(factor int) Option {
	return func(o *options) {
		if factor < 1 {
			factor = 1
		}
		o.overfetch = factor
	}
}

// WithMaxTopK caps the TopK a caller may request. Zero means no cap.
func WithMaxTopK(n int) Option {
	return func(o *options) {
		o.maxTopK = n
	}
}

// WithImagePrefix sets the blob key prefix of uploaded images.
func WithImagePrefix(prefix string) Option {
	return func(o *options) {
		o.imagePrefix = prefix
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		embedTimeout:     DefaultEmbedTimeout,
		overfetch:        DefaultOverfetch,
		imagePrefix:      DefaultImagePrefix,
		now:              time.Now,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
