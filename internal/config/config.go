// Package config loads the findmymeow configuration file.
//
// The file is YAML. ${VAR} references are expanded from the environment
// before parsing, so secrets can stay out of the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/findmymeow/distance"
	"github.com/hupe1980/findmymeow/indexstore"
	"github.com/hupe1980/findmymeow/persistence"
	"gopkg.in/yaml.v3"
)

// Blob backends.
const (
	BlobLocal  = "local"
	BlobMemory = "memory"
	BlobS3     = "s3"
	BlobMinIO  = "minio"
)

// Allocator backends.
const (
	AllocatorSQL      = "sql"
	AllocatorDynamoDB = "dynamodb"
	AllocatorBadger   = "badger"
	AllocatorMemory   = "memory"
)

// Config is the root of the configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Blob      BlobConfig      `yaml:"blob"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Allocator AllocatorConfig `yaml:"allocator"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// IndexConfig configures the similarity index.
type IndexConfig struct {
	Dimension         int    `yaml:"dimension"`
	Metric            string `yaml:"metric"`
	SnapshotKey       string `yaml:"snapshot_key"`
	Compression       string `yaml:"compression"`
	SearchParallelism int    `yaml:"search_parallelism"`
}

// SearchConfig configures the search orchestrator.
type SearchConfig struct {
	Overfetch int `yaml:"overfetch"`
	MaxTopK   int `yaml:"max_top_k"`
}

// BlobConfig selects and configures the blob store.
type BlobConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	ImagePrefix string `yaml:"image_prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	UseSSL      bool   `yaml:"use_ssl"`
}

// MetadataConfig configures the metadata database. An empty DSN selects
// the embedded SQLite file, a postgres:// DSN selects PostgreSQL.
type MetadataConfig struct {
	DSN string `yaml:"dsn"`
}

// AllocatorConfig selects the index key allocator.
type AllocatorConfig struct {
	Backend string `yaml:"backend"`
	Table   string `yaml:"table"`
	Dir     string `yaml:"dir"`
}

// EmbeddingConfig configures the embedding model server.
type EmbeddingConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// LimitsConfig bounds resource usage.
type LimitsConfig struct {
	MaxConcurrentEmbeds   int   `yaml:"max_concurrent_embeds"`
	MaxInflightBytes      int64 `yaml:"max_inflight_bytes"`
	SnapshotIOBytesPerSec int64 `yaml:"snapshot_io_bytes_per_sec"`
}

// Default returns the configuration used for absent keys.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  10 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Index: IndexConfig{
			Dimension:         768,
			Metric:            "l2",
			SnapshotKey:       indexstore.DefaultSnapshotKey,
			Compression:       "zstd",
			SearchParallelism: 4,
		},
		Search: SearchConfig{
			Overfetch: 3,
			MaxTopK:   1000,
		},
		Blob: BlobConfig{
			Backend:     BlobLocal,
			Dir:         "data/blobs",
			ImagePrefix: "images/",
		},
		Allocator: AllocatorConfig{
			Backend: AllocatorSQL,
			Table:   "findmymeow_counters",
			Dir:     "data/counters",
		},
		Embedding: EmbeddingConfig{
			URL:        "http://localhost:8001/embed",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Limits: LimitsConfig{
			MaxConcurrentEmbeds: 4,
			MaxInflightBytes:    64 << 20,
		},
	}
}

// Load reads path on top of Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes it into cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg.Validate()
}

// Validate checks the configuration for values the service can not start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Index.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("index.dimension must be positive, got %d", c.Index.Dimension))
	}
	if _, err := distance.ParseMetric(c.Index.Metric); err != nil {
		errs = append(errs, fmt.Errorf("index.metric: %w", err))
	}
	if _, err := persistence.ParseCompression(c.Index.Compression); err != nil {
		errs = append(errs, fmt.Errorf("index.compression: %w", err))
	}

	switch c.Blob.Backend {
	case BlobLocal:
		if c.Blob.Dir == "" {
			errs = append(errs, errors.New("blob.dir is required for the local backend"))
		}
	case BlobMemory:
	case BlobS3, BlobMinIO:
		if c.Blob.Bucket == "" {
			errs = append(errs, fmt.Errorf("blob.bucket is required for the %s backend", c.Blob.Backend))
		}
		if c.Blob.Backend == BlobMinIO && c.Blob.Endpoint == "" {
			errs = append(errs, errors.New("blob.endpoint is required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob.backend %q", c.Blob.Backend))
	}

	switch c.Allocator.Backend {
	case AllocatorSQL, AllocatorMemory:
	case AllocatorDynamoDB:
		if c.Allocator.Table == "" {
			errs = append(errs, errors.New("allocator.table is required for the dynamodb backend"))
		}
	case AllocatorBadger:
		if c.Allocator.Dir == "" {
			errs = append(errs, errors.New("allocator.dir is required for the badger backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown allocator.backend %q", c.Allocator.Backend))
	}

	if c.Embedding.URL == "" {
		errs = append(errs, errors.New("embedding.url is required"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// Metric returns the parsed index metric.
func (c *Config) Metric() distance.Metric {
	m, _ := distance.ParseMetric(c.Index.Metric)
	return m
}

// Compression returns the parsed snapshot compression.
func (c *Config) Compression() persistence.Compression {
	comp, _ := persistence.ParseCompression(c.Index.Compression)
	return comp
}

// NeedsAWS reports whether any component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.Blob.Backend == BlobS3 || c.Allocator.Backend == AllocatorDynamoDB
}
