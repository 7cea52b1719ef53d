// Package app wires a findmymeow.Service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/findmymeow"
	"github.com/hupe1980/findmymeow/blobstore"
	"github.com/hupe1980/findmymeow/blobstore/minio"
	"github.com/hupe1980/findmymeow/blobstore/s3"
	"github.com/hupe1980/findmymeow/embedding"
	"github.com/hupe1980/findmymeow/idalloc"
	"github.com/hupe1980/findmymeow/indexstore"
	"github.com/hupe1980/findmymeow/internal/config"
	"github.com/hupe1980/findmymeow/internal/httpapi"
	"github.com/hupe1980/findmymeow/metadata/sqlstore"
	"github.com/hupe1980/findmymeow/resource"
	miniogo "github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *findmymeow.Logger
	Service   *findmymeow.Service
	Index     *indexstore.Store
	Blobs     blobstore.BlobStore
	Resources *resource.Controller
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, w io.Writer) (*findmymeow.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return findmymeow.NewLogger(slog.NewJSONHandler(w, hopts)), nil
	}
	return findmymeow.NewLogger(slog.NewTextHandler(w, hopts)), nil
}

// New wires the service and loads the index snapshot.
func New(ctx context.Context, cfg *config.Config, logger *findmymeow.Logger) (*App, error) {
	if logger == nil {
		logger = findmymeow.NoopLogger()
	}

	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		var err error
		awsCfg, err = loadAWSConfig(ctx, cfg.Blob)
		if err != nil {
			return nil, err
		}
	}

	blobs, err := newBlobStore(cfg.Blob, awsCfg)
	if err != nil {
		return nil, err
	}

	rc := resource.NewController(resource.Config{
		MaxConcurrentEmbeds: int64(cfg.Limits.MaxConcurrentEmbeds),
		MaxInflightBytes:    cfg.Limits.MaxInflightBytes,
		IOLimitBytesPerSec:  cfg.Limits.SnapshotIOBytesPerSec,
	})

	idx, err := indexstore.New(blobs, func(o *indexstore.Options) {
		o.Dimension = cfg.Index.Dimension
		o.Metric = cfg.Metric()
		o.SnapshotKey = cfg.Index.SnapshotKey
		o.Compression = cfg.Compression()
		o.SearchParallelism = cfg.Index.SearchParallelism
		o.Resources = rc
		o.Logger = logger.Logger.With("component", "indexstore")
	})
	if err != nil {
		return nil, err
	}

	if err := idx.Load(ctx); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	meta, err := sqlstore.Open(ctx, cfg.Metadata.DSN)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	ids, err := newAllocator(cfg.Allocator, meta, awsCfg, logger)
	if err != nil {
		_ = meta.Close()
		return nil, err
	}

	embedder := embedding.NewHTTPProvider(cfg.Embedding.URL, func(o *embedding.HTTPOptions) {
		o.MaxRetries = cfg.Embedding.MaxRetries
		o.APIKey = cfg.Embedding.APIKey
	})

	svc, err := findmymeow.New(findmymeow.Dependencies{
		Index:    idx,
		Blobs:    blobs,
		Metadata: meta,
		IDs:      ids,
		Embedder: embedder,
	},
		findmymeow.WithLogger(logger),
		findmymeow.WithResources(rc),
		findmymeow.WithEmbedTimeout(cfg.Embedding.Timeout),
		findmymeow.WithOverfetch(cfg.Search.Overfetch),
		findmymeow.WithMaxTopK(cfg.Search.MaxTopK),
		findmymeow.WithImagePrefix(cfg.Blob.ImagePrefix),
	)
	if err != nil {
		_ = meta.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "service ready",
		"blob_backend", cfg.Blob.Backend,
		"metadata", meta.Dialect(),
		"allocator", cfg.Allocator.Backend,
		"vectors", idx.Len(),
		"max_concurrent_embeds", rc.Config().MaxConcurrentEmbeds,
		"max_inflight_bytes", rc.Config().MaxInflightBytes,
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Service:   svc,
		Index:     idx,
		Blobs:     blobs,
		Resources: rc,
	}, nil
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return httpapi.NewHandler(a.Service, func(o *httpapi.Options) {
		o.MaxUploadBytes = a.Config.Server.MaxUploadBytes
		o.Logger = a.Logger.Logger.With("component", "httpapi")
	})
}

// Close releases the stores.
func (a *App) Close() error {
	return a.Service.Close()
}

func loadAWSConfig(ctx context.Context, bc config.BlobConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if bc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(bc.Region))
	}
	if bc.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(bc.AccessKey, bc.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func newBlobStore(bc config.BlobConfig, awsCfg aws.Config) (blobstore.BlobStore, error) {
	switch bc.Backend {
	case config.BlobLocal:
		if err := os.MkdirAll(bc.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create blob dir: %w", err)
		}
		return blobstore.NewLocalStore(bc.Dir), nil

	case config.BlobMemory:
		return blobstore.NewMemoryStore(), nil

	case config.BlobS3:
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if bc.Endpoint != "" {
				o.BaseEndpoint = aws.String(bc.Endpoint)
				o.UsePathStyle = true
			}
		})
		return s3.NewStore(client, bc.Bucket, bc.Prefix), nil

	case config.BlobMinIO:
		client, err := miniogo.New(bc.Endpoint, &miniogo.Options{
			Creds:  miniocreds.NewStaticV4(bc.AccessKey, bc.SecretKey, ""),
			Secure: bc.UseSSL,
			Region: bc.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		return minio.NewStore(client, bc.Bucket, bc.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown blob backend %q", bc.Backend)
	}
}

func newAllocator(ac config.AllocatorConfig, meta *sqlstore.Store, awsCfg aws.Config, logger *findmymeow.Logger) (idalloc.Allocator, error) {
	withLogger := func(o *idalloc.Options) {
		o.Logger = logger.Logger.With("component", "idalloc")
	}

	switch ac.Backend {
	case config.AllocatorSQL:
		return meta, nil
	case config.AllocatorMemory:
		logger.Warn("in-memory id allocator: keys are not durable across restarts")
		return idalloc.NewMemory(), nil
	case config.AllocatorBadger:
		b, err := idalloc.NewBadger(idalloc.BadgerOptions{Dir: ac.Dir}, withLogger)
		if err != nil {
			return nil, fmt.Errorf("open badger allocator: %w", err)
		}
		return b, nil
	case config.AllocatorDynamoDB:
		return idalloc.NewDynamoDB(dynamodb.NewFromConfig(awsCfg), ac.Table, withLogger), nil
	default:
		return nil, errors.New("unknown allocator backend " + ac.Backend)
	}
}
