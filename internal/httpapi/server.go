// Package httpapi exposes a findmymeow.Service over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hupe1980/findmymeow"
	"github.com/hupe1980/findmymeow/codec"
	"github.com/hupe1980/findmymeow/indexstore"
	"github.com/hupe1980/findmymeow/metadata"
)

// Service is the part of findmymeow.Service the API needs.
type Service interface {
	UploadImage(ctx context.Context, filename string, data []byte) (metadata.ImageRecord, error)
	GetImage(ctx context.Context, imageID string) (metadata.ImageRecord, error)
	DeleteImage(ctx context.Context, imageID string) (int, error)
	Search(ctx context.Context, req findmymeow.SearchRequest) (findmymeow.SearchResponse, error)
	CreatePost(ctx context.Context, p metadata.Post, img *findmymeow.ImageUpload) (metadata.Post, error)
	GetPost(ctx context.Context, id string) (metadata.Post, error)
	ListPosts(ctx context.Context, postType string) ([]metadata.Post, error)
	UpdatePost(ctx context.Context, id string, u metadata.PostUpdate) (metadata.Post, error)
	DeletePost(ctx context.Context, id string) error
	IndexStats() indexstore.Stats
}

var _ Service = (*findmymeow.Service)(nil)

// Options configures a Handler.
type Options struct {
	// MaxUploadBytes bounds request bodies carrying images.
	MaxUploadBytes int64

	Codec  codec.Codec
	Logger *slog.Logger
}

// DefaultOptions contains default options.
var DefaultOptions = Options{
	MaxUploadBytes: 10 << 20,
	Codec:          codec.Default,
}

// Handler routes API requests to a Service.
type Handler struct {
	svc    Service
	mux    *http.ServeMux
	opts   Options
	logger *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(svc Service, optFns ...func(o *Options)) *Handler {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &Handler{
		svc:    svc,
		mux:    http.NewServeMux(),
		opts:   opts,
		logger: opts.Logger,
	}

	h.mux.HandleFunc("GET /health", h.handleHealth)

	h.mux.HandleFunc("POST /api/v1/image", h.handleUploadImage)
	h.mux.HandleFunc("POST /api/v1/image/{$}", h.handleUploadImage)
	h.mux.HandleFunc("GET /api/v1/image/{id}", h.handleGetImage)
	h.mux.HandleFunc("DELETE /api/v1/image/{id}", h.handleDeleteImage)

	h.mux.HandleFunc("POST /api/v1/search", h.handleSearch)
	h.mux.HandleFunc("POST /api/v1/search/{$}", h.handleSearch)

	h.mux.HandleFunc("POST /api/v1/posts", h.handleCreatePost)
	h.mux.HandleFunc("GET /api/v1/posts", h.handleListPosts)
	h.mux.HandleFunc("GET /api/v1/posts/{id}", h.handleGetPost)
	h.mux.HandleFunc("PUT /api/v1/posts/{id}", h.handleUpdatePost)
	h.mux.HandleFunc("DELETE /api/v1/posts/{id}", h.handleDeletePost)

	h.mux.HandleFunc("GET /api/v1/index/stats", h.handleIndexStats)

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	h.mux.ServeHTTP(rw, r)

	h.logger.DebugContext(r.Context(), "request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rw.status,
		"duration", time.Since(start),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := h.opts.Codec.Marshal(v)
	if err != nil {
		h.logger.Error("encode response", "error", err)
		http.Error(w, `{"detail":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (h *Handler) writeDetail(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, errorBody{Detail: detail})
}

type messageBody struct {
	Message string `json:"message"`
}
