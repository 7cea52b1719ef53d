package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/hupe1980/findmymeow"
	"github.com/hupe1980/findmymeow/metadata"
)

const multipartMemory = 8 << 20

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	filename, data, err := h.readFile(w, r, "file")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if data == nil {
		h.writeDetail(w, http.StatusBadRequest, "file is required")
		return
	}

	rec, err := h.svc.UploadImage(r.Context(), filename, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleGetImage(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetImage(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

type deleteImageResponse struct {
	Message        string `json:"message"`
	VectorsRemoved int    `json:"vectors_removed"`
}

func (h *Handler) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.DeleteImage(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deleteImageResponse{
		Message:        "Image deleted successfully",
		VectorsRemoved: removed,
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	_, image, err := h.readFile(w, r, "image")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req := findmymeow.SearchRequest{
		Image:       image,
		Province:    r.FormValue("province"),
		District:    r.FormValue("district"),
		SubDistrict: r.FormValue("sub_district"),
	}

	if v := strings.TrimSpace(r.FormValue("top_k")); v != "" {
		topK, err := strconv.Atoi(v)
		if err != nil || topK <= 0 {
			h.writeDetail(w, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		req.TopK = topK
	}

	resp, err := h.svc.Search(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleCreatePost accepts either a JSON post body or a multipart form with
// the post JSON in field "post" and an optional "cat_image" file.
func (h *Handler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var (
		body []byte
		img  *findmymeow.ImageUpload
		err  error
	)

	if isMultipart(r) {
		filename, data, err := h.readFile(w, r, "cat_image")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if data != nil {
			img = &findmymeow.ImageUpload{Filename: filename, Data: data}
		}
		body = []byte(r.FormValue("post"))
	} else {
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes))
		if err != nil {
			h.writeDetail(w, http.StatusBadRequest, "failed to read body: "+err.Error())
			return
		}
	}

	var p metadata.Post
	if err := h.decode(body, &p); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.svc.CreatePost(r.Context(), p, img)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, created)
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListPosts(r.Context(), r.URL.Query().Get("post_type"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes))
	if err != nil {
		h.writeDetail(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}

	var u metadata.PostUpdate
	if err := h.decode(body, &u); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.svc.UpdatePost(r.Context(), r.PathValue("id"), u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePost(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageBody{Message: "Post deleted successfully"})
}

func (h *Handler) handleIndexStats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.IndexStats())
}

func (h *Handler) decode(body []byte, v any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("%w: request body is empty", findmymeow.ErrValidation)
	}
	if err := h.opts.Codec.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %w", findmymeow.ErrValidation, err)
	}
	return nil
}

// readFile parses the request form and returns the named file part. A
// missing part yields nil data and no error.
func (h *Handler) readFile(w http.ResponseWriter, r *http.Request, field string) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	if !isMultipart(r) {
		if err := r.ParseForm(); err != nil {
			return "", nil, formError(err)
		}
		return "", nil, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return "", nil, formError(err)
	}

	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, formError(err)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, formError(err)
	}
	if len(data) == 0 {
		return "", nil, nil
	}
	return hdr.Filename, data, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: upload exceeds %d bytes", findmymeow.ErrValidation, tooLarge.Limit)
	}
	return fmt.Errorf("%w: malformed form: %w", findmymeow.ErrValidation, err)
}
