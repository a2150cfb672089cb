// AngelaMos | 2026
// handler.go

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

const (
	attachmentPrefix = "attachments/"
	uploadPrefix     = "uploads/"
)

type PresignRequest struct {
	FileType string `json:"file_type" validate:"required,max=100"`
	FileName string `json:"file_name" validate:"omitempty,max=200"`
}

type PresignResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expires_in"`
}

type UploadResponse struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type HandlerConfig struct {
	Store          ObjectStore
	PresignTTL     time.Duration
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Handler struct {
	store     ObjectStore
	ttl       time.Duration
	maxBytes  int64
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Handler{
		store:     cfg.Store,
		ttl:       cfg.PresignTTL,
		maxBytes:  cfg.MaxUploadBytes,
		logger:    cfg.Logger,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/uploads", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/presign", h.Presign)
		r.Post("/attachments", h.UploadAttachment)
		r.Get("/download/*", h.Download)
	})
}

func (h *Handler) Presign(w http.ResponseWriter, r *http.Request) {
	var req PresignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	ext, err := extensionFor(req.FileType)
	if err != nil {
		core.HandleError(w, err, "upload")
		return
	}

	key := uploadPrefix + uuid.New().String() + ext
	if name := safeName(req.FileName); name != "" {
		key = uploadPrefix + name
	}

	url, err := h.store.Presign(r.Context(), key, req.FileType, h.ttl)
	if err != nil {
		core.HandleError(w, err, "upload")
		return
	}

	core.OK(w, PresignResponse{
		URL:       url,
		Key:       key,
		ExpiresIn: int(h.ttl.Seconds()),
	})
}

func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		core.BadRequest(w, "file is missing or too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		core.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		core.BadRequest(w, "file is too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ext := strings.ToLower(path.Ext(header.Filename))
	if ext == "" {
		ext, _ = extensionFor(contentType)
	}
	key := attachmentPrefix + uuid.New().String() + ext

	url, err := h.store.PutObject(r.Context(), key, file, header.Size, contentType)
	if err != nil {
		core.HandleError(w, err, "upload")
		return
	}

	h.logger.InfoContext(r.Context(), "attachment uploaded",
		"key", key,
		"size", header.Size,
	)

	core.Created(w, UploadResponse{URL: url, Key: key})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimLeft(chi.URLParam(r, "*"), "/")
	if key == "" || strings.Contains(key, "..") {
		core.BadRequest(w, "invalid object key")
		return
	}

	obj, err := h.store.GetObject(r.Context(), key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "file")
			return
		}
		core.InternalServerError(w, err)
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(key)),
	)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.WarnContext(r.Context(), "download interrupted",
			"key", key,
			"error", err,
		)
	}
}

// extensionFor derives ".png" from "image/png".
func extensionFor(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", core.Invalid("file_type must be a MIME type such as image/png")
	}

	_, sub, ok := strings.Cut(mediaType, "/")
	if !ok || sub == "" {
		return "", core.Invalid("file_type must be a MIME type such as image/png")
	}
	if i := strings.IndexAny(sub, "+;"); i > 0 {
		sub = sub[:i]
	}
	return "." + sub, nil
}

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
