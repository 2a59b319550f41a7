package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/imagevault/internal/metrics"
	"github.com/templui/imagevault/internal/model"
	"github.com/templui/imagevault/internal/service"
	"github.com/templui/imagevault/internal/validation"
)

// multipartOverhead is allowed on top of the file size for form boundaries and fields
const multipartOverhead = 1 << 20

type imageHandler struct {
	imageService *service.ImageService
	constraints  validation.FileConstraints
}

func NewImageHandler(imageService *service.ImageService, maxUploadSize int64) *imageHandler {
	return &imageHandler{
		imageService: imageService,
		constraints:  validation.ImageConstraints(maxUploadSize),
	}
}

type uploadResponse struct {
	ID       string `json:"id"`
	ThumbURL string `json:"thumbUrl"`
}

func (h *imageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.constraints.MaxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.constraints.MaxSize+multipartOverhead)
	}

	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSONError(w, validation.ErrFileTooLarge.Error(), http.StatusBadRequest)
			return
		}
		writeJSONError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		writeJSONError(w, validation.ErrFileRequired.Error(), http.StatusBadRequest)
		return
	}
	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			slog.Warn("failed to close uploaded file", "error", closeErr)
		}
	}()

	err = validation.ValidateFile(header, h.constraints)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.imageService.Upload(file, header.Filename, header.Header.Get("Content-Type"), r.FormValue("description"))
	if err != nil {
		if errors.Is(err, validation.ErrInvalidExtension) {
			metrics.UploadsTotal.WithLabelValues("invalid").Inc()
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		writeInternalError(w, r, "image upload failed", err)
		return
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, uploadResponse{ID: record.ID, ThumbURL: record.ThumbURL()})
}

func (h *imageHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.imageService.Search(r.URL.Query().Get("q"))
	if err != nil {
		writeInternalError(w, r, "image search failed", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *imageHandler) Thumb(w http.ResponseWriter, r *http.Request) {
	rc, _, err := h.imageService.OpenThumb(r.PathValue("id"))
	if err != nil {
		h.writeOpenError(w, r, err)
		return
	}

	// Thumbnails are written once per id
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	serveBytes(w, r, rc, model.ThumbContentType)
}

func (h *imageHandler) Original(w http.ResponseWriter, r *http.Request) {
	rc, record, err := h.imageService.OpenOriginal(r.PathValue("id"))
	if err != nil {
		h.writeOpenError(w, r, err)
		return
	}

	// The stored type is whatever the uploader declared, so the bytes must
	// never run as a page on this origin.
	contentType := record.ContentType()
	w.Header().Set("Content-Security-Policy", "sandbox; default-src 'none'")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		w.Header().Set("Content-Disposition", "attachment")
	}
	serveBytes(w, r, rc, contentType)
}

func (h *imageHandler) writeOpenError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrImageNotFound) {
		writeJSONError(w, "Image not found", http.StatusNotFound)
		return
	}
	writeInternalError(w, r, "failed to open image", err)
}

func serveBytes(w http.ResponseWriter, r *http.Request, rc io.ReadCloser, contentType string) {
	defer func() {
		closeErr := rc.Close()
		if closeErr != nil {
			slog.Warn("failed to close image file", "error", closeErr)
		}
	}()

	w.Header().Set("Content-Type", contentType)
	_, err := io.Copy(w, rc)
	if err != nil {
		slog.Warn("failed to stream image", "error", err, "path", r.URL.Path)
	}
}
