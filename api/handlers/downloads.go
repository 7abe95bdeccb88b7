package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
)

// LinkVerifier is implemented by *storage.Signer.
type LinkVerifier interface {
	Verify(bucket, path, expires, signature string) error
}

// Downloader reads stored objects.
type Downloader interface {
	Download(ctx context.Context, bucket, path string) (storage.Object, error)
}

// DownloadHandler serves objects behind signed links
type DownloadHandler struct {
	verifier LinkVerifier
	store    Downloader
	logger   zerolog.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(verifier LinkVerifier, store Downloader, log zerolog.Logger) *DownloadHandler {
	return &DownloadHandler{verifier: verifier, store: store, logger: log}
}

// Download handles GET /downloads/{bucket}/{path}
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bucket, path := vars["bucket"], vars["path"]
	q := r.URL.Query()

	if err := h.verifier.Verify(bucket, path, q.Get("expires"), q.Get("signature")); err != nil {
		status := http.StatusForbidden
		if errors.Is(err, storage.ErrURLExpired) {
			status = http.StatusGone
		}
		writeJSONError(w, h.logger, status, "Download link rejected", err.Error())
		return
	}

	obj, err := h.store.Download(r.Context(), bucket, path)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, models.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSONError(w, h.logger, status, "Download failed", err.Error())
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Data); err != nil {
		h.logger.Warn().Err(err).Str("bucket", bucket).Str("path", path).Msg("Download interrupted")
	}
}
