package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vidfetch/pkg/models"
)

const maxBodyBytes = 1 << 20

type videoInfoRequest struct {
	URL string `json:"url"`
}

type downloadRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
}

// videoInfoResponse is the public view of VideoMetadata; raw descriptors
// stay server-side
type videoInfoResponse struct {
	Title      string                  `json:"title"`
	Thumbnail  string                  `json:"thumbnail"`
	Duration   *float64                `json:"duration,omitempty"`
	WebpageURL string                  `json:"webpageUrl,omitempty"`
	Extractor  string                  `json:"extractor,omitempty"`
	Formats    []models.SelectedFormat `json:"formats"`
}

type downloadResponse struct {
	Success      bool   `json:"success"`
	DownloadPath string `json:"downloadPath"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleVideoInfo handles POST /api/video-info
func (s *Server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	var req videoInfoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	meta, err := s.info.GetVideoInfo(r.Context(), req.URL)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	formats := meta.Formats
	if formats == nil {
		formats = []models.SelectedFormat{}
	}

	writeJSON(w, http.StatusOK, videoInfoResponse{
		Title:      meta.Title,
		Thumbnail:  meta.Thumbnail,
		Duration:   meta.Duration,
		WebpageURL: meta.WebpageURL,
		Extractor:  meta.Extractor,
		Formats:    formats,
	})
}

// handleDownload handles POST /api/download
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Quality) == "" {
		writeError(w, http.StatusBadRequest, "URL and quality are required")
		return
	}

	result, err := s.downloads.Download(r.Context(), req.URL, req.Quality)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, downloadResponse{
		Success:      true,
		DownloadPath: result.DownloadPath,
	})
}

// handleServeFile handles GET /api/download/{filename}
func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	path, err := s.downloads.ResolveFile(name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeFile(w, r, path)
}

// writeDomainError maps domain errors onto HTTP statuses
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *models.ValidationError
		unavailable *models.UnavailableFormatError
		extraction  *models.ExtractionError
		timeout     *models.TimeoutError
		notFound    *models.NotFoundError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation), errors.As(err, &unavailable), errors.As(err, &extraction):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &timeout):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
