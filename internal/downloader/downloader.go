package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vidfetch/internal/engine"
	"vidfetch/internal/format"
	"vidfetch/pkg/models"
)

const (
	// ServePrefix is the route downloaded files are served from
	ServePrefix = "/api/download/"

	audioSelector = "bestaudio/best"
	audioFormat   = "mp3"
	audioQuality  = "192K"
)

var ErrInvalidFileName = errors.New("invalid file name")

var extPattern = regexp.MustCompile(`^[a-z0-9]{1,8}$`)

// MetadataSource supplies cached or fresh metadata for a URL
type MetadataSource interface {
	GetVideoInfo(ctx context.Context, url string) (*models.VideoMetadata, error)
}

// DownloadStatus represents the status of a download
type DownloadStatus int

const (
	StatusQueued DownloadStatus = iota
	StatusDownloading
	StatusCompleted
	StatusFailed
)

func (s DownloadStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusDownloading:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DownloadRequest is an in-flight download
type DownloadRequest struct {
	ID        string
	VideoURL  string
	Tier      models.Tier
	FormatID  string
	QueuedAt  time.Time
	StartedAt time.Time
	Status    DownloadStatus
}

// Downloader resolves a tier to a format and has the engine fetch it
type Downloader struct {
	mu        sync.RWMutex
	dir       string
	engine    engine.Engine
	info      MetadataSource
	timeout   time.Duration
	slots     chan struct{}
	active    map[string]*DownloadRequest
	logger    *slog.Logger
	completed atomic.Int64
	failed    atomic.Int64
}

// NewDownloader creates a downloader writing into dir. maxConcurrent bounds
// simultaneous engine fetches; a zero timeout disables the deadline.
func NewDownloader(dir string, eng engine.Engine, info MetadataSource, maxConcurrent int, timeout time.Duration, logger *slog.Logger) (*Downloader, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	return &Downloader{
		dir:     dir,
		engine:  eng,
		info:    info,
		timeout: timeout,
		slots:   make(chan struct{}, maxConcurrent),
		active:  make(map[string]*DownloadRequest),
		logger:  logger,
	}, nil
}

// Dir returns the download directory
func (d *Downloader) Dir() string {
	return d.dir
}

// Download fetches url at the requested quality and returns a reference to
// the stored file.
func (d *Downloader) Download(ctx context.Context, url, quality string) (*models.DownloadResult, error) {
	url = strings.TrimSpace(url)
	quality = strings.TrimSpace(quality)
	if url == "" || quality == "" {
		return nil, &models.ValidationError{Message: "URL and quality are required"}
	}

	tier, _, err := format.ParseTier(quality)
	if err != nil {
		return nil, err
	}

	meta, err := d.info.GetVideoInfo(ctx, url)
	if err != nil {
		return nil, err
	}

	selected, ok, err := format.SelectBest(meta.Descriptors, quality)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &models.UnavailableFormatError{
			Requested: quality,
			Available: format.AvailableTiers(meta.Descriptors),
		}
	}

	req := &DownloadRequest{
		ID:       uuid.New().String(),
		VideoURL: url,
		Tier:     tier,
		FormatID: selected.FormatID,
		QueuedAt: time.Now(),
		Status:   StatusQueued,
	}

	d.track(req)
	defer d.untrack(req.ID)

	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()

	ext, err := d.executeDownload(ctx, req)
	if err != nil {
		d.failed.Add(1)
		d.removeArtifacts(req.ID)
		d.logger.Error("download failed", "id", req.ID, "url", url, "tier", tier, "error", err)
		return nil, err
	}

	d.completed.Add(1)
	fileName := req.ID + "." + ext
	d.logger.Info("download completed",
		"id", req.ID,
		"tier", tier,
		"format", req.FormatID,
		"file", fileName,
		"duration", time.Since(req.StartedAt).Round(time.Millisecond),
	)

	return &models.DownloadResult{
		FileName:     fileName,
		DownloadPath: ServePrefix + fileName,
		Tier:         tier,
		FormatID:     req.FormatID,
	}, nil
}

// executeDownload runs the engine fetch under the download deadline
func (d *Downloader) executeDownload(ctx context.Context, req *DownloadRequest) (string, error) {
	d.mu.Lock()
	req.Status = StatusDownloading
	req.StartedAt = time.Now()
	d.mu.Unlock()

	budget := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); budget <= 0 || remaining < budget {
			budget = remaining
		}
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	fetch := engine.FetchRequest{
		URL:            req.VideoURL,
		FormatSelector: req.FormatID,
		OutputDir:      d.dir,
		ID:             req.ID,
	}
	// audio re-delegates to the engine's own best-audio choice
	if req.Tier == models.TierAudio {
		fetch.FormatSelector = audioSelector
		fetch.ExtractAudio = true
		fetch.AudioFormat = audioFormat
		fetch.AudioQuality = audioQuality
	}

	ext, err := d.engine.Fetch(ctx, fetch)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// report the deadline that fired, which may be the caller's
			return "", &models.TimeoutError{Op: "download", Timeout: budget.Round(time.Millisecond)}
		}
		var ee *models.ExtractionError
		if errors.As(err, &ee) {
			return "", ee
		}
		return "", &models.ExtractionError{Message: err.Error()}
	}

	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !extPattern.MatchString(ext) {
		return "", &models.ExtractionError{Message: fmt.Sprintf("engine reported unexpected extension %q", ext)}
	}
	return ext, nil
}

// ResolveFile maps a served file name back to its path. Only names of the
// form <uuid>.<ext> are accepted.
func (d *Downloader) ResolveFile(name string) (string, error) {
	if err := ValidateFileName(name); err != nil {
		return "", &models.NotFoundError{Name: name}
	}

	path := filepath.Join(d.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", &models.NotFoundError{Name: name}
	}
	return path, nil
}

// ValidateFileName checks that name is a generated identifier plus extension
func ValidateFileName(name string) error {
	if name != filepath.Base(name) {
		return ErrInvalidFileName
	}
	id, ext, ok := strings.Cut(name, ".")
	if !ok || !extPattern.MatchString(ext) {
		return ErrInvalidFileName
	}
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return ErrInvalidFileName
	}
	return nil
}

// IsActive reports whether fileName belongs to a download still in progress.
// Partial and intermediate files share the download's ID prefix.
func (d *Downloader) IsActive(fileName string) bool {
	id, _, _ := strings.Cut(fileName, ".")

	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.active[id]
	return ok
}

// GetStatus returns a copy of an in-flight download
func (d *Downloader) GetStatus(id string) (*DownloadRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if req, ok := d.active[id]; ok {
		reqCopy := *req
		return &reqCopy, nil
	}
	return nil, errors.New("download not found")
}

// GetActiveDownloads returns the number of in-flight downloads
func (d *Downloader) GetActiveDownloads() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.active)
}

// Stats returns completed and failed download counts
func (d *Downloader) Stats() (completed, failed int64) {
	return d.completed.Load(), d.failed.Load()
}

func (d *Downloader) track(req *DownloadRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[req.ID] = req
}

func (d *Downloader) untrack(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, id)
}

func (d *Downloader) acquire(ctx context.Context) error {
	select {
	case d.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for download slot: %w", ctx.Err())
	}
}

func (d *Downloader) release() {
	<-d.slots
}

// removeArtifacts deletes whatever a failed fetch left behind
func (d *Downloader) removeArtifacts(id string) {
	matches, err := filepath.Glob(filepath.Join(d.dir, id+".*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("failed to remove partial download", "path", path, "error", err)
		}
	}
}
