// Package enginetest provides an in-memory Engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"vidfetch/internal/engine"
	"vidfetch/pkg/models"
)

// Fake is a scripted Engine. Probe answers from Results; Fetch writes a small
// file named after the request ID.
type Fake struct {
	mu       sync.Mutex
	Results  map[string]*engine.ProbeResult
	ProbeErr error
	FetchErr error
	// FetchExt is the extension reported for video fetches (default "mp4")
	FetchExt string
	// Gate, when set, blocks Probe until it is closed or ctx is done
	Gate chan struct{}
	// FetchGate does the same for Fetch
	FetchGate chan struct{}

	probeCalls atomic.Int32
	fetches    []engine.FetchRequest
}

// New creates a fake with no known URLs
func New() *Fake {
	return &Fake{Results: make(map[string]*engine.ProbeResult)}
}

// Add registers a probe result for url
func (f *Fake) Add(url string, result *engine.ProbeResult) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results[url] = result
	return f
}

// Probe implements engine.Engine
func (f *Fake) Probe(ctx context.Context, url string) (*engine.ProbeResult, error) {
	f.probeCalls.Add(1)

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("engine probe: %w", ctx.Err())
		}
	}

	if f.ProbeErr != nil {
		return nil, f.ProbeErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.Results[url]
	if !ok {
		return nil, &models.ExtractionError{Message: fmt.Sprintf("ERROR: Unsupported URL: %s", url)}
	}
	return result, nil
}

// Fetch implements engine.Engine
func (f *Fake) Fetch(ctx context.Context, req engine.FetchRequest) (string, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, req)
	f.mu.Unlock()

	if f.FetchGate != nil {
		select {
		case <-f.FetchGate:
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("engine fetch: %w", err)
	}
	if f.FetchErr != nil {
		return "", f.FetchErr
	}

	ext := f.FetchExt
	if ext == "" {
		ext = "mp4"
	}
	if req.ExtractAudio {
		ext = req.AudioFormat
	}

	path := filepath.Join(req.OutputDir, req.ID+"."+ext)
	if err := os.WriteFile(path, []byte("media:"+req.FormatSelector), 0644); err != nil {
		return "", err
	}
	return ext, nil
}

// ProbeCalls returns how many times Probe ran
func (f *Fake) ProbeCalls() int {
	return int(f.probeCalls.Load())
}

// Fetches returns a copy of every fetch request seen
func (f *Fake) Fetches() []engine.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.FetchRequest, len(f.fetches))
	copy(out, f.fetches)
	return out
}

// SampleResult builds a probe result with one muxed descriptor per height
// plus one audio-only track.
func SampleResult(title string, heights ...int) *engine.ProbeResult {
	result := &engine.ProbeResult{
		Title:     title,
		Thumbnail: "https://img.example/" + title + ".jpg",
	}
	for _, h := range heights {
		result.Formats = append(result.Formats, models.FormatDescriptor{
			FormatID:   fmt.Sprintf("v%d", h),
			VideoCodec: "avc1",
			AudioCodec: "mp4a",
			Height:     h,
			Bitrate:    float64(h),
			Extension:  "mp4",
		})
	}
	result.Formats = append(result.Formats, models.FormatDescriptor{
		FormatID:     "a1",
		VideoCodec:   "none",
		AudioCodec:   "opus",
		AudioBitrate: 160,
		Extension:    "webm",
	})
	return result
}
