// Package info resolves a source URL into its normalized tier menu.
package info

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"vidfetch/internal/cache"
	"vidfetch/internal/engine"
	"vidfetch/internal/format"
	"vidfetch/pkg/models"
)

// Service looks up metadata through the cache, probing the engine on a miss
type Service struct {
	engine       engine.Engine
	cache        cache.Store
	policy       format.Policy
	probeTimeout time.Duration
	logger       *slog.Logger
	group        singleflight.Group
}

// NewService creates an info service. A zero probeTimeout disables the
// deadline.
func NewService(eng engine.Engine, store cache.Store, policy format.Policy, probeTimeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = format.PolicyFirstSeen
	}

	return &Service{
		engine:       eng,
		cache:        store,
		policy:       policy,
		probeTimeout: probeTimeout,
		logger:       logger,
	}
}

// GetVideoInfo returns the metadata for url. Concurrent misses for the same
// url share a single probe.
func (s *Service) GetVideoInfo(ctx context.Context, url string) (*models.VideoMetadata, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &models.ValidationError{Field: "url", Message: "URL is required"}
	}

	if meta, ok := s.cache.Get(ctx, url); ok {
		s.logger.Debug("metadata cache hit", "url", url)
		return meta, nil
	}

	v, err, shared := s.group.Do(url, func() (interface{}, error) {
		// the probe outlives a single caller's cancellation since others may share it
		return s.probe(context.WithoutCancel(ctx), url)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("shared in-flight probe", "url", url)
	}

	return v.(*models.VideoMetadata), nil
}

func (s *Service) probe(ctx context.Context, url string) (*models.VideoMetadata, error) {
	if s.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.probeTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.engine.Probe(ctx, url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &models.TimeoutError{Op: "metadata lookup", Timeout: s.probeTimeout}
		}
		var ee *models.ExtractionError
		if errors.As(err, &ee) {
			return nil, ee
		}
		return nil, &models.ExtractionError{Message: err.Error()}
	}

	meta := &models.VideoMetadata{
		Title:       result.Title,
		Thumbnail:   result.Thumbnail,
		Duration:    result.Duration,
		SourceURL:   url,
		WebpageURL:  result.WebpageURL,
		Extractor:   result.Extractor,
		Formats:     format.Normalize(result.Formats, s.policy),
		Descriptors: result.Formats,
	}

	s.cache.Put(ctx, url, meta)
	s.logger.Info("metadata fetched",
		"url", url,
		"descriptors", len(result.Formats),
		"tiers", meta.Tiers(),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return meta, nil
}
