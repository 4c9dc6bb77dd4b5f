// Package retention deletes downloaded files once they are older than the
// retention window.
package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultMaxAge is how long a downloaded file is kept
const DefaultMaxAge = time.Hour

// ActiveChecker reports files that belong to a download still in progress
type ActiveChecker interface {
	IsActive(fileName string) bool
}

// Report summarizes one sweep
type Report struct {
	Scanned int
	Deleted int
	Skipped int
	Failed  int
}

// Sweeper purges stale files from a directory
type Sweeper struct {
	dir    string
	maxAge time.Duration
	active ActiveChecker
	logger *slog.Logger
	now    func() time.Time
	remove func(string) error
}

// NewSweeper creates a sweeper for dir. active may be nil.
func NewSweeper(dir string, maxAge time.Duration, active ActiveChecker, logger *slog.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		dir:    dir,
		maxAge: maxAge,
		active: active,
		logger: logger,
		now:    time.Now,
		remove: os.Remove,
	}
}

// Sweep deletes every regular file whose modification time is older than
// maxAge. A failed deletion is logged and the sweep moves on.
func (s *Sweeper) Sweep(ctx context.Context) Report {
	var report Report

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("failed to read download directory", "dir", s.dir, "error", err)
		return report
	}

	cutoff := s.now().Add(-s.maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			s.logger.Warn("sweep cancelled", "deleted", report.Deleted)
			return report
		}
		if !entry.Type().IsRegular() {
			continue
		}
		report.Scanned++

		info, err := entry.Info()
		if err != nil {
			// removed between listing and stat
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if s.active != nil && s.active.IsActive(entry.Name()) {
			report.Skipped++
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := s.remove(path); err != nil && !os.IsNotExist(err) {
			report.Failed++
			s.logger.Error("failed to delete expired download", "path", path, "error", err)
			continue
		}
		report.Deleted++
	}

	if report.Deleted > 0 || report.Failed > 0 {
		s.logger.Info("download sweep finished",
			"scanned", report.Scanned,
			"deleted", report.Deleted,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	return report
}

// Run sweeps once immediately and then every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.maxAge / 6
	}

	s.Sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
