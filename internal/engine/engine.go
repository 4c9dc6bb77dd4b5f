// Package engine is the narrow contract to the external extraction engine.
package engine

import (
	"context"

	"vidfetch/pkg/models"
)

// ProbeResult is the metadata-only answer for a URL
type ProbeResult struct {
	Title      string
	Thumbnail  string
	Duration   *float64
	WebpageURL string
	Extractor  string
	Formats    []models.FormatDescriptor
}

// FetchRequest describes one real download
type FetchRequest struct {
	URL            string
	FormatSelector string
	OutputDir      string
	// ID names the output file; the engine appends the extension.
	ID           string
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
}

// Engine resolves and downloads media.
//
// Probe never fetches media bytes. Fetch writes <OutputDir>/<ID>.<ext> and
// returns ext. Engine failures are returned as *models.ExtractionError;
// context errors are returned wrapped so callers can tell a deadline apart.
type Engine interface {
	Probe(ctx context.Context, url string) (*ProbeResult, error)
	Fetch(ctx context.Context, req FetchRequest) (string, error)
}
