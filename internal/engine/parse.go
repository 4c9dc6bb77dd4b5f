package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"vidfetch/pkg/models"
)

var ErrNoOutputFile = errors.New("no output file found")

// skippedExtensions are partial files left behind by the engine
var skippedExtensions = []string{".part", ".ytdl", ".temp"}

// probeJSON mirrors the fields of yt-dlp --dump-single-json we care about
type probeJSON struct {
	Title      string       `json:"title"`
	Thumbnail  string       `json:"thumbnail"`
	Duration   *float64     `json:"duration"`
	WebpageURL string       `json:"webpage_url"`
	Extractor  string       `json:"extractor"`
	Formats    []formatJSON `json:"formats"`
}

type formatJSON struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Height         *float64 `json:"height"`
	TBR            *float64 `json:"tbr"`
	ABR            *float64 `json:"abr"`
	FileSize       *float64 `json:"filesize"`
	FileSizeApprox *float64 `json:"filesize_approx"`
	FormatNote     string   `json:"format_note"`
}

// ParseProbe decodes engine JSON. Missing or null numbers become 0.
func ParseProbe(data []byte) (*ProbeResult, error) {
	var raw probeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse engine output: %w", err)
	}

	result := &ProbeResult{
		Title:      raw.Title,
		Thumbnail:  raw.Thumbnail,
		Duration:   raw.Duration,
		WebpageURL: raw.WebpageURL,
		Extractor:  raw.Extractor,
		Formats:    make([]models.FormatDescriptor, 0, len(raw.Formats)),
	}

	for _, f := range raw.Formats {
		d := models.FormatDescriptor{
			FormatID:     f.FormatID,
			VideoCodec:   f.VCodec,
			AudioCodec:   f.ACodec,
			Height:       int(deref(f.Height)),
			Bitrate:      deref(f.TBR),
			AudioBitrate: deref(f.ABR),
			Extension:    f.Ext,
			Note:         f.FormatNote,
		}
		if size := firstNonNil(f.FileSize, f.FileSizeApprox); size != nil {
			n := int64(*size)
			d.FileSize = &n
		}
		result.Formats = append(result.Formats, d)
	}

	return result, nil
}

// FindOutput locates the file the engine wrote for id in dir and returns its
// extension without the dot.
func FindOutput(dir, id string) (string, error) {
	candidates, err := filepath.Glob(filepath.Join(dir, id+".*"))
	if err != nil {
		return "", err
	}

	files := candidates[:0]
	for _, c := range candidates {
		if !isPartial(c) {
			files = append(files, c)
		}
	}
	if len(files) == 0 {
		return "", ErrNoOutputFile
	}

	sort.Strings(files)
	return strings.TrimPrefix(filepath.Ext(files[0]), "."), nil
}

func isPartial(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, skip := range skippedExtensions {
		if ext == skip {
			return true
		}
	}
	// intermediate streams before merge look like <id>.f137.mp4
	parts := strings.Split(filepath.Base(path), ".")
	if len(parts) < 3 {
		return false
	}
	tag := parts[len(parts)-2]
	return len(tag) > 1 && tag[0] == 'f' && strings.Trim(tag[1:], "0123456789") == ""
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func firstNonNil(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
