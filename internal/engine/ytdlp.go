package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"vidfetch/pkg/models"
)

// YtDLP runs the yt-dlp binary through go-ytdlp
type YtDLP struct {
	path   string
	logger *slog.Logger
}

// NewYtDLP creates an engine using the executable at path
func NewYtDLP(path string, logger *slog.Logger) *YtDLP {
	if path == "" {
		path = "yt-dlp"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &YtDLP{
		path:   path,
		logger: logger,
	}
}

// Path returns the executable in use
func (y *YtDLP) Path() string {
	return y.path
}

// Probe fetches metadata for url without downloading media
func (y *YtDLP) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	cmd := ytdlp.New().
		SetExecutable(y.path).
		DumpSingleJSON().
		SkipDownload().
		NoPlaylist().
		NoWarnings()

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, y.engineError(ctx, "probe", res, err)
	}

	result, err := ParseProbe([]byte(res.Stdout))
	if err != nil {
		return nil, &models.ExtractionError{Message: err.Error()}
	}

	y.logger.Debug("probe finished", "url", url, "formats", len(result.Formats))
	return result, nil
}

// Fetch downloads req.URL into req.OutputDir/req.ID.<ext>
func (y *YtDLP) Fetch(ctx context.Context, req FetchRequest) (string, error) {
	outputTemplate := filepath.Join(req.OutputDir, req.ID+".%(ext)s")

	cmd := ytdlp.New().
		SetExecutable(y.path).
		NoPlaylist().
		NoWarnings().
		NoProgress().
		Format(req.FormatSelector).
		Output(outputTemplate)

	if req.ExtractAudio {
		cmd = cmd.ExtractAudio().
			AudioFormat(req.AudioFormat).
			AudioQuality(req.AudioQuality)
	}

	y.logger.Debug("starting fetch", "url", req.URL, "format", req.FormatSelector, "id", req.ID)

	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		return "", y.engineError(ctx, "fetch", res, err)
	}

	if req.ExtractAudio && req.AudioFormat != "" {
		return req.AudioFormat, nil
	}

	ext, err := FindOutput(req.OutputDir, req.ID)
	if err != nil {
		return "", &models.ExtractionError{Message: fmt.Sprintf("download finished but %v", err)}
	}
	return ext, nil
}

// engineError keeps context errors intact and turns everything else into an
// ExtractionError carrying the engine's own message.
func (y *YtDLP) engineError(ctx context.Context, op string, res *ytdlp.Result, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("engine %s: %w", op, ctxErr)
	}

	msg := err.Error()
	if res != nil {
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			msg = lastErrorLine(stderr)
		}
	}

	y.logger.Warn("engine call failed", "op", op, "error", msg)
	return &models.ExtractionError{Message: msg}
}

// lastErrorLine picks the final "ERROR:" line yt-dlp printed, or the last
// line when there is none.
func lastErrorLine(stderr string) string {
	lines := strings.Split(stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return line
		}
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
