package ytdl

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	ytdlpReleaseAPI = "https://api.github.com/repos/yt-dlp/yt-dlp/releases/latest"
	versionFile     = "yt-dlp.version"
	checksumAsset   = "SHA2-256SUMS"
)

var (
	ErrNoAsset          = errors.New("no yt-dlp asset for this platform")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// HTTPClient is the subset of *http.Client the installer needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Manager installs and updates the yt-dlp binary in a tools directory
type Manager struct {
	toolsDir string
	client   HTTPClient
	logger   *slog.Logger

	mu             sync.Mutex
	currentVersion string
	lastCheckTime  time.Time
}

// GitHubRelease represents a GitHub release
type GitHubRelease struct {
	TagName string         `json:"tag_name"`
	Assets  []ReleaseAsset `json:"assets"`
}

type ReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// NewManager creates an installer using a default HTTP client
func NewManager(toolsDir string, logger *slog.Logger) *Manager {
	return NewManagerWithClient(toolsDir, &http.Client{Timeout: 5 * time.Minute}, logger)
}

// NewManagerWithClient creates an installer with a custom HTTP client
func NewManagerWithClient(toolsDir string, client HTTPClient, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		toolsDir: toolsDir,
		client:   client,
		logger:   logger.With("component", "ytdl"),
	}
	if data, err := os.ReadFile(filepath.Join(toolsDir, versionFile)); err == nil {
		m.currentVersion = strings.TrimSpace(string(data))
	}
	return m
}

// BinaryPath returns where the yt-dlp executable lives once installed
func (m *Manager) BinaryPath() string {
	name := "yt-dlp"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(m.toolsDir, name)
}

// IsInstalled checks if yt-dlp is installed
func (m *Manager) IsInstalled() bool {
	info, err := os.Stat(m.BinaryPath())
	return err == nil && info.Mode().IsRegular()
}

// CurrentVersion returns the installed release tag, if known
func (m *Manager) CurrentVersion() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentVersion
}

// LastCheck returns when the release API was last queried
func (m *Manager) LastCheck() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCheckTime
}

// CheckForUpdate reports the latest release tag and whether it differs
// from what is installed
func (m *Manager) CheckForUpdate(ctx context.Context) (string, bool, error) {
	release, err := m.latestRelease(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to check for updates: %w", err)
	}

	if !m.IsInstalled() {
		return release.TagName, true, nil
	}

	current := m.CurrentVersion()
	return release.TagName, current == "" || current != release.TagName, nil
}

// Download fetches the latest release asset for this platform and installs it
func (m *Manager) Download(ctx context.Context) error {
	release, err := m.latestRelease(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch release info: %w", err)
	}

	asset := assetName()
	var downloadURL string
	for _, a := range release.Assets {
		if a.Name == asset {
			downloadURL = a.BrowserDownloadURL
			break
		}
	}
	if downloadURL == "" {
		return fmt.Errorf("%w: %s", ErrNoAsset, asset)
	}

	expected, err := m.expectedChecksum(ctx, release, asset)
	if err != nil {
		return err
	}

	m.logger.Info("downloading yt-dlp", "version", release.TagName, "asset", asset)

	resp, err := m.get(ctx, downloadURL)
	if err != nil {
		return fmt.Errorf("failed to download yt-dlp: %w", err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(m.toolsDir, 0755); err != nil {
		return fmt.Errorf("failed to create tools directory: %w", err)
	}

	target := m.BinaryPath()
	tmpPath := target + ".tmp"

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	hash := sha256.New()
	_, err = io.Copy(io.MultiWriter(out, hash), resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write file: %w", err)
	}

	if expected != "" {
		if actual := hex.EncodeToString(hash.Sum(nil)); actual != expected {
			os.Remove(tmpPath)
			return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
		}
	}

	if err := os.Chmod(tmpPath, 0755); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to make executable: %w", err)
	}

	// rename over an existing file is not atomic on windows
	if runtime.GOOS == "windows" && m.IsInstalled() {
		if err := os.Remove(target); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to remove old file: %w", err)
		}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.toolsDir, versionFile), []byte(release.TagName+"\n"), 0644); err != nil {
		m.logger.Warn("failed to record yt-dlp version", "error", err)
	}

	m.mu.Lock()
	m.currentVersion = release.TagName
	m.mu.Unlock()

	m.logger.Info("yt-dlp installed", "version", release.TagName, "path", target)
	return nil
}

// EnsureInstalled downloads yt-dlp when missing and returns its path
func (m *Manager) EnsureInstalled(ctx context.Context) (string, error) {
	if m.IsInstalled() {
		return m.BinaryPath(), nil
	}

	m.logger.Info("yt-dlp not found, downloading", "dir", m.toolsDir)
	if err := m.Download(ctx); err != nil {
		return "", err
	}
	return m.BinaryPath(), nil
}

// AutoUpdate checks for and applies updates if available
func (m *Manager) AutoUpdate(ctx context.Context) error {
	latest, hasUpdate, err := m.CheckForUpdate(ctx)
	if err != nil {
		return err
	}

	if !hasUpdate {
		m.logger.Info("yt-dlp is up to date", "version", latest)
		return nil
	}

	m.logger.Info("updating yt-dlp", "from", m.CurrentVersion(), "to", latest)
	return m.Download(ctx)
}

func (m *Manager) latestRelease(ctx context.Context) (*GitHubRelease, error) {
	resp, err := m.get(ctx, ytdlpReleaseAPI)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to parse release info: %w", err)
	}

	m.mu.Lock()
	m.lastCheckTime = time.Now()
	m.mu.Unlock()

	return &release, nil
}

// expectedChecksum looks asset up in the release's SHA2-256SUMS file. Releases
// without a sums file are not verified.
func (m *Manager) expectedChecksum(ctx context.Context, release *GitHubRelease, asset string) (string, error) {
	var sumsURL string
	for _, a := range release.Assets {
		if a.Name == checksumAsset {
			sumsURL = a.BrowserDownloadURL
			break
		}
	}
	if sumsURL == "" {
		m.logger.Warn("release has no checksum file, skipping verification", "version", release.TagName)
		return "", nil
	}

	resp, err := m.get(ctx, sumsURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch checksums: %w", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && strings.TrimPrefix(fields[1], "*") == asset {
			return strings.ToLower(fields[0]), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read checksums: %w", err)
	}
	return "", fmt.Errorf("%w: %s not listed in %s", ErrChecksumMismatch, asset, checksumAsset)
}

// get issues a GET and rejects non-200 responses
func (m *Manager) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "vidfetch")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}
	return resp, nil
}

// assetName returns the release asset built for the current platform
func assetName() string {
	switch runtime.GOOS {
	case "windows":
		return "yt-dlp.exe"
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "yt-dlp_linux_aarch64"
		}
		return "yt-dlp_linux"
	case "darwin":
		return "yt-dlp_macos"
	default:
		return "yt-dlp"
	}
}
