package ytdl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryPath(t *testing.T) {
	toolsDir := t.TempDir()
	mgr := NewManager(toolsDir, nil)

	expected := filepath.Join(toolsDir, "yt-dlp")
	if runtime.GOOS == "windows" {
		expected += ".exe"
	}
	assert.Equal(t, expected, mgr.BinaryPath())
}

func TestIsInstalled(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(path string) error
		wantInstalled bool
	}{
		{"not installed", func(string) error { return nil }, false},
		{"installed", func(p string) error { return os.WriteFile(p, []byte("bin"), 0755) }, true},
		{"directory instead of file", func(p string) error { return os.Mkdir(p, 0755) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManager(t.TempDir(), nil)
			require.NoError(t, tt.setup(mgr.BinaryPath()))
			assert.Equal(t, tt.wantInstalled, mgr.IsInstalled())
		})
	}
}

func TestCheckForUpdate(t *testing.T) {
	tests := []struct {
		name       string
		installed  bool
		current    string
		wantUpdate bool
	}{
		{"not installed", false, "", true},
		{"unknown installed version", true, "", true},
		{"older version", true, "2024.01.01", true},
		{"up to date", true, "2024.02.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockHTTPClient{
				DoFunc: func(req *http.Request) (*http.Response, error) {
					return NewMockReleaseResponse("2024.02.01", assetName()), nil
				},
			}
			mgr := NewManagerWithClient(t.TempDir(), client, nil)
			mgr.currentVersion = tt.current
			if tt.installed {
				require.NoError(t, os.WriteFile(mgr.BinaryPath(), []byte("bin"), 0755))
			}

			version, hasUpdate, err := mgr.CheckForUpdate(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "2024.02.01", version)
			assert.Equal(t, tt.wantUpdate, hasUpdate)
			assert.False(t, mgr.LastCheck().IsZero())
		})
	}
}

func TestCheckForUpdateErrors(t *testing.T) {
	tests := []struct {
		name    string
		do      func(*http.Request) (*http.Response, error)
		wantMsg string
	}{
		{
			name:    "network error",
			do:      func(*http.Request) (*http.Response, error) { return nil, fmt.Errorf("network error") },
			wantMsg: "failed to check for updates",
		},
		{
			name: "non-200 status",
			do: func(*http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusNotFound, Body: http.NoBody}, nil
			},
			wantMsg: "status 404",
		},
		{
			name: "empty body",
			do: func(*http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
			},
			wantMsg: "failed to parse release info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManagerWithClient(t.TempDir(), &MockHTTPClient{DoFunc: tt.do}, nil)

			_, _, err := mgr.CheckForUpdate(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDownloadInstallsBinary(t *testing.T) {
	toolsDir := t.TempDir()
	client := releaseThenBinary("2024.01.01", assetName(), []byte("fake yt-dlp binary"))
	mgr := NewManagerWithClient(toolsDir, client, nil)

	require.NoError(t, mgr.Download(context.Background()))

	assert.True(t, mgr.IsInstalled())
	assert.Equal(t, "2024.01.01", mgr.CurrentVersion())
	assert.Equal(t, []string{ytdlpReleaseAPI, sumsURL, "http://example.com/" + assetName()}, client.Requested())

	data, err := os.ReadFile(mgr.BinaryPath())
	require.NoError(t, err)
	assert.Equal(t, "fake yt-dlp binary", string(data))
	assert.NoFileExists(t, mgr.BinaryPath()+".tmp")

	// the version survives a restart
	reloaded := NewManagerWithClient(toolsDir, client, nil)
	assert.Equal(t, "2024.01.01", reloaded.CurrentVersion())
}

func TestDownloadReplacesExisting(t *testing.T) {
	mgr := NewManagerWithClient(t.TempDir(), releaseThenBinary("2024.02.01", assetName(), []byte("new version")), nil)
	require.NoError(t, os.WriteFile(mgr.BinaryPath(), []byte("old version"), 0755))

	require.NoError(t, mgr.Download(context.Background()))

	data, err := os.ReadFile(mgr.BinaryPath())
	require.NoError(t, err)
	assert.Equal(t, "new version", string(data))
}

func TestDownloadNoMatchingAsset(t *testing.T) {
	mgr := NewManagerWithClient(t.TempDir(), releaseThenBinary("2024.01.01", "wrong-platform.bin", nil), nil)

	err := mgr.Download(context.Background())
	assert.ErrorIs(t, err, ErrNoAsset)
	assert.False(t, mgr.IsInstalled())
}

func TestDownloadChecksum(t *testing.T) {
	tests := []struct {
		name    string
		sums    string
		wantErr bool
	}{
		{"star prefixed name", "", false},
		{"mismatch", strings.Repeat("0", 64) + "  " + assetName() + "\n", true},
		{"asset not listed", strings.Repeat("0", 64) + "  yt-dlp_other\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte("fake yt-dlp binary")
			sums := tt.sums
			if sums == "" {
				sum := sha256.Sum256(data)
				sums = hex.EncodeToString(sum[:]) + " *" + assetName() + "\n"
			}

			mgr := NewManagerWithClient(t.TempDir(), releaseWithSums("2024.01.01", assetName(), data, sums), nil)
			err := mgr.Download(context.Background())

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrChecksumMismatch)
				assert.False(t, mgr.IsInstalled())
				assert.NoFileExists(t, mgr.BinaryPath()+".tmp")
				return
			}
			require.NoError(t, err)
			assert.True(t, mgr.IsInstalled())
		})
	}
}

func TestDownloadAssetFailure(t *testing.T) {
	client := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			if req.URL.String() == ytdlpReleaseAPI {
				return NewMockReleaseResponse("2024.01.01", assetName()), nil
			}
			return &http.Response{StatusCode: http.StatusNotFound, Body: http.NoBody}, nil
		},
	}
	mgr := NewManagerWithClient(t.TempDir(), client, nil)

	err := mgr.Download(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.False(t, mgr.IsInstalled())
}

func TestEnsureInstalled(t *testing.T) {
	client := releaseThenBinary("2024.01.01", assetName(), []byte("binary data"))
	mgr := NewManagerWithClient(t.TempDir(), client, nil)

	path, err := mgr.EnsureInstalled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mgr.BinaryPath(), path)
	assert.Len(t, client.Requested(), 3)

	// second call is a no-op
	path, err = mgr.EnsureInstalled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mgr.BinaryPath(), path)
	assert.Len(t, client.Requested(), 3)
}

func TestAutoUpdate(t *testing.T) {
	t.Run("applies newer release", func(t *testing.T) {
		mgr := NewManagerWithClient(t.TempDir(), releaseThenBinary("2024.02.01", assetName(), []byte("new")), nil)
		mgr.currentVersion = "2024.01.01"
		require.NoError(t, os.WriteFile(mgr.BinaryPath(), []byte("old"), 0755))

		require.NoError(t, mgr.AutoUpdate(context.Background()))
		assert.Equal(t, "2024.02.01", mgr.CurrentVersion())
	})

	t.Run("up to date", func(t *testing.T) {
		client := releaseThenBinary("2024.01.01", assetName(), []byte("new"))
		mgr := NewManagerWithClient(t.TempDir(), client, nil)
		mgr.currentVersion = "2024.01.01"
		require.NoError(t, os.WriteFile(mgr.BinaryPath(), []byte("current"), 0755))

		require.NoError(t, mgr.AutoUpdate(context.Background()))
		assert.Len(t, client.Requested(), 1)
	})

	t.Run("check error", func(t *testing.T) {
		client := &MockHTTPClient{
			DoFunc: func(*http.Request) (*http.Response, error) { return nil, fmt.Errorf("network error") },
		}
		mgr := NewManagerWithClient(t.TempDir(), client, nil)
		assert.Error(t, mgr.AutoUpdate(context.Background()))
	})
}

func TestAssetName(t *testing.T) {
	name := assetName()

	switch runtime.GOOS {
	case "windows":
		assert.Equal(t, "yt-dlp.exe", name)
	case "linux":
		if runtime.GOARCH == "arm64" {
			assert.Equal(t, "yt-dlp_linux_aarch64", name)
		} else {
			assert.Equal(t, "yt-dlp_linux", name)
		}
	case "darwin":
		assert.Equal(t, "yt-dlp_macos", name)
	default:
		assert.Equal(t, "yt-dlp", name)
	}
}
