//go:build integration

package ytdl

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallFromGitHub(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	mgr := NewManager(t.TempDir(), nil)

	version, hasUpdate, err := mgr.CheckForUpdate(ctx)
	require.NoError(t, err)
	assert.True(t, hasUpdate, "should have update when not installed")
	assert.NotEmpty(t, version)

	path, err := mgr.EnsureInstalled(ctx)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(1000000), "yt-dlp should be at least 1MB")
	assert.Equal(t, version, mgr.CurrentVersion())

	_, hasUpdate, err = mgr.CheckForUpdate(ctx)
	require.NoError(t, err)
	assert.False(t, hasUpdate)
}
