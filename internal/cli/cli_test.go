package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidfetch/pkg/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out, errOut bytes.Buffer
	root := NewCLI("1.2.3").newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := NewCLI("1.2.3").newRootCmd()

	names := make([]string, 0)
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}

	for _, want := range []string{"serve", "probe", "sweep", "engine", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vidfetch 1.2.3\n", out)

	out, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3")
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"probe without url", []string{"probe"}},
		{"probe with two urls", []string{"probe", "a", "b"}},
		{"version with args", []string{"version", "extra"}},
		{"unknown command", []string{"download"}},
		{"unknown flag", []string{"serve", "--bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestConfigErrorsExitCode(t *testing.T) {
	t.Run("missing config file", func(t *testing.T) {
		_, err := execute(t, "sweep", "--config", filepath.Join(t.TempDir(), "absent.yaml"))

		var ee *ExitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, ExitConfigError, ee.Code)
	})

	t.Run("invalid tier policy", func(t *testing.T) {
		t.Setenv("VIDFETCH_ENGINE_TIERPOLICY", "loudest")
		_, err := execute(t, "serve", "--port", "0")

		var ee *ExitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, ExitConfigError, ee.Code)
	})

	t.Run("unknown log level", func(t *testing.T) {
		_, err := execute(t, "sweep", "--log-level", "chatty")

		var ee *ExitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, ExitConfigError, ee.Code)
	})
}

func TestSweepCommand(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "old.mp4")
	fresh := filepath.Join(dir, "fresh.mp4")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	out, err := execute(t, "sweep", "--download-dir", dir)
	require.NoError(t, err)

	assert.Equal(t, "scanned 2, deleted 1, skipped 0, failed 0\n", out)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestSweepCommandWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	past := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(path, past, past))

	configPath := filepath.Join(t.TempDir(), "vidfetch.yaml")
	content := "downloads:\n  dir: " + dir + "\n  maxAge: 5m\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	out, err := execute(t, "sweep", "--config", configPath)
	require.NoError(t, err)

	assert.Contains(t, out, "deleted 1")
	assert.NoFileExists(t, path)
}

func TestPrintFormats(t *testing.T) {
	size := int64(5 * 1024 * 1024)
	meta := &models.VideoMetadata{
		Title: "Sample",
		Formats: []models.SelectedFormat{
			{FormatID: "137", Extension: "mp4", Tier: models.Tier1080p, FileSize: &size},
			{FormatID: "251", Extension: "webm", Tier: models.TierAudio, Note: "audio only"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printFormats(&buf, meta))

	out := buf.String()
	assert.Contains(t, out, "Sample")
	assert.Contains(t, out, "QUALITY")
	assert.Contains(t, out, "1080p")
	assert.Contains(t, out, "5.0 MiB")
	assert.Contains(t, out, "audio only")
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, humanBytes(tt.in))
	}
}

func TestExitError(t *testing.T) {
	inner := assert.AnError
	ee := &ExitError{Code: ExitEngineError, Err: inner}

	assert.Equal(t, inner.Error(), ee.Error())
	assert.ErrorIs(t, ee, inner)
	assert.Equal(t, "", (&ExitError{Code: ExitOK}).Error())
}
