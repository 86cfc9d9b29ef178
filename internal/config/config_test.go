package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Limits.MaxSlides)
	assert.Equal(t, int64(50*1024*1024), cfg.Limits.MaxUploadBytes)
	assert.Equal(t, 3, cfg.Limits.MaxConcurrentJobs)
	assert.Equal(t, 30*time.Minute, cfg.Limits.JobTimeout)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3.1:8b", cfg.LLM.Model)
	assert.Equal(t, []string{"en", "fr", "hi"}, cfg.Languages)
	assert.True(t, cfg.Cleanup.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("MAX_SLIDES", "4")
	t.Setenv("JOB_TIMEOUT", "5m")
	t.Setenv("CLEANUP_ENABLED", "false")
	t.Setenv("SUPPORTED_LANGUAGES", "en, fr")
	t.Setenv("LLM_NARRATION_TEMPERATURE", "0.9")

	cfg := Load()

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Limits.MaxSlides)
	assert.Equal(t, 5*time.Minute, cfg.Limits.JobTimeout)
	assert.False(t, cfg.Cleanup.Enabled)
	assert.Equal(t, []string{"en", "fr"}, cfg.Languages)
	assert.InDelta(t, 0.9, cfg.LLM.NarrationTemperature, 1e-9)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_SLIDES", "not-a-number")
	t.Setenv("JOB_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 10, cfg.Limits.MaxSlides)
	assert.Equal(t, 30*time.Minute, cfg.Limits.JobTimeout)
}

func TestValidateRejectsUnvoicedLanguage(t *testing.T) {
	t.Setenv("SUPPORTED_LANGUAGES", "en,de")

	cfg := Load()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "de")
}

func TestEnsureDirs(t *testing.T) {
	storage := StorageConfig{DataDir: filepath.Join(t.TempDir(), "data")}

	require.NoError(t, storage.EnsureDirs())

	for _, dir := range []string{
		storage.UploadsDir(), storage.AudioDir(), storage.ImagesDir(),
		storage.VideosDir(), storage.FinalVideosDir(),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
