package tts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/config"
)

func testTTSConfig(binary string) config.TTSConfig {
	return config.TTSConfig{
		Binary: binary,
		Rate:   "+0%",
		Voices: map[string]string{
			"en": "en-US-AriaNeural",
			"fr": "fr-FR-DeniseNeural",
			"hi": "hi-IN-SwaraNeural",
		},
	}
}

// stubBinary writes a shell script that copies its last --write-media
// argument into place, standing in for the real edge-tts CLI.
func stubBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edge-tts")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestSynthesizeWritesAudioFile(t *testing.T) {
	binary := stubBinary(t, "#!/bin/sh\nwhile [ $# -gt 0 ]; do\n  if [ \"$1\" = \"--write-media\" ]; then out=\"$2\"; fi\n  shift\ndone\nprintf audio > \"$out\"\n")
	outDir := t.TempDir()

	synth := NewSynthesizer(testTTSConfig(binary), outDir)

	path, err := synth.Synthesize(context.Background(), "Hello class, today we study gravity.", "en")
	require.NoError(t, err)

	assert.Equal(t, outDir, filepath.Dir(path))
	assert.Equal(t, ".mp3", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	synth := NewSynthesizer(testTTSConfig("edge-tts"), t.TempDir())

	_, err := synth.Synthesize(context.Background(), "   ", "en")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeTTSGeneration))
}

func TestSynthesizeMissingBinary(t *testing.T) {
	synth := NewSynthesizer(testTTSConfig(filepath.Join(t.TempDir(), "missing-binary")), t.TempDir())

	_, err := synth.Synthesize(context.Background(), "some narration", "en")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeTTSGeneration))
}

func TestSynthesizeSurfacesStderr(t *testing.T) {
	binary := stubBinary(t, "#!/bin/sh\necho 'voice unavailable' >&2\nexit 1\n")

	synth := NewSynthesizer(testTTSConfig(binary), t.TempDir())

	_, err := synth.Synthesize(context.Background(), "some narration", "en")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeTTSGeneration))
	assert.Contains(t, err.Error(), "voice unavailable")
}

func TestVoiceSelection(t *testing.T) {
	synth := NewSynthesizer(testTTSConfig("edge-tts"), t.TempDir())

	assert.Equal(t, "fr-FR-DeniseNeural", synth.voiceFor("fr"))
	assert.Equal(t, "hi-IN-SwaraNeural", synth.voiceFor("hi"))
	// Unknown languages fall back to the English voice.
	assert.Equal(t, "en-US-AriaNeural", synth.voiceFor("de"))
}

func TestArgsIncludeRateWhenSet(t *testing.T) {
	cfg := testTTSConfig("edge-tts")
	cfg.Rate = "+10%"
	synth := NewSynthesizer(cfg, t.TempDir())

	args := synth.args("text", "en", "/tmp/out.mp3")
	assert.Contains(t, args, "--rate")
	assert.Contains(t, args, "+10%")

	cfg.Rate = ""
	synth = NewSynthesizer(cfg, t.TempDir())
	assert.NotContains(t, synth.args("text", "en", "/tmp/out.mp3"), "--rate")
}
