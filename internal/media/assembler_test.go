package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/config"
)

func testAssembler(t *testing.T, ffmpeg string) *Assembler {
	t.Helper()
	storage := config.StorageConfig{DataDir: t.TempDir()}
	require.NoError(t, storage.EnsureDirs())
	return NewAssembler(config.VideoConfig{
		FFmpegPath: ffmpeg,
		Width:      1280,
		Height:     720,
		FPS:        30,
		CRF:        23,
		Preset:     "fast",
	}, storage)
}

func TestMuxArgs(t *testing.T) {
	a := testAssembler(t, "ffmpeg")

	args := a.muxArgs("slide.png", "narration.mp3", "out.mp4")

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-loop 1")
	assert.Contains(t, joined, "-i slide.png")
	assert.Contains(t, joined, "-i narration.mp3")
	assert.Contains(t, joined, "-r 30")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-preset fast")
	assert.Contains(t, joined, "-crf 23")
	assert.Contains(t, joined, "-c:a aac")
	assert.Contains(t, joined, "-shortest")
	assert.Contains(t, joined, "-pix_fmt yuv420p")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestRenderArgsUseConfiguredGeometry(t *testing.T) {
	a := testAssembler(t, "ffmpeg")

	joined := strings.Join(a.renderArgs("text.txt", "out.png"), " ")
	assert.Contains(t, joined, "s=1280x720")
	assert.Contains(t, joined, "textfile=text.txt")
	assert.Contains(t, joined, "-frames:v 1")
}

func TestStitchSingleVideoPassthrough(t *testing.T) {
	a := testAssembler(t, "ffmpeg")

	out, err := a.Stitch(context.Background(), []string{"/data/videos/only.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "/data/videos/only.mp4", out)
}

func TestStitchRejectsEmptyInput(t *testing.T) {
	a := testAssembler(t, "ffmpeg")

	_, err := a.Stitch(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeVideoStitching))
}

func TestWriteConcatList(t *testing.T) {
	listFile := filepath.Join(t.TempDir(), "list.txt")

	require.NoError(t, writeConcatList(listFile, []string{"/videos/a.mp4", "/videos/b.mp4"}))

	data, err := os.ReadFile(listFile)
	require.NoError(t, err)
	assert.Equal(t, "file '/videos/a.mp4'\nfile '/videos/b.mp4'\n", string(data))
}

func TestMissingFFmpegReportsCode(t *testing.T) {
	a := testAssembler(t, filepath.Join(t.TempDir(), "no-such-ffmpeg"))

	_, err := a.CreateSlideVideo(context.Background(), "img.png", "audio.mp3")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeFFmpegNotFound))
}

func TestStubbedFFmpegRun(t *testing.T) {
	// The stub writes its last argument so the full exec path is covered.
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor arg in \"$@\"; do out=\"$arg\"; done\nprintf video > \"$out\"\n"
	require.NoError(t, os.WriteFile(stub, []byte(script), 0o755))

	a := testAssembler(t, stub)

	out, err := a.CreateSlideVideo(context.Background(), "img.png", "audio.mp3")
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
	assert.Equal(t, a.videosDir, filepath.Dir(out))
}

func TestFailingFFmpegSurfacesStderr(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\necho 'unknown encoder libx264' >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(stub, []byte(script), 0o755))

	a := testAssembler(t, stub)

	_, err := a.CreateSlideVideo(context.Background(), "img.png", "audio.mp3")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeVideoAssembly))
	assert.Contains(t, err.Error(), "unknown encoder")
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "", wrapText("   ", 10))
	assert.Equal(t, "short", wrapText("short", 10))

	wrapped := wrapText("the quick brown fox jumps over the lazy dog", 15)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 15)
	}
	assert.Equal(t, "the quick brown fox jumps over the lazy dog",
		strings.ReplaceAll(wrapped, "\n", " "))
}
