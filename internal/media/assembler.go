// Package media renders slide cards and assembles narrated videos with
// ffmpeg.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/config"
)

// maxLineChars is the wrap width for slide card text.
const maxLineChars = 48

// Assembler drives ffmpeg for card rendering, per-slide muxing and
// final stitching.
type Assembler struct {
	ffmpegCmd string
	width     int
	height    int
	fps       int
	crf       int
	preset    string
	imagesDir string
	videosDir string
	finalDir  string
}

// NewAssembler creates an assembler from the video and storage settings.
func NewAssembler(video config.VideoConfig, storage config.StorageConfig) *Assembler {
	cmd := video.FFmpegPath
	if cmd == "" {
		cmd = "ffmpeg"
	}
	return &Assembler{
		ffmpegCmd: cmd,
		width:     video.Width,
		height:    video.Height,
		fps:       video.FPS,
		crf:       video.CRF,
		preset:    video.Preset,
		imagesDir: storage.ImagesDir(),
		videosDir: storage.VideosDir(),
		finalDir:  storage.FinalVideosDir(),
	}
}

// RenderSlideCard draws the slide text onto a plain background and
// returns the PNG path.
func (a *Assembler) RenderSlideCard(ctx context.Context, text string) (string, error) {
	id := uuid.New().String()
	textFile := filepath.Join(a.imagesDir, id+".txt")
	outPath := filepath.Join(a.imagesDir, id+".png")

	if err := os.WriteFile(textFile, []byte(wrapText(text, maxLineChars)), 0o644); err != nil {
		return "", apperr.Wrap(apperr.CodeVideoAssembly, "write slide text", err)
	}
	defer os.Remove(textFile)

	if err := a.run(ctx, apperr.CodeVideoAssembly, a.renderArgs(textFile, outPath)...); err != nil {
		return "", err
	}
	return outPath, nil
}

// CreateSlideVideo muxes a slide card with its narration audio and
// returns the MP4 path. The video lasts as long as the audio.
func (a *Assembler) CreateSlideVideo(ctx context.Context, imagePath, audioPath string) (string, error) {
	outPath := filepath.Join(a.videosDir, uuid.New().String()+".mp4")
	if err := a.run(ctx, apperr.CodeVideoAssembly, a.muxArgs(imagePath, audioPath, outPath)...); err != nil {
		return "", err
	}
	return outPath, nil
}

// Stitch concatenates per-slide videos into the final presentation
// video. A single video is passed through untouched.
func (a *Assembler) Stitch(ctx context.Context, videoPaths []string) (string, error) {
	if len(videoPaths) == 0 {
		return "", apperr.New(apperr.CodeVideoStitching, "no videos to stitch")
	}
	if len(videoPaths) == 1 {
		return videoPaths[0], nil
	}

	id := uuid.New().String()
	listFile := filepath.Join(a.finalDir, id+".txt")
	outPath := filepath.Join(a.finalDir, id+".mp4")

	if err := writeConcatList(listFile, videoPaths); err != nil {
		return "", apperr.Wrap(apperr.CodeVideoStitching, "write concat list", err)
	}
	defer os.Remove(listFile)

	if err := a.run(ctx, apperr.CodeVideoStitching, a.concatArgs(listFile, outPath)...); err != nil {
		return "", err
	}
	return outPath, nil
}

func (a *Assembler) renderArgs(textFile, outPath string) []string {
	drawtext := fmt.Sprintf(
		"drawtext=textfile=%s:font=Sans:fontsize=36:fontcolor=white:line_spacing=14:x=(w-text_w)/2:y=(h-text_h)/2",
		textFile,
	)
	return []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=0x1f2430:s=%dx%d", a.width, a.height),
		"-vf", drawtext,
		"-frames:v", "1",
		outPath,
	}
}

func (a *Assembler) muxArgs(imagePath, audioPath, outPath string) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-r", fmt.Sprintf("%d", a.fps),
		"-c:v", "libx264",
		"-preset", a.preset,
		"-crf", fmt.Sprintf("%d", a.crf),
		"-c:a", "aac",
		"-shortest",
		"-pix_fmt", "yuv420p",
		outPath,
	}
}

func (a *Assembler) concatArgs(listFile, outPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outPath,
	}
}

func (a *Assembler) run(ctx context.Context, code string, args ...string) error {
	binary, err := exec.LookPath(a.ffmpegCmd)
	if err != nil {
		return apperr.Wrap(apperr.CodeFFmpegNotFound, "ffmpeg not found in PATH", err)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "ffmpeg failed"
		}
		return apperr.Wrap(code, tail(msg, 400), err)
	}
	return nil
}

// writeConcatList writes the concat demuxer input, one absolute path
// per line.
func writeConcatList(listFile string, videoPaths []string) error {
	var buf bytes.Buffer
	for _, p := range videoPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(&buf, "file '%s'\n", abs)
	}
	return os.WriteFile(listFile, buf.Bytes(), 0o644)
}

// wrapText breaks text into lines of at most width characters so
// drawtext does not run off the card.
func wrapText(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

// tail returns at most n trailing characters of s. ffmpeg puts the
// useful error on its last lines.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
