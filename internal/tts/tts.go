// Package tts synthesizes narration audio through the edge-tts CLI.
package tts

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/config"
)

// Synthesizer turns narration text into audio files.
type Synthesizer struct {
	binary string
	rate   string
	voices map[string]string
	outDir string
}

// NewSynthesizer creates a synthesizer writing audio into outDir.
func NewSynthesizer(cfg config.TTSConfig, outDir string) *Synthesizer {
	return &Synthesizer{
		binary: cfg.Binary,
		rate:   cfg.Rate,
		voices: cfg.Voices,
		outDir: outDir,
	}
}

// Synthesize renders text with the neural voice configured for lang and
// returns the path of the audio file.
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.CodeTTSGeneration, "narration text is empty")
	}

	outPath := filepath.Join(s.outDir, uuid.New().String()+".mp3")

	binary, err := exec.LookPath(s.binary)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeTTSGeneration, "edge-tts binary not found", err)
	}

	cmd := exec.CommandContext(ctx, binary, s.args(text, lang, outPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "speech synthesis failed"
		}
		return "", apperr.Wrap(apperr.CodeTTSGeneration, msg, err)
	}
	return outPath, nil
}

func (s *Synthesizer) args(text, lang, outPath string) []string {
	args := []string{
		"--voice", s.voiceFor(lang),
		"--text", text,
		"--write-media", outPath,
	}
	if s.rate != "" {
		args = append(args, "--rate", s.rate)
	}
	return args
}

func (s *Synthesizer) voiceFor(lang string) string {
	if voice, ok := s.voices[lang]; ok {
		return voice
	}
	if voice, ok := s.voices["en"]; ok {
		return voice
	}
	return "en-US-AriaNeural"
}
