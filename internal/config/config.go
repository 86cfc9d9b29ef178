// Package config loads engine configuration from environment variables
// with sensible defaults. A .env file in the working directory is
// honored when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all engine configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Limits    LimitsConfig
	LLM       LLMConfig
	TTS       TTSConfig
	Video     VideoConfig
	Cleanup   CleanupConfig
	NATS      NATSConfig
	Database  DatabaseConfig
	Languages []string
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// StorageConfig holds the artifact directory layout.
type StorageConfig struct {
	DataDir string
}

// UploadsDir returns the directory for uploaded presentations.
func (s StorageConfig) UploadsDir() string { return filepath.Join(s.DataDir, "uploads") }

// AudioDir returns the directory for synthesized narration audio.
func (s StorageConfig) AudioDir() string { return filepath.Join(s.DataDir, "audio") }

// ImagesDir returns the directory for rendered slide cards.
func (s StorageConfig) ImagesDir() string { return filepath.Join(s.DataDir, "images") }

// VideosDir returns the directory for per-slide videos.
func (s StorageConfig) VideosDir() string { return filepath.Join(s.DataDir, "videos") }

// FinalVideosDir returns the directory for stitched presentation videos.
func (s StorageConfig) FinalVideosDir() string { return filepath.Join(s.DataDir, "final_videos") }

// EnsureDirs creates the full artifact directory tree.
func (s StorageConfig) EnsureDirs() error {
	dirs := []string{
		s.UploadsDir(), s.AudioDir(), s.ImagesDir(), s.VideosDir(), s.FinalVideosDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// LimitsConfig holds the request and job limits.
type LimitsConfig struct {
	MaxSlides         int
	MaxUploadBytes    int64
	MaxConcurrentJobs int
	JobTimeout        time.Duration
}

// LLMConfig holds the Ollama client settings.
type LLMConfig struct {
	BaseURL              string
	Model                string
	NarrationTemperature float64
	QATemperature        float64
	Timeout              time.Duration
	MaxRetries           int
}

// TTSConfig holds the speech synthesis settings.
type TTSConfig struct {
	Binary string
	Rate   string
	Voices map[string]string
}

// VoiceFor returns the configured voice for a language code.
func (t TTSConfig) VoiceFor(lang string) (string, bool) {
	voice, ok := t.Voices[lang]
	return voice, ok
}

// VideoConfig holds the encoder settings.
type VideoConfig struct {
	FFmpegPath string
	Width      int
	Height     int
	FPS        int
	CRF        int
	Preset     string
}

// CleanupConfig holds the artifact cleanup settings.
type CleanupConfig struct {
	Enabled  bool
	MaxAge   time.Duration
	Schedule string
}

// NATSConfig holds the optional event relay settings. The relay is
// disabled when URL is empty.
type NATSConfig struct {
	URL string
}

// DatabaseConfig holds the optional Postgres settings. The in-memory
// store is used when URL is empty.
type DatabaseConfig struct {
	URL string
}

// Load builds the configuration from the environment. A .env file is
// loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			CORSOrigins:  getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", "data"),
		},
		Limits: LimitsConfig{
			MaxSlides:         getEnvAsInt("MAX_SLIDES", 10),
			MaxUploadBytes:    getEnvAsInt64("MAX_UPLOAD_BYTES", 50*1024*1024),
			MaxConcurrentJobs: getEnvAsInt("MAX_CONCURRENT_JOBS", 3),
			JobTimeout:        getEnvAsDuration("JOB_TIMEOUT", 30*time.Minute),
		},
		LLM: LLMConfig{
			BaseURL:              getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			Model:                getEnv("OLLAMA_MODEL", "llama3.1:8b"),
			NarrationTemperature: getEnvAsFloat("LLM_NARRATION_TEMPERATURE", 0.4),
			QATemperature:        getEnvAsFloat("LLM_QA_TEMPERATURE", 0.3),
			Timeout:              getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			MaxRetries:           getEnvAsInt("LLM_MAX_RETRIES", 3),
		},
		TTS: TTSConfig{
			Binary: getEnv("TTS_BINARY", "edge-tts"),
			Rate:   getEnv("TTS_RATE", "+0%"),
			Voices: map[string]string{
				"en": getEnv("TTS_VOICE_EN", "en-US-AriaNeural"),
				"fr": getEnv("TTS_VOICE_FR", "fr-FR-DeniseNeural"),
				"hi": getEnv("TTS_VOICE_HI", "hi-IN-SwaraNeural"),
			},
		},
		Video: VideoConfig{
			FFmpegPath: getEnv("FFMPEG_PATH", ""),
			Width:      getEnvAsInt("VIDEO_WIDTH", 1280),
			Height:     getEnvAsInt("VIDEO_HEIGHT", 720),
			FPS:        getEnvAsInt("VIDEO_FPS", 30),
			CRF:        getEnvAsInt("VIDEO_CRF", 23),
			Preset:     getEnv("VIDEO_PRESET", "fast"),
		},
		Cleanup: CleanupConfig{
			Enabled:  getEnvAsBool("CLEANUP_ENABLED", true),
			MaxAge:   getEnvAsDuration("CLEANUP_MAX_AGE", 24*time.Hour),
			Schedule: getEnv("CLEANUP_SCHEDULE", "@hourly"),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Languages: getEnvAsList("SUPPORTED_LANGUAGES", []string{"en", "fr", "hi"}),
	}
}

// Validate checks the loaded configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("SERVER_ADDR must not be empty")
	}
	if c.Limits.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}
	if c.Limits.MaxSlides < 1 {
		return fmt.Errorf("MAX_SLIDES must be at least 1")
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 || c.Video.FPS <= 0 {
		return fmt.Errorf("video geometry must be positive")
	}
	for _, lang := range c.Languages {
		if _, ok := c.TTS.Voices[lang]; !ok {
			return fmt.Errorf("no TTS voice configured for language %q", lang)
		}
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
