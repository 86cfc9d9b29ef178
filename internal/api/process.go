package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/config"
	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/language"
	"github.com/slidecast/engine/internal/logger"
)

// UploadResponse is returned when a presentation has been accepted.
type UploadResponse struct {
	JobID   string            `json:"job_id"`
	Status  interfaces.Status `json:"status"`
	Message string            `json:"message"`
}

// handleProcessPPT accepts a .pptx upload and enqueues a conversion job.
func handleProcessPPT(manager *jobs.Manager, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		log := logger.WithCorrelationID(getCorrelationID(r.Context()))

		r.Body = http.MaxBytesReader(w, r.Body, cfg.Limits.MaxUploadBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, apperr.CodeFileTooLarge,
					fmt.Sprintf("File exceeds the %d byte upload limit", cfg.Limits.MaxUploadBytes))
				return
			}
			writeError(w, http.StatusBadRequest, apperr.CodeEmptyFile, "A presentation file is required")
			return
		}
		defer file.Close()

		if !strings.HasSuffix(header.Filename, ".pptx") {
			writeError(w, http.StatusBadRequest, apperr.CodeInvalidFileType, "Only .pptx files are supported")
			return
		}
		if header.Size == 0 {
			writeError(w, http.StatusBadRequest, apperr.CodeEmptyFile, "Uploaded file is empty")
			return
		}

		requested := r.FormValue("language")
		if requested == "" {
			requested = "en"
		}
		lang := language.Resolve(requested, cfg.Languages)
		if lang == "" {
			writeError(w, http.StatusBadRequest, apperr.CodeUnsupportedLanguage,
				fmt.Sprintf("Language %q is not supported", requested))
			return
		}

		maxSlides := cfg.Limits.MaxSlides
		if v := r.FormValue("max_slides"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				maxSlides = clamp(n, 1, cfg.Limits.MaxSlides)
			}
		}

		uploadPath, err := saveUpload(file, header.Filename, cfg.Storage.UploadsDir())
		if err != nil {
			log.Error().Err(err).Msg("Failed to store upload")
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store uploaded file")
			return
		}

		job, err := manager.CreateJob(jobs.CreateParams{
			Filename:      header.Filename,
			UploadPath:    uploadPath,
			Language:      lang,
			MaxSlides:     maxSlides,
			GenerateVideo: formBool(r, "generate_video", true),
			GenerateMCQs:  formBool(r, "generate_mcqs", true),
		})
		if err != nil {
			os.Remove(uploadPath)
			writeAppError(w, err)
			return
		}

		log.Info().
			Str("job_id", job.ID).
			Str("filename", header.Filename).
			Str("language", lang).
			Int("max_slides", maxSlides).
			Msg("Upload accepted")

		writeJSON(w, http.StatusAccepted, UploadResponse{
			JobID:   job.ID,
			Status:  job.Status,
			Message: "Processing started. Track progress via the websocket or status endpoint.",
		})
	}
}

// saveUpload copies the multipart file into the uploads directory under a
// collision-free name and returns the stored path.
func saveUpload(file io.Reader, filename, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	path := filepath.Join(dir, uuid.New().String()+"_"+filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

func formBool(r *http.Request, field string, fallback bool) bool {
	v := r.FormValue(field)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func clamp(n, low, high int) int {
	if n < low {
		return low
	}
	if n > high {
		return high
	}
	return n
}
