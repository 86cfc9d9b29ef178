package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/config"
	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/logger"
)

const defaultListLimit = 10

// handleListJobs returns summaries of recent jobs, newest first.
func handleListJobs(manager *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit := defaultListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		summaries, err := manager.ListJobs(limit)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

// handleJobRoutes dispatches /api/v1/jobs/download and the per-job
// status, result and cancel endpoints.
func handleJobRoutes(manager *jobs.Manager, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")

		if path == "download" {
			handleDownload(w, r, cfg)
			return
		}

		parts := strings.Split(path, "/")
		if len(parts) != 2 || parts[0] == "" {
			http.NotFound(w, r)
			return
		}
		jobID, action := parts[0], parts[1]

		switch action {
		case "status":
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			handleJobStatus(w, manager, jobID)
		case "result":
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			handleJobResult(w, manager, jobID)
		case "cancel":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			handleJobCancel(w, r, manager, jobID)
		default:
			http.NotFound(w, r)
		}
	}
}

func handleJobStatus(w http.ResponseWriter, manager *jobs.Manager, jobID string) {
	status, err := manager.GetStatus(jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func handleJobResult(w http.ResponseWriter, manager *jobs.Manager, jobID string) {
	status, err := manager.GetStatus(jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	switch status.Status {
	case interfaces.StatusFailed:
		writeError(w, http.StatusBadRequest, apperr.CodeJobNotCompleted,
			fmt.Sprintf("Job failed: %s", status.Error))
		return
	case interfaces.StatusCompleted:
	default:
		writeError(w, http.StatusBadRequest, apperr.CodeJobNotCompleted,
			fmt.Sprintf("Job not completed. Current status: %s", status.Status))
		return
	}

	result, err := manager.GetResult(jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleJobCancel(w http.ResponseWriter, r *http.Request, manager *jobs.Manager, jobID string) {
	cancelled, err := manager.CancelJob(jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	message := "Job cannot be cancelled (already completed or failed)"
	if cancelled {
		message = "Job cancelled successfully"
		logger.WithCorrelationID(getCorrelationID(r.Context())).Info().
			Str("job_id", jobID).
			Msg("Job cancelled via API")
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": message,
		"job_id":  jobID,
	})
}

var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".json": "application/json",
}

// handleDownload serves a generated artifact. The requested path must
// resolve inside the data directory.
func handleDownload(w http.ResponseWriter, r *http.Request, cfg *config.Config) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("path")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PATH", "Missing path parameter")
		return
	}

	dataDir, err := filepath.Abs(cfg.Storage.DataDir)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PATH", "Invalid path")
		return
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PATH", "Invalid path")
		return
	}

	rel, err := filepath.Rel(dataDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Access denied")
		return
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
		return
	}

	w.Header().Set("Content-Type", mediaTypeFor(abs))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(abs)))
	http.ServeFile(w, r, abs)
}

func mediaTypeFor(path string) string {
	if mt, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}
