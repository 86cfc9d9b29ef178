package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slidecast/engine/internal/config"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/websocket"
)

const (
	serviceName    = "slidecast-engine"
	serviceVersion = "1.0.0"
)

// AddRoutes registers all HTTP routes on the mux.
func AddRoutes(mux *http.ServeMux, manager *jobs.Manager, hub *websocket.Hub, cfg *config.Config) {
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(cfg.Server.CORSOrigins, correlationMiddleware(h))
	}

	mux.HandleFunc("/api/v1/process-ppt", wrap(handleProcessPPT(manager, cfg)))
	mux.HandleFunc("/api/v1/jobs", wrap(handleListJobs(manager)))
	mux.HandleFunc("/api/v1/jobs/", wrap(handleJobRoutes(manager, cfg)))

	mux.HandleFunc("/ws/jobs/", func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/ws/jobs/")
		websocket.HandleJob(hub, manager, w, r, jobID)
	})

	files := http.StripPrefix("/data/", http.FileServer(http.Dir(cfg.Storage.DataDir)))
	mux.HandleFunc("/data/", corsMiddleware(cfg.Server.CORSOrigins, files.ServeHTTP))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", HandleHealth)
	mux.HandleFunc("/health/ready", HandleReadiness)
	mux.HandleFunc("/health/live", HandleLiveness)

	mux.HandleFunc("/", wrap(handleRoot()))
}

// correlationMiddleware ensures every request carries a correlation ID.
func correlationMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), "correlation_id", correlationID)
		w.Header().Set("X-Correlation-ID", correlationID)

		next(w, r.WithContext(ctx))
	}
}

func corsMiddleware(origins []string, next http.HandlerFunc) http.HandlerFunc {
	allowAll := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && containsOrigin(origins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

func containsOrigin(origins []string, origin string) bool {
	for _, o := range origins {
		if o == origin {
			return true
		}
	}
	return false
}

func handleRoot() http.HandlerFunc {
	info := map[string]string{
		"name":    serviceName,
		"version": serviceVersion,
		"status":  "running",
		"health":  "/health",
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func getCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value("correlation_id").(string); ok {
		return id
	}
	return ""
}
