package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Service      string    `json:"service"`
	Version      string    `json:"version"`
	LLMConnected bool      `json:"llm_connected"`
}

type ReadinessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Database  string    `json:"database"`
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	dbConn    *sql.DB
	llmPinger Pinger
)

// SetDBConnection wires the database used by the readiness probe.
// In-memory deployments leave it unset.
func SetDBConnection(conn *sql.DB) {
	dbConn = conn
}

// SetLLMPinger wires the model backend used by the health probe.
func SetLLMPinger(p Pinger) {
	llmPinger = p
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   serviceName,
		Version:   serviceVersion,
	}

	if llmPinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		response.LLMConnected = llmPinger.Ping(ctx) == nil
	}

	writeJSON(w, http.StatusOK, response)
}

func HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dbStatus := "memory"
	if dbConn != nil {
		dbStatus = "connected"
		if err := dbConn.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{
				Status:    "not ready",
				Timestamp: time.Now(),
				Service:   serviceName,
				Database:  "disconnected",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, ReadinessResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Service:   serviceName,
		Database:  dbStatus,
	})
}

func HandleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Service:   serviceName,
		Version:   serviceVersion,
	})
}
