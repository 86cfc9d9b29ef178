package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connectedPayload is the snapshot sent as the first frame on every
// successful connection.
type connectedPayload struct {
	Status       interfaces.Status `json:"status"`
	Progress     int               `json:"progress"`
	CurrentSlide int               `json:"current_slide"`
	TotalSlides  int               `json:"total_slides"`
	CurrentStep  string            `json:"current_step"`
}

// HandleJob upgrades the request to a websocket subscribed to one
// job's events. Connections for unknown jobs receive a single error
// event and are closed.
func HandleJob(hub *Hub, manager *jobs.Manager, w http.ResponseWriter, r *http.Request, jobID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithJobID(jobID).Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	status, err := manager.GetStatus(jobID)
	if err != nil {
		event := interfaces.NewEvent(interfaces.EventError, jobID, interfaces.ErrorPayload{Error: "Job not found"})
		if data, merr := json.Marshal(event); merr == nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.Close()
		return
	}

	client := &Client{
		hub:     hub,
		manager: manager,
		conn:    conn,
		jobID:   jobID,
		send:    make(chan []byte, 256),
	}

	// Queue the hello before registering so no broadcast can precede it.
	hello := interfaces.NewEvent(interfaces.EventConnected, jobID, connectedPayload{
		Status:       status.Status,
		Progress:     status.ProgressValue(),
		CurrentSlide: intValue(status.CurrentSlide),
		TotalSlides:  intValue(status.TotalSlides),
		CurrentStep:  status.CurrentStep,
	})
	if data, merr := json.Marshal(hello); merr == nil {
		client.send <- data
	}

	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
