package websocket

import (
	"encoding/json"

	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/logger"
	"github.com/slidecast/engine/internal/metrics"
)

// message is one frame routed to every client watching a job.
type message struct {
	jobID string
	data  []byte
}

// Hub routes job events to the websocket clients subscribed to each job.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	clients    map[string]map[*Client]bool
}

// NewHub creates a hub with no clients. Call Run in its own goroutine
// before registering clients.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
		clients:    make(map[string]map[*Client]bool),
	}
}

// Run dispatches registrations, unregistrations and broadcasts.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			watchers := h.clients[client.jobID]
			if watchers == nil {
				watchers = make(map[*Client]bool)
				h.clients[client.jobID] = watchers
			}
			watchers[client] = true
			metrics.WebsocketClients.Inc()

		case client := <-h.unregister:
			if watchers, ok := h.clients[client.jobID]; ok && watchers[client] {
				h.drop(client)
			}

		case msg := <-h.broadcast:
			for client := range h.clients[msg.jobID] {
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer, disconnect instead of blocking the hub.
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	watchers := h.clients[client.jobID]
	delete(watchers, client)
	if len(watchers) == 0 {
		delete(h.clients, client.jobID)
	}
	close(client.send)
	metrics.WebsocketClients.Dec()
}

// Notify implements interfaces.Notifier, fanning each job event out to
// the clients watching that job.
func (h *Hub) Notify(event interfaces.JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.WithJobID(event.JobID).Error().Err(err).Msg("Failed to marshal job event")
		return
	}
	h.broadcast <- message{jobID: event.JobID, data: data}
}
