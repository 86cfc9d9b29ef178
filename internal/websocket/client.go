package websocket

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one websocket connection watching a single job.
type Client struct {
	hub     *Hub
	manager *jobs.Manager
	conn    *websocket.Conn
	jobID   string
	send    chan []byte
}

// ReadPump reads client commands until the connection drops, then
// unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithJobID(c.jobID).Debug().Err(err).Msg("Websocket read error")
			}
			return
		}
		c.handleCommand(strings.TrimSpace(string(raw)))
	}
}

// handleCommand processes the two text commands clients may send. The
// keepalive reply and the cancel acknowledgment go only to this
// connection, other watchers of the job are not involved.
func (c *Client) handleCommand(cmd string) {
	switch cmd {
	case "ping":
		c.enqueue([]byte("pong"))

	case "cancel":
		if _, err := c.manager.CancelJob(c.jobID); err != nil {
			logger.WithJobID(c.jobID).Warn().Err(err).Msg("Cancel request failed")
		}
		ack := interfaces.NewEvent(interfaces.EventCancelled, c.jobID, nil)
		if data, err := json.Marshal(ack); err == nil {
			c.enqueue(data)
		}
	}
}

// enqueue queues a frame for the write pump, dropping it when the
// client cannot keep up.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// WritePump forwards queued frames to the connection and keeps it
// alive with protocol pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
