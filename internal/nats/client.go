package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/logger"
)

// Publisher forwards job events to NATS so that instances other than
// the one processing a job can serve its websocket watchers.
type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{conn: conn}, nil
}

// Notify implements interfaces.Notifier by publishing the event on the
// job's subject.
func (p *Publisher) Notify(event interfaces.JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.WithJobID(event.JobID).Error().Err(err).Msg("Failed to marshal job event for NATS")
		return
	}

	if err := p.conn.Publish(EventSubject(event.JobID), data); err != nil {
		logger.WithJobID(event.JobID).Error().Err(err).Msg("Failed to publish job event")
	}
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
