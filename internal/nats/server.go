package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/logger"
)

// Relay subscribes to job events published by other instances and
// fans them into a local notifier, typically the websocket hub.
type Relay struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	notifier interfaces.Notifier
}

func NewRelay(url string, notifier interfaces.Notifier) (*Relay, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Relay{
		conn:     conn,
		notifier: notifier,
	}, nil
}

func (r *Relay) Subscribe() error {
	sub, err := r.conn.Subscribe(EventWildcard, func(msg *nats.Msg) {
		var event interfaces.JobEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Dropping malformed job event")
			return
		}

		r.notifier.Notify(event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to NATS: %w", err)
	}

	r.sub = sub
	return nil
}

func (r *Relay) Close() {
	if r.sub != nil {
		r.sub.Unsubscribe()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
