package interfaces

import (
	"encoding/json"
	"time"
)

// JobStatus is the wire representation of a job's progress. Scalar
// fields that may legitimately be zero are pointers so that partial
// updates can distinguish "absent" from "zero".
type JobStatus struct {
	JobID          string          `json:"job_id,omitempty"`
	Status         Status          `json:"status,omitempty"`
	Progress       *int            `json:"progress,omitempty"`
	CurrentSlide   *int            `json:"current_slide,omitempty"`
	TotalSlides    *int            `json:"total_slides,omitempty"`
	CurrentStep    string          `json:"current_step,omitempty"`
	Error          string          `json:"error,omitempty"`
	SlidesProgress []SlideProgress `json:"slides_progress,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Terminal reports whether the status field holds a final state.
func (s JobStatus) Terminal() bool {
	return s.Status.Terminal()
}

// ProgressValue returns the progress or zero when absent.
func (s JobStatus) ProgressValue() int {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}

// EventType identifies a websocket event.
type EventType string

const (
	EventConnected EventType = "connected"
	EventStatus    EventType = "status"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	// EventCancelled acknowledges a cancel command on the socket that
	// sent it.
	EventCancelled EventType = "cancelled"
)

// JobEvent is the envelope pushed over the websocket for one job.
type JobEvent struct {
	Type      EventType       `json:"type"`
	JobID     string          `json:"job_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent builds an event envelope, marshaling the payload when
// present. A payload that cannot be marshaled yields an empty data
// field rather than a broken envelope.
func NewEvent(t EventType, jobID string, payload any) JobEvent {
	ev := JobEvent{
		Type:      t,
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Data = data
		}
	}
	return ev
}

// ErrorPayload is the data field of an error event.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Notifier receives every job event the manager emits.
type Notifier interface {
	Notify(event JobEvent)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(event JobEvent)

// Notify calls f(event).
func (f NotifierFunc) Notify(event JobEvent) { f(event) }
