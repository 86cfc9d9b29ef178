package client

import (
	"encoding/json"

	"github.com/slidecast/engine/internal/interfaces"
)

// genericStreamError is surfaced when an error event arrives without a
// usable message.
const genericStreamError = "stream error"

// reconciler folds the polling and websocket views of one job into a
// single status. It holds the last known good value from each channel
// separately and projects the stream view over the poll view on read,
// so updates from the two channels can interleave in any order.
type reconciler struct {
	poll   interfaces.JobStatus
	stream interfaces.JobStatus

	// latched pins the first terminal status observed from either
	// channel. Later updates can refine fields but never regress the
	// status.
	latched interfaces.Status

	jobErr    string
	transport string
}

// applyPoll folds a full snapshot from the status endpoint in and
// clears any pending transport error.
func (r *reconciler) applyPoll(status interfaces.JobStatus) {
	r.transport = ""
	r.poll = Merge(r.poll, status)
	r.observe(status)
}

// applyPollError records a failed poll. Poll failures are transient:
// they surface as a component error without touching the job state.
func (r *reconciler) applyPollError(err error) {
	r.transport = err.Error()
}

// applyEvent folds one stream event in. A payload that fails to parse
// leaves the state untouched and is returned for logging.
func (r *reconciler) applyEvent(event interfaces.JobEvent) error {
	switch event.Type {
	case interfaces.EventConnected, interfaces.EventStatus, interfaces.EventProgress:
		var update interfaces.JobStatus
		if len(event.Data) > 0 {
			if err := json.Unmarshal(event.Data, &update); err != nil {
				return err
			}
		}
		r.applyStream(update)

	case interfaces.EventCompleted:
		// A completed event carries no payload and forces a full bar.
		full := 100
		r.applyStream(interfaces.JobStatus{
			Status:   interfaces.StatusCompleted,
			Progress: &full,
		})

	case interfaces.EventError:
		var payload interfaces.ErrorPayload
		if len(event.Data) > 0 {
			_ = json.Unmarshal(event.Data, &payload)
		}
		msg := payload.Error
		if msg == "" {
			msg = genericStreamError
		}
		r.applyStream(interfaces.JobStatus{
			Status: interfaces.StatusFailed,
			Error:  msg,
		})
	}
	return nil
}

func (r *reconciler) applyStream(update interfaces.JobStatus) {
	r.stream = Merge(r.stream, update)
	r.observe(update)
}

// observe latches the first terminal status seen from either channel.
// For failed jobs the error message is backfilled from any later failed
// update in case the latching one arrived without it.
func (r *reconciler) observe(update interfaces.JobStatus) {
	if r.latched == "" && update.Status.Terminal() {
		r.latched = update.Status
	}
	if r.latched == interfaces.StatusFailed && r.jobErr == "" &&
		update.Status == interfaces.StatusFailed && update.Error != "" {
		r.jobErr = update.Error
	}
}

// view returns the reconciled status: the poll snapshot as the base,
// stream fields overlaid, pinned to the latched terminal status.
func (r *reconciler) view() interfaces.JobStatus {
	v := Merge(r.poll, r.stream)
	if r.latched != "" {
		v.Status = r.latched
		if v.Error == "" {
			v.Error = r.jobErr
		}
	}
	return v
}

// errMsg returns the component-level error message, preferring a job
// error over a transport one.
func (r *reconciler) errMsg() string {
	if r.jobErr != "" {
		return r.jobErr
	}
	return r.transport
}

func (r *reconciler) terminal() bool {
	return r.latched != ""
}
