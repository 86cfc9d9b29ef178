package client

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/logger"
)

// Phase describes the state of the websocket side of a watcher.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseConnecting   Phase = "connecting"
	PhaseOpen         Phase = "open"
	PhaseReconnecting Phase = "reconnecting"
	PhaseClosed       Phase = "closed"
)

// Snapshot is one reconciled view of a job, together with stream
// connectivity and the current component-level error, if any.
type Snapshot struct {
	Status interfaces.JobStatus
	Phase  Phase
	Err    string
}

// Terminal reports whether the job has reached a final state.
func (s Snapshot) Terminal() bool {
	return s.Status.Terminal()
}

// WatchOptions tune the watcher. Zero values select the defaults.
type WatchOptions struct {
	// PollInterval is the cadence of the status poll. Default 2s.
	PollInterval time.Duration
	// ReconnectWait is the backoff before re-dialing the stream after
	// an abnormal close. Default 3s.
	ReconnectWait time.Duration
}

const (
	defaultPollInterval  = 2 * time.Second
	defaultReconnectWait = 3 * time.Second
	dialTimeout          = 10 * time.Second
)

// Watcher tracks one job over both channels: a fixed-cadence status
// poll and the progress websocket. All state lives in a single
// goroutine fed by an event queue, so updates from the two channels
// are folded in one at a time.
//
// A Watcher is scoped to one job. Watching a different job means
// closing this watcher and starting a new one.
type Watcher struct {
	client *Client
	jobID  string
	opts   WatchOptions

	events  chan watchEvent
	updates chan Snapshot
	done    chan struct{}

	closeOnce sync.Once

	// Owned by the run goroutine.
	rec        reconciler
	phase      Phase
	conn       *websocket.Conn
	gen        int
	timer      *time.Timer
	pollCancel context.CancelFunc
	last       Snapshot
	emitted    bool
}

type watchEvent interface{}

type pollUpdate struct {
	status interfaces.JobStatus
	err    error
}

type dialDone struct {
	gen  int
	conn *websocket.Conn
	err  error
}

type streamFrame struct {
	gen  int
	data []byte
}

type streamClosed struct {
	gen    int
	normal bool
}

type reconnectFire struct{ gen int }

type closeReq struct{}

// Watch starts tracking a job. The returned watcher polls the status
// endpoint at a fixed cadence and holds a websocket to the progress
// stream, emitting reconciled snapshots on Updates. Polling stops on
// its own once the poll itself observes a terminal status; the caller
// decides when to Close.
func (c *Client) Watch(jobID string, opts WatchOptions) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = defaultReconnectWait
	}

	w := &Watcher{
		client:  c,
		jobID:   jobID,
		opts:    opts,
		events:  make(chan watchEvent, 16),
		updates: make(chan Snapshot, 1),
		done:    make(chan struct{}),
		phase:   PhaseIdle,
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	w.pollCancel = cancel
	go w.poll(pollCtx)
	go w.run()

	return w
}

// Updates delivers reconciled snapshots. The channel holds only the
// latest snapshot: a slow reader skips intermediate states instead of
// lagging behind. It is closed when the watcher shuts down.
func (w *Watcher) Updates() <-chan Snapshot {
	return w.updates
}

// JobID returns the watched job's identifier.
func (w *Watcher) JobID() string {
	return w.jobID
}

// Close tears the watcher down: the poll loop stops, any pending
// reconnect is cancelled and the stream is closed with a normal
// closure frame. Safe to call any number of times.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		select {
		case w.events <- closeReq{}:
		case <-w.done:
		}
	})
	<-w.done
}

func (w *Watcher) run() {
	w.dial()

	for {
		ev := <-w.events
		switch ev := ev.(type) {
		case closeReq:
			w.teardown()
			w.emit()
			close(w.done)
			close(w.updates)
			return
		case pollUpdate:
			w.onPoll(ev)
		case dialDone:
			w.onDialDone(ev)
		case streamFrame:
			w.onFrame(ev)
		case streamClosed:
			w.onStreamClosed(ev)
		case reconnectFire:
			w.onReconnectFire(ev)
		}
		w.emit()
	}
}

// poll queries the status endpoint immediately and then at the fixed
// cadence, stopping for good once it observes a terminal status
// itself. A terminal signal on the stream alone does not stop the
// poll: the poll keeps confirming until it sees the terminal state.
func (w *Watcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		status, err := w.client.GetStatus(ctx, w.jobID)
		if ctx.Err() != nil {
			return
		}
		w.send(pollUpdate{status: status, err: err})
		if err == nil && status.Terminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) onPoll(ev pollUpdate) {
	if ev.err != nil {
		logger.WithJobID(w.jobID).Debug().Err(ev.err).Msg("Status poll failed")
		w.rec.applyPollError(ev.err)
		return
	}
	w.rec.applyPoll(ev.status)
}

// dial opens a new stream connection under a fresh generation. Events
// from older generations are ignored, so a late frame or close from a
// replaced connection cannot disturb the current one.
func (w *Watcher) dial() {
	w.gen++
	gen := w.gen
	if w.phase != PhaseReconnecting {
		w.phase = PhaseConnecting
	}

	go func() {
		dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
		conn, resp, err := dialer.Dial(w.client.streamURL(w.jobID), nil)
		if err != nil && resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		w.send(dialDone{gen: gen, conn: conn, err: err})
	}()
}

func (w *Watcher) onDialDone(ev dialDone) {
	if ev.gen != w.gen {
		if ev.conn != nil {
			ev.conn.Close()
		}
		return
	}

	if ev.err != nil {
		logger.WithJobID(w.jobID).Debug().Err(ev.err).Msg("Stream dial failed")
		w.streamDown()
		return
	}

	w.conn = ev.conn
	w.phase = PhaseOpen
	go w.read(ev.conn, ev.gen)
}

func (w *Watcher) read(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			normal := websocket.IsCloseError(err, websocket.CloseNormalClosure)
			w.send(streamClosed{gen: gen, normal: normal})
			return
		}
		w.send(streamFrame{gen: gen, data: data})
	}
}

func (w *Watcher) onFrame(ev streamFrame) {
	if ev.gen != w.gen {
		return
	}

	var event interfaces.JobEvent
	if err := json.Unmarshal(ev.data, &event); err != nil {
		logger.WithJobID(w.jobID).Debug().Err(err).Msg("Dropping malformed stream message")
		return
	}
	if err := w.rec.applyEvent(event); err != nil {
		logger.WithJobID(w.jobID).Debug().Err(err).
			Str("type", string(event.Type)).
			Msg("Dropping stream event with malformed payload")
	}
}

func (w *Watcher) onStreamClosed(ev streamClosed) {
	if ev.gen != w.gen {
		return
	}
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}

	if ev.normal {
		w.phase = PhaseClosed
		return
	}
	w.streamDown()
}

// streamDown handles an abnormal drop of the stream, whether a failed
// dial or an unexpected close. One reconnect is scheduled per drop,
// and only while the job is still processing.
func (w *Watcher) streamDown() {
	if w.rec.view().Status != interfaces.StatusProcessing {
		w.phase = PhaseClosed
		return
	}

	w.phase = PhaseReconnecting
	gen := w.gen
	w.timer = time.AfterFunc(w.opts.ReconnectWait, func() {
		w.send(reconnectFire{gen: gen})
	})
}

func (w *Watcher) onReconnectFire(ev reconnectFire) {
	if ev.gen != w.gen || w.phase != PhaseReconnecting {
		return
	}
	logger.WithJobID(w.jobID).Debug().Msg("Reconnecting to progress stream")
	w.dial()
}

func (w *Watcher) teardown() {
	w.pollCancel()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.conn != nil {
		w.conn.SetWriteDeadline(time.Now().Add(time.Second))
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
		w.conn = nil
	}
	w.phase = PhaseClosed
}

// emit publishes the current snapshot, replacing an unread older one.
func (w *Watcher) emit() {
	snap := Snapshot{
		Status: w.rec.view(),
		Phase:  w.phase,
		Err:    w.rec.errMsg(),
	}
	if w.emitted && reflect.DeepEqual(snap, w.last) {
		return
	}
	w.last = snap
	w.emitted = true

	for {
		select {
		case w.updates <- snap:
			return
		default:
			select {
			case <-w.updates:
			default:
			}
		}
	}
}

// send delivers an event to the run loop unless the watcher has
// already shut down.
func (w *Watcher) send(ev watchEvent) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}
