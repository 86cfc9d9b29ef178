package client

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecast/engine/internal/interfaces"
)

func intp(n int) *int { return &n }

func slides(numbers ...int) []interfaces.SlideProgress {
	out := make([]interfaces.SlideProgress, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, interfaces.SlideProgress{
			SlideNumber: n,
			Narration:   interfaces.StageCompleted,
			MCQ:         interfaces.StagePending,
			Video:       interfaces.StagePending,
		})
	}
	return out
}

func TestMergeStreamFieldsWin(t *testing.T) {
	poll := interfaces.JobStatus{
		Status:      interfaces.StatusProcessing,
		Progress:    intp(40),
		CurrentStep: "Parsing",
	}
	stream := interfaces.JobStatus{Progress: intp(45)}

	merged := Merge(poll, stream)

	assert.Equal(t, interfaces.StatusProcessing, merged.Status)
	assert.Equal(t, 45, *merged.Progress)
	assert.Equal(t, "Parsing", merged.CurrentStep)
}

func TestMergeKeepsBaseWhenUpdateAbsent(t *testing.T) {
	poll := interfaces.JobStatus{
		JobID:        "j1",
		Status:       interfaces.StatusProcessing,
		Progress:     intp(80),
		CurrentSlide: intp(3),
		TotalSlides:  intp(5),
		CurrentStep:  "Generating narration for slide 3",
	}

	merged := Merge(poll, interfaces.JobStatus{})

	assert.Equal(t, poll, merged)
}

func TestMergeSlidesProgressFallback(t *testing.T) {
	fromStream := Merge(
		interfaces.JobStatus{SlidesProgress: nil},
		interfaces.JobStatus{SlidesProgress: slides(1)},
	)
	assert.Len(t, fromStream.SlidesProgress, 1)

	fromPoll := Merge(
		interfaces.JobStatus{SlidesProgress: slides(1, 2)},
		interfaces.JobStatus{SlidesProgress: nil},
	)
	assert.Len(t, fromPoll.SlidesProgress, 2)
}

func TestMergeSlidesProgressStreamWinsEvenWhenSmaller(t *testing.T) {
	// A non-empty stream array replaces the poll array wholesale, even
	// when it covers fewer slides than the poll has already reported.
	merged := Merge(
		interfaces.JobStatus{SlidesProgress: slides(1, 2, 3)},
		interfaces.JobStatus{SlidesProgress: slides(1)},
	)
	assert.Len(t, merged.SlidesProgress, 1)
}

func TestMergeIsIdempotent(t *testing.T) {
	update := interfaces.JobStatus{
		Status:   interfaces.StatusProcessing,
		Progress: intp(45),
	}

	once := Merge(interfaces.JobStatus{}, update)
	twice := Merge(once, update)

	assert.Equal(t, once, twice)
}

func TestReconcilerOverlaysStreamOnPoll(t *testing.T) {
	var r reconciler
	r.applyPoll(interfaces.JobStatus{
		Status:      interfaces.StatusProcessing,
		Progress:    intp(40),
		CurrentStep: "Parsing",
	})
	require.NoError(t, r.applyEvent(streamEvent(t, interfaces.EventProgress, interfaces.JobStatus{
		Progress: intp(45),
	})))

	view := r.view()
	assert.Equal(t, interfaces.StatusProcessing, view.Status)
	assert.Equal(t, 45, *view.Progress)
	assert.Equal(t, "Parsing", view.CurrentStep)
}

func TestReconcilerCompletedEventForcesFullProgress(t *testing.T) {
	var r reconciler
	r.applyPoll(interfaces.JobStatus{
		Status:   interfaces.StatusProcessing,
		Progress: intp(60),
	})
	require.NoError(t, r.applyEvent(interfaces.JobEvent{Type: interfaces.EventCompleted}))

	view := r.view()
	assert.Equal(t, interfaces.StatusCompleted, view.Status)
	assert.Equal(t, 100, *view.Progress)
	assert.True(t, r.terminal())
}

func TestReconcilerErrorEventFailsJob(t *testing.T) {
	var r reconciler
	r.applyPoll(interfaces.JobStatus{Status: interfaces.StatusProcessing})
	require.NoError(t, r.applyEvent(streamEvent(t, interfaces.EventError, interfaces.ErrorPayload{
		Error: "OOM",
	})))

	view := r.view()
	assert.Equal(t, interfaces.StatusFailed, view.Status)
	assert.Equal(t, "OOM", view.Error)
	assert.Equal(t, "OOM", r.errMsg())
}

func TestReconcilerErrorEventWithoutMessage(t *testing.T) {
	var r reconciler
	require.NoError(t, r.applyEvent(interfaces.JobEvent{Type: interfaces.EventError}))

	assert.Equal(t, interfaces.StatusFailed, r.view().Status)
	assert.Equal(t, genericStreamError, r.errMsg())
}

func TestReconcilerTerminalNeverRegresses(t *testing.T) {
	var r reconciler
	require.NoError(t, r.applyEvent(interfaces.JobEvent{Type: interfaces.EventCompleted}))

	r.applyPoll(interfaces.JobStatus{
		Status:   interfaces.StatusProcessing,
		Progress: intp(70),
	})
	require.NoError(t, r.applyEvent(streamEvent(t, interfaces.EventStatus, interfaces.JobStatus{
		Status: interfaces.StatusPending,
	})))

	assert.Equal(t, interfaces.StatusCompleted, r.view().Status)
}

func TestReconcilerFirstTerminalWins(t *testing.T) {
	var r reconciler
	r.applyPoll(interfaces.JobStatus{
		Status: interfaces.StatusFailed,
		Error:  "disk full",
	})
	require.NoError(t, r.applyEvent(interfaces.JobEvent{Type: interfaces.EventCompleted}))

	view := r.view()
	assert.Equal(t, interfaces.StatusFailed, view.Status)
	assert.Equal(t, "disk full", view.Error)
}

func TestReconcilerEventDeliveryIsIdempotent(t *testing.T) {
	event := streamEvent(t, interfaces.EventProgress, interfaces.JobStatus{
		Progress:    intp(55),
		CurrentStep: "Generating MCQs for slide 2",
	})

	var r reconciler
	r.applyPoll(interfaces.JobStatus{Status: interfaces.StatusProcessing, Progress: intp(50)})
	require.NoError(t, r.applyEvent(event))
	once := r.view()
	require.NoError(t, r.applyEvent(event))

	assert.Equal(t, once, r.view())
}

func TestReconcilerPollErrorIsTransient(t *testing.T) {
	var r reconciler
	r.applyPoll(interfaces.JobStatus{Status: interfaces.StatusProcessing, Progress: intp(30)})

	r.applyPollError(errors.New("connection refused"))
	assert.Equal(t, "connection refused", r.errMsg())
	assert.Equal(t, interfaces.StatusProcessing, r.view().Status)

	r.applyPoll(interfaces.JobStatus{Status: interfaces.StatusProcessing, Progress: intp(35)})
	assert.Empty(t, r.errMsg())
	assert.Equal(t, 35, *r.view().Progress)
}

func TestReconcilerMalformedPayloadLeavesStateUntouched(t *testing.T) {
	var r reconciler
	r.applyPoll(interfaces.JobStatus{Status: interfaces.StatusProcessing, Progress: intp(30)})
	before := r.view()

	err := r.applyEvent(interfaces.JobEvent{
		Type: interfaces.EventStatus,
		Data: json.RawMessage(`"not an object"`),
	})
	require.Error(t, err)
	assert.Equal(t, before, r.view())
}

// TestReconcilerTerminalStickyUnderInterleaving drives the reconciler
// with randomized interleavings of poll snapshots and stream events
// and checks that the view never leaves a terminal state once one has
// been observed from either channel.
func TestReconcilerTerminalStickyUnderInterleaving(t *testing.T) {
	statuses := []interfaces.Status{
		interfaces.StatusPending,
		interfaces.StatusProcessing,
		interfaces.StatusProcessing,
		interfaces.StatusCompleted,
		interfaces.StatusFailed,
	}

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		var r reconciler
		var sawTerminal bool

		for i := 0; i < 200; i++ {
			status := statuses[rng.Intn(len(statuses))]
			update := interfaces.JobStatus{
				Status:   status,
				Progress: intp(rng.Intn(101)),
			}

			switch rng.Intn(3) {
			case 0:
				r.applyPoll(update)
			case 1:
				require.NoError(t, r.applyEvent(streamEvent(t, interfaces.EventStatus, update)))
			case 2:
				r.applyPollError(errors.New("timeout"))
			}

			view := r.view()
			if sawTerminal {
				require.True(t, view.Status.Terminal(),
					"seed %d step %d: regressed to %s", seed, i, view.Status)
			}
			if view.Status.Terminal() {
				sawTerminal = true
			}
		}
	}
}

func streamEvent(t *testing.T, eventType interfaces.EventType, payload any) interfaces.JobEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return interfaces.JobEvent{
		Type: eventType,
		Data: data,
	}
}

func TestSnapshotTerminal(t *testing.T) {
	for _, tc := range []struct {
		status   interfaces.Status
		terminal bool
	}{
		{interfaces.StatusPending, false},
		{interfaces.StatusProcessing, false},
		{interfaces.StatusCompleted, true},
		{interfaces.StatusFailed, true},
		{interfaces.StatusCancelled, true},
	} {
		t.Run(string(tc.status), func(t *testing.T) {
			snap := Snapshot{Status: interfaces.JobStatus{Status: tc.status}}
			assert.Equal(t, tc.terminal, snap.Terminal())
		})
	}
}
