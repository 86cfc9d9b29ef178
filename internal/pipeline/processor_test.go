package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/pptx"
)

const validMCQJSON = `{"questions": [
	{"question": "What keeps the replicas of a distributed system in agreement?", "options": ["Consensus", "Caching", "Sharding", "Hashing"], "answer": "Consensus", "difficulty": "easy"},
	{"question": "Which property matters most when a network partition happens?", "options": ["Availability", "Latency", "Bandwidth", "Cost"], "answer": "Availability", "difficulty": "medium"},
	{"question": "Why do quorum reads stay correct after a leader change occurs?", "options": ["Overlapping majorities", "Fast clocks", "Large buffers", "Retry loops"], "answer": "Overlapping majorities", "difficulty": "hard"}
]}`

type fakeGen struct {
	mu        sync.Mutex
	narration func(text string) (string, error)
	mcqs      func(call int) (string, error)
	mcqCalls  int
}

func (f *fakeGen) GenerateNarration(ctx context.Context, text, lang string) (string, error) {
	if f.narration != nil {
		return f.narration(text)
	}
	return "Narration: " + text, nil
}

func (f *fakeGen) GenerateMCQs(ctx context.Context, text, lang string) (string, error) {
	f.mu.Lock()
	f.mcqCalls++
	call := f.mcqCalls
	f.mu.Unlock()

	if f.mcqs != nil {
		return f.mcqs(call)
	}
	return validMCQJSON, nil
}

func (f *fakeGen) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mcqCalls
}

type fakeSpeech struct {
	mu    sync.Mutex
	err   error
	count int
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text, lang string) (string, error) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	return "data/audio/clip.mp3", nil
}

func (f *fakeSpeech) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type fakeMedia struct {
	stitchErr error
	muxErr    error
}

func (f *fakeMedia) RenderSlideCard(ctx context.Context, text string) (string, error) {
	return "data/images/card.png", nil
}

func (f *fakeMedia) CreateSlideVideo(ctx context.Context, imagePath, audioPath string) (string, error) {
	if f.muxErr != nil {
		return "", f.muxErr
	}
	return "data/videos/slide.mp4", nil
}

func (f *fakeMedia) Stitch(ctx context.Context, videoPaths []string) (string, error) {
	if f.stitchErr != nil {
		return "", f.stitchErr
	}
	return "data/final_videos/final.mp4", nil
}

func textSlides() []pptx.Slide {
	return []pptx.Slide{
		{Number: 1, Text: "Introduction to distributed systems and why they matter"},
		{Number: 2, Text: "   "},
		{Number: 3, Text: "Consensus algorithms keep replicas in agreement under faults"},
	}
}

func newTestProcessor(t *testing.T, gen *fakeGen, speech *fakeSpeech, media *fakeMedia, slides []pptx.Slide, params jobs.CreateParams) (*Processor, *jobs.Manager, *interfaces.Job) {
	t.Helper()

	manager := jobs.NewManager(jobs.NewMemoryStore(100), 10)
	p := NewProcessor(manager, gen, speech, media)
	p.parse = func(string) ([]pptx.Slide, error) { return slides, nil }

	job, err := manager.CreateJob(params)
	require.NoError(t, err)
	return p, manager, job
}

func defaultParams() jobs.CreateParams {
	return jobs.CreateParams{
		Filename:      "deck.pptx",
		UploadPath:    "data/uploads/deck.pptx",
		Language:      "en",
		MaxSlides:     10,
		GenerateVideo: true,
		GenerateMCQs:  true,
	}
}

func TestProcessHappyPath(t *testing.T) {
	gen := &fakeGen{}
	speech := &fakeSpeech{}
	media := &fakeMedia{}
	p, manager, job := newTestProcessor(t, gen, speech, media, textSlides(), defaultParams())

	var mu sync.Mutex
	var steps []string
	manager.AddNotifier(interfaces.NotifierFunc(func(e interfaces.JobEvent) {
		if e.Type != interfaces.EventProgress {
			return
		}
		var payload struct {
			CurrentStep string `json:"current_step"`
		}
		if json.Unmarshal(e.Data, &payload) == nil && payload.CurrentStep != "" {
			mu.Lock()
			steps = append(steps, payload.CurrentStep)
			mu.Unlock()
		}
	}))

	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)

	// The empty slide is dropped, the remaining ones keep their numbers.
	require.Len(t, result.Slides, 2)
	assert.Equal(t, 1, result.Slides[0].SlideNumber)
	assert.Equal(t, 3, result.Slides[1].SlideNumber)

	for _, slide := range result.Slides {
		assert.True(t, slide.HasText)
		assert.NotEmpty(t, slide.Narration)
		assert.Equal(t, "data/videos/slide.mp4", slide.VideoPath)
		assert.Len(t, slide.QA["easy"], 1)
		assert.Len(t, slide.QA["medium"], 1)
		assert.Len(t, slide.QA["hard"], 1)
	}
	assert.Equal(t, "data/final_videos/final.mp4", result.FinalVideoPath)
	assert.Equal(t, interfaces.StatusCompleted, result.Status)
	assert.Equal(t, "deck.pptx", result.Filename)

	stored, err := manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusProcessing, stored.Status, "terminal transition is the caller's job")
	assert.Equal(t, 2, stored.TotalSlides)
	assert.Equal(t, 95, stored.Progress)
	assert.Equal(t, "Stitching final video", stored.CurrentStep)
	for _, sp := range stored.SlidesProgress {
		assert.Equal(t, interfaces.StageCompleted, sp.Narration)
		assert.Equal(t, interfaces.StageCompleted, sp.MCQ)
		assert.Equal(t, interfaces.StageCompleted, sp.Video)
		assert.Empty(t, sp.Error)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, steps, "Parsing presentation")
	assert.Contains(t, steps, "Processing slide 1")
	assert.Contains(t, steps, "Generating narration for slide 3")
}

func TestProcessCapsSlides(t *testing.T) {
	slides := []pptx.Slide{
		{Number: 1, Text: "First slide with some usable body text"},
		{Number: 2, Text: "Second slide with some usable body text"},
		{Number: 3, Text: "Third slide with some usable body text"},
	}
	params := defaultParams()
	params.MaxSlides = 2

	p, _, job := newTestProcessor(t, &fakeGen{}, &fakeSpeech{}, &fakeMedia{}, slides, params)

	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, result.Slides, 2)
	assert.Equal(t, 1, result.Slides[0].SlideNumber)
	assert.Equal(t, 2, result.Slides[1].SlideNumber)
}

func TestProcessNoTextSlidesCompletesEmpty(t *testing.T) {
	slides := []pptx.Slide{{Number: 1, Text: ""}, {Number: 2, Text: "  \n "}}
	p, manager, job := newTestProcessor(t, &fakeGen{}, &fakeSpeech{}, &fakeMedia{}, slides, defaultParams())

	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, result.Slides)
	assert.Equal(t, interfaces.StatusCompleted, result.Status)
	assert.Empty(t, result.FinalVideoPath)

	stored, err := manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.TotalSlides, "empty decks never enter per-slide processing")
}

func TestProcessParseError(t *testing.T) {
	p, _, job := newTestProcessor(t, &fakeGen{}, &fakeSpeech{}, &fakeMedia{}, nil, defaultParams())
	p.parse = func(string) ([]pptx.Slide, error) { return nil, errors.New("not a zip archive") }

	_, err := p.Process(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, apperr.CodePPTParse, apperr.CodeOf(err))
}

func TestSlideErrorDoesNotStopJob(t *testing.T) {
	gen := &fakeGen{narration: func(text string) (string, error) {
		if text == "First slide with some usable body text" {
			return "", errors.New("model overloaded")
		}
		return "Narration: " + text, nil
	}}
	slides := []pptx.Slide{
		{Number: 1, Text: "First slide with some usable body text"},
		{Number: 2, Text: "Second slide with some usable body text"},
	}
	p, manager, job := newTestProcessor(t, gen, &fakeSpeech{}, &fakeMedia{}, slides, defaultParams())

	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, result.Slides, 2)
	assert.Empty(t, result.Slides[0].Narration)
	assert.NotEmpty(t, result.Slides[1].Narration)

	stored, err := manager.GetJob(job.ID)
	require.NoError(t, err)
	require.Len(t, stored.SlidesProgress, 2)

	failed := stored.SlidesProgress[0]
	assert.Equal(t, interfaces.StageFailed, failed.Narration)
	assert.Equal(t, interfaces.StageFailed, failed.MCQ)
	assert.Equal(t, interfaces.StageFailed, failed.Video)
	assert.Contains(t, failed.Error, "model overloaded")

	ok := stored.SlidesProgress[1]
	assert.Equal(t, interfaces.StageCompleted, ok.Narration)
	assert.Empty(t, ok.Error)
}

func TestEmptyNarrationSkipsVideo(t *testing.T) {
	gen := &fakeGen{narration: func(string) (string, error) { return "", nil }}
	speech := &fakeSpeech{}
	slides := []pptx.Slide{{Number: 1, Text: "A slide whose narration comes back blank"}}
	p, manager, job := newTestProcessor(t, gen, speech, &fakeMedia{}, slides, defaultParams())

	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, result.Slides, 1)
	assert.Empty(t, result.Slides[0].VideoPath)
	assert.NotEmpty(t, result.Slides[0].QA)
	assert.Zero(t, speech.calls())
	assert.Empty(t, result.FinalVideoPath)

	stored, err := manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StagePending, stored.SlidesProgress[0].Video)
}

func TestMCQRetriesOnceOnBadOutput(t *testing.T) {
	gen := &fakeGen{mcqs: func(call int) (string, error) {
		if call == 1 {
			return "this is not json", nil
		}
		return validMCQJSON, nil
	}}
	slides := []pptx.Slide{{Number: 1, Text: "Quorum systems and overlapping majorities explained"}}
	p, _, job := newTestProcessor(t, gen, &fakeSpeech{}, &fakeMedia{}, slides, defaultParams())

	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls())
	assert.NotEmpty(t, result.Slides[0].QA)
}

func TestMCQGivesUpAfterRetry(t *testing.T) {
	gen := &fakeGen{mcqs: func(int) (string, error) { return "still not json", nil }}
	slides := []pptx.Slide{{Number: 1, Text: "Quorum systems and overlapping majorities explained"}}
	p, manager, job := newTestProcessor(t, gen, &fakeSpeech{}, &fakeMedia{}, slides, defaultParams())

	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls())
	assert.Empty(t, result.Slides[0].QA)

	stored, err := manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StageCompleted, stored.SlidesProgress[0].MCQ)
}

func TestStitchFailureStillReturnsResult(t *testing.T) {
	media := &fakeMedia{stitchErr: fmt.Errorf("concat demuxer choked")}
	p, _, job := newTestProcessor(t, &fakeGen{}, &fakeSpeech{}, media, textSlides(), defaultParams())

	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, result.FinalVideoPath)
	assert.NotEmpty(t, result.Slides[0].VideoPath)
}

func TestCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGen{narration: func(string) (string, error) {
		cancel()
		return "", ctx.Err()
	}}
	slides := []pptx.Slide{{Number: 1, Text: "A slide that is interrupted mid narration"}}
	p, manager, job := newTestProcessor(t, gen, &fakeSpeech{}, &fakeMedia{}, slides, defaultParams())

	_, err := p.Process(ctx, job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	// Cancellation is not recorded as a slide failure.
	stored, gerr := manager.GetJob(job.ID)
	require.NoError(t, gerr)
	require.Len(t, stored.SlidesProgress, 1)
	assert.Empty(t, stored.SlidesProgress[0].Error)
	assert.Equal(t, interfaces.StageProcessing, stored.SlidesProgress[0].Narration)
}

func TestMCQsDisabled(t *testing.T) {
	gen := &fakeGen{}
	params := defaultParams()
	params.GenerateMCQs = false
	slides := []pptx.Slide{{Number: 1, Text: "A slide processed with quiz generation turned off"}}
	p, manager, job := newTestProcessor(t, gen, &fakeSpeech{}, &fakeMedia{}, slides, params)

	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Zero(t, gen.calls())
	assert.Empty(t, result.Slides[0].QA)

	stored, err := manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StagePending, stored.SlidesProgress[0].MCQ)
}
