package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/logger"
	"github.com/slidecast/engine/internal/metrics"
)

// Manager handles the job lifecycle on top of a JobStore and fans every
// change out to registered notifiers.
type Manager struct {
	store         interfaces.JobStore
	maxConcurrent int

	mu        sync.Mutex
	notifiers []interfaces.Notifier
	cancels   map[string]context.CancelFunc
}

// NewManager creates a job manager with the given concurrency cap.
func NewManager(store interfaces.JobStore, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Manager{
		store:         store,
		maxConcurrent: maxConcurrent,
		cancels:       make(map[string]context.CancelFunc),
	}
}

// AddNotifier registers a listener for job events.
func (m *Manager) AddNotifier(n interfaces.Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

func (m *Manager) notify(event interfaces.JobEvent) {
	m.mu.Lock()
	notifiers := append([]interfaces.Notifier(nil), m.notifiers...)
	m.mu.Unlock()

	for _, n := range notifiers {
		n.Notify(event)
	}
}

// CreateParams describes a new conversion job.
type CreateParams struct {
	Filename      string
	UploadPath    string
	Language      string
	MaxSlides     int
	GenerateVideo bool
	GenerateMCQs  bool
}

// CreateJob registers a new pending job. It fails with TOO_MANY_JOBS
// when the active job cap is reached.
func (m *Manager) CreateJob(params CreateParams) (*interfaces.Job, error) {
	active, err := m.store.CountActive()
	if err != nil {
		return nil, fmt.Errorf("count active jobs: %w", err)
	}
	if active >= m.maxConcurrent {
		return nil, apperr.Newf(apperr.CodeTooManyJobs,
			"too many active jobs, limit is %d", m.maxConcurrent)
	}

	now := time.Now().UTC()
	job := &interfaces.Job{
		ID:            uuid.New().String(),
		Filename:      params.Filename,
		UploadPath:    params.UploadPath,
		Language:      params.Language,
		MaxSlides:     params.MaxSlides,
		GenerateVideo: params.GenerateVideo,
		GenerateMCQs:  params.GenerateMCQs,
		Status:        interfaces.StatusPending,
		CurrentStep:   "Queued",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := m.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	metrics.JobsSubmittedTotal.Inc()
	log := logger.WithJobID(job.ID)
	log.Info().Str("filename", job.Filename).Str("language", job.Language).Msg("Job created")
	return job, nil
}

// GetJob retrieves a job by ID.
func (m *Manager) GetJob(id string) (*interfaces.Job, error) {
	job, err := m.store.GetJob(id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, apperr.Newf(apperr.CodeJobNotFound, "job not found: %s", id)
	}
	return job, nil
}

// ClaimPendingJob hands the oldest pending job to a worker, marking it
// as processing. Returns nil when nothing is pending.
func (m *Manager) ClaimPendingJob() (*interfaces.Job, error) {
	return m.store.ClaimPendingJob()
}

// GetStatus returns the wire status of a job.
func (m *Manager) GetStatus(id string) (interfaces.JobStatus, error) {
	job, err := m.GetJob(id)
	if err != nil {
		return interfaces.JobStatus{}, err
	}
	return job.ToStatus(), nil
}

// GetResult returns the result of a completed job.
func (m *Manager) GetResult(id string) (*interfaces.JobResult, error) {
	job, err := m.GetJob(id)
	if err != nil {
		return nil, err
	}
	result, err := m.store.GetResult(id)
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	if result == nil {
		return nil, apperr.Newf(apperr.CodeJobNotCompleted,
			"job not completed, current status: %s", job.Status)
	}
	return result, nil
}

// ListJobs returns summaries of the most recent jobs, newest first.
func (m *Manager) ListJobs(limit int) ([]interfaces.JobSummary, error) {
	jobs, err := m.store.ListJobs(limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	summaries := make([]interfaces.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, job.Summary())
	}
	return summaries, nil
}

// StartProcessing marks the job as processing and seeds per-slide
// progress for the given slide numbers.
func (m *Manager) StartProcessing(id string, slideNumbers []int) error {
	job, err := m.GetJob(id)
	if err != nil {
		return err
	}

	job.Status = interfaces.StatusProcessing
	job.TotalSlides = len(slideNumbers)
	job.CurrentStep = "Starting processing"
	job.SlidesProgress = interfaces.NewSlidesProgress(slideNumbers)
	job.UpdatedAt = time.Now().UTC()
	if job.StartedAt == nil {
		started := job.UpdatedAt
		job.StartedAt = &started
	}

	if err := m.store.UpdateJob(job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	totalSlides := job.TotalSlides
	m.notify(interfaces.NewEvent(interfaces.EventStatus, job.ID, interfaces.JobStatus{
		Status:         job.Status,
		TotalSlides:    &totalSlides,
		CurrentStep:    job.CurrentStep,
		SlidesProgress: append([]interfaces.SlideProgress(nil), job.SlidesProgress...),
	}))
	return nil
}

// UpdateProgress advances the job's progress. Progress is clamped to
// 0-100 and never moves backwards. A zero currentSlide or empty step
// leaves the previous value in place.
func (m *Manager) UpdateProgress(id string, progress int, currentSlide int, step string) error {
	job, err := m.GetJob(id)
	if err != nil {
		return err
	}

	if progress > 100 {
		progress = 100
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if currentSlide > 0 {
		job.CurrentSlide = currentSlide
	}
	if step != "" {
		job.CurrentStep = step
	}
	job.UpdatedAt = time.Now().UTC()

	if err := m.store.UpdateJob(job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	m.notify(interfaces.NewEvent(interfaces.EventProgress, job.ID, progressPayload(job)))
	return nil
}

// StageUpdate carries per-slide stage transitions. Empty fields leave
// the stage untouched.
type StageUpdate struct {
	Narration interfaces.StageStatus
	MCQ       interfaces.StageStatus
	Video     interfaces.StageStatus
	Error     string
}

// UpdateSlideStage updates the stages of one slide.
func (m *Manager) UpdateSlideStage(id string, slideNumber int, update StageUpdate) error {
	job, err := m.GetJob(id)
	if err != nil {
		return err
	}

	for i := range job.SlidesProgress {
		if job.SlidesProgress[i].SlideNumber != slideNumber {
			continue
		}
		if update.Narration != "" {
			job.SlidesProgress[i].Narration = update.Narration
		}
		if update.MCQ != "" {
			job.SlidesProgress[i].MCQ = update.MCQ
		}
		if update.Video != "" {
			job.SlidesProgress[i].Video = update.Video
		}
		if update.Error != "" {
			job.SlidesProgress[i].Error = update.Error
		}
		break
	}
	job.UpdatedAt = time.Now().UTC()

	if err := m.store.UpdateJob(job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	m.notify(interfaces.NewEvent(interfaces.EventProgress, job.ID, progressPayload(job)))
	return nil
}

// CompleteJob marks the job as completed and stores its result. The
// completion event carries no payload; clients fetch the result over
// the REST API.
func (m *Manager) CompleteJob(id string, result *interfaces.JobResult) error {
	job, err := m.GetJob(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	job.Status = interfaces.StatusCompleted
	job.Progress = 100
	job.CurrentStep = "Completed"
	job.UpdatedAt = now
	job.FinishedAt = &now

	if err := m.store.UpdateJob(job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if err := m.store.SetResult(id, result); err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	m.releaseCancel(id)
	metrics.JobsCompletedTotal.Inc()
	logger.WithJobID(id).Info().Msg("Job completed successfully")

	m.notify(interfaces.NewEvent(interfaces.EventCompleted, id, nil))
	return nil
}

// FailJob marks the job as failed.
func (m *Manager) FailJob(id string, errMsg string) error {
	job, err := m.GetJob(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	job.Status = interfaces.StatusFailed
	job.Error = errMsg
	job.CurrentStep = "Failed"
	job.UpdatedAt = now
	job.FinishedAt = &now

	if err := m.store.UpdateJob(job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	m.releaseCancel(id)
	metrics.JobsFailedTotal.Inc()
	logger.WithJobID(id).Error().Str("error", errMsg).Msg("Job failed")

	m.notify(interfaces.NewEvent(interfaces.EventError, id, interfaces.ErrorPayload{Error: errMsg}))
	return nil
}

// CancelJob requests cancellation of a job. It returns false when the
// job already reached a terminal state.
func (m *Manager) CancelJob(id string) (bool, error) {
	job, err := m.GetJob(id)
	if err != nil {
		return false, err
	}
	if job.Terminal() {
		return false, nil
	}

	now := time.Now().UTC()
	job.Status = interfaces.StatusCancelled
	job.CurrentStep = "Cancelled"
	job.UpdatedAt = now
	job.FinishedAt = &now

	if err := m.store.UpdateJob(job); err != nil {
		return false, fmt.Errorf("update job: %w", err)
	}

	m.mu.Lock()
	cancel := m.cancels[id]
	delete(m.cancels, id)
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	metrics.JobsCancelledTotal.Inc()
	logger.WithJobID(id).Info().Msg("Job cancelled")

	m.notify(interfaces.NewEvent(interfaces.EventStatus, id, interfaces.JobStatus{
		Status:      interfaces.StatusCancelled,
		CurrentStep: job.CurrentStep,
	}))
	return true, nil
}

// RegisterCancel attaches the context cancel function of a running job
// so CancelJob can interrupt it.
func (m *Manager) RegisterCancel(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels[id] = cancel
}

// ReleaseCancel detaches a previously registered cancel function
// without invoking it.
func (m *Manager) ReleaseCancel(id string) {
	m.releaseCancel(id)
}

func (m *Manager) releaseCancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, id)
}

// DeleteJob removes a job and its result.
func (m *Manager) DeleteJob(id string) error {
	return m.store.DeleteJob(id)
}

// progressPayload is the partial status sent with progress events.
func progressPayload(job *interfaces.Job) interfaces.JobStatus {
	progress := job.Progress
	payload := interfaces.JobStatus{
		Progress:       &progress,
		CurrentStep:    job.CurrentStep,
		SlidesProgress: append([]interfaces.SlideProgress(nil), job.SlidesProgress...),
	}
	if job.CurrentSlide > 0 {
		slide := job.CurrentSlide
		payload.CurrentSlide = &slide
	}
	return payload
}
