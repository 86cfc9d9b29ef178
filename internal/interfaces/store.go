package interfaces

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StageStatus represents the state of one per-slide stage.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
)

// SlideProgress tracks the narration, MCQ and video stages for one slide.
type SlideProgress struct {
	SlideNumber int         `json:"slide_number"`
	Narration   StageStatus `json:"narration"`
	MCQ         StageStatus `json:"mcq"`
	Video       StageStatus `json:"video"`
	Error       string      `json:"error,omitempty"`
}

// NewSlidesProgress builds the initial per-slide progress list for the
// given slide numbers, all stages pending.
func NewSlidesProgress(slideNumbers []int) []SlideProgress {
	out := make([]SlideProgress, 0, len(slideNumbers))
	for _, n := range slideNumbers {
		out = append(out, SlideProgress{
			SlideNumber: n,
			Narration:   StagePending,
			MCQ:         StagePending,
			Video:       StagePending,
		})
	}
	return out
}

// Job is the server-side record of one presentation conversion.
type Job struct {
	ID             string          `json:"job_id"`
	Filename       string          `json:"filename"`
	UploadPath     string          `json:"upload_path,omitempty"`
	Language       string          `json:"language"`
	MaxSlides      int             `json:"max_slides"`
	GenerateVideo  bool            `json:"generate_video"`
	GenerateMCQs   bool            `json:"generate_mcqs"`
	Status         Status          `json:"status"`
	Progress       int             `json:"progress"`
	CurrentSlide   int             `json:"current_slide"`
	TotalSlides    int             `json:"total_slides"`
	CurrentStep    string          `json:"current_step,omitempty"`
	Error          string          `json:"error,omitempty"`
	SlidesProgress []SlideProgress `json:"slides_progress,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

// String returns a string representation of the job.
func (j *Job) String() string {
	return fmt.Sprintf("Job{ID: %s, File: %s, Status: %s, Progress: %d%%}",
		j.ID, j.Filename, j.Status, j.Progress)
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}

// ToStatus converts the record into its wire representation with every
// field populated.
func (j *Job) ToStatus() JobStatus {
	progress := j.Progress
	currentSlide := j.CurrentSlide
	totalSlides := j.TotalSlides
	createdAt := j.CreatedAt
	updatedAt := j.UpdatedAt
	return JobStatus{
		JobID:          j.ID,
		Status:         j.Status,
		Progress:       &progress,
		CurrentSlide:   &currentSlide,
		TotalSlides:    &totalSlides,
		CurrentStep:    j.CurrentStep,
		Error:          j.Error,
		SlidesProgress: append([]SlideProgress(nil), j.SlidesProgress...),
		CreatedAt:      &createdAt,
		UpdatedAt:      &updatedAt,
		CompletedAt:    j.FinishedAt,
	}
}

// JobStore interface defines the persistence operations needed by the manager
// and the worker pool.
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	// ClaimPendingJob atomically marks the oldest pending job as
	// processing and returns it, or nil when none is pending.
	ClaimPendingJob() (*Job, error)
	ListJobs(limit int) ([]*Job, error)
	CountActive() (int, error)
	SetResult(id string, result *JobResult) error
	GetResult(id string) (*JobResult, error)
	DeleteJob(id string) error
}
