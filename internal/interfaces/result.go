package interfaces

import "time"

// MCQuestion is one generated multiple-choice question.
type MCQuestion struct {
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Answer     string   `json:"answer"`
	Difficulty string   `json:"difficulty"`
}

// SlideResult holds everything produced for one slide.
type SlideResult struct {
	SlideNumber int                     `json:"slide_number"`
	Text        string                  `json:"text"`
	HasText     bool                    `json:"has_text"`
	Narration   string                  `json:"narration,omitempty"`
	QA          map[string][]MCQuestion `json:"qa,omitempty"`
	AudioPath   string                  `json:"audio_path,omitempty"`
	ImagePath   string                  `json:"image_path,omitempty"`
	VideoPath   string                  `json:"video_path,omitempty"`
}

// JobResult is the final output of a completed job.
type JobResult struct {
	JobID          string        `json:"job_id"`
	Status         Status        `json:"status"`
	Filename       string        `json:"filename"`
	Language       string        `json:"language"`
	Slides         []SlideResult `json:"slides"`
	FinalVideoPath string        `json:"final_video_path,omitempty"`
	ProcessingTime float64       `json:"processing_time_seconds"`
	CreatedAt      time.Time     `json:"created_at"`
	CompletedAt    time.Time     `json:"completed_at"`
}

// JobSummary is the compact listing form of a job.
type JobSummary struct {
	JobID     string    `json:"job_id"`
	Filename  string    `json:"filename"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary converts the record into its listing form.
func (j *Job) Summary() JobSummary {
	return JobSummary{
		JobID:     j.ID,
		Filename:  j.Filename,
		Status:    j.Status,
		Progress:  j.Progress,
		CreatedAt: j.CreatedAt,
	}
}
