package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slidecast/engine/internal/interfaces"
)

const jobColumns = `id, filename, upload_path, language, max_slides, generate_video, generate_mcqs,
		status, progress, current_slide, total_slides, current_step, error, slides_progress,
		created_at, updated_at, started_at, finished_at`

// Store persists jobs in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new database store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(job *interfaces.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	slides, err := marshalSlides(job.SlidesProgress)
	if err != nil {
		return fmt.Errorf("failed to encode slides progress: %w", err)
	}

	_, err = s.db.Exec(query,
		job.ID, job.Filename, job.UploadPath, job.Language, job.MaxSlides,
		job.GenerateVideo, job.GenerateMCQs, job.Status, job.Progress,
		job.CurrentSlide, job.TotalSlides, job.CurrentStep, job.Error, slides,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.FinishedAt)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by ID, or nil when no such job exists.
func (s *Store) GetJob(id string) (*interfaces.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// UpdateJob updates an existing job
func (s *Store) UpdateJob(job *interfaces.Job) error {
	query := `
		UPDATE jobs
		SET status = $2, progress = $3, current_slide = $4, total_slides = $5,
			current_step = $6, error = $7, slides_progress = $8,
			updated_at = $9, started_at = $10, finished_at = $11
		WHERE id = $1
	`

	slides, err := marshalSlides(job.SlidesProgress)
	if err != nil {
		return fmt.Errorf("failed to encode slides progress: %w", err)
	}

	result, err := s.db.Exec(query,
		job.ID, job.Status, job.Progress, job.CurrentSlide, job.TotalSlides,
		job.CurrentStep, job.Error, slides,
		job.UpdatedAt, job.StartedAt, job.FinishedAt)

	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job not found: %s", job.ID)
	}

	return nil
}

// ClaimPendingJob atomically marks the oldest pending job as processing
// and returns it. Uses FOR UPDATE SKIP LOCKED so concurrent workers
// never claim the same job. Returns nil when no job is pending.
func (s *Store) ClaimPendingJob() (*interfaces.Job, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	job, err := scanJob(tx.QueryRow(query))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending job: %w", err)
	}

	now := time.Now().UTC()
	job.Status = interfaces.StatusProcessing
	job.UpdatedAt = now
	job.StartedAt = &now

	updateQuery := `UPDATE jobs SET status = $2, updated_at = $3, started_at = $4 WHERE id = $1`
	if _, err = tx.Exec(updateQuery, job.ID, job.Status, job.UpdatedAt, job.StartedAt); err != nil {
		return nil, fmt.Errorf("failed to mark job as processing: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return job, nil
}

// ListJobs retrieves the most recent jobs, newest first. A limit of
// zero or less returns all jobs.
func (s *Store) ListJobs(limit int) ([]*interfaces.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT $1`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*interfaces.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return jobs, nil
}

// CountActive counts jobs that are pending or processing.
func (s *Store) CountActive() (int, error) {
	query := `SELECT COUNT(*) FROM jobs WHERE status IN ('pending', 'processing')`

	var count int
	if err := s.db.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}

	return count, nil
}

// SetResult stores the final result document of a job.
func (s *Store) SetResult(id string, result *interfaces.JobResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	res, err := s.db.Exec(`UPDATE jobs SET result = $2 WHERE id = $1`, id, data)
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job not found: %s", id)
	}

	return nil
}

// GetResult returns the stored result, or nil when none exists.
func (s *Store) GetResult(id string) (*interfaces.JobResult, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT result FROM jobs WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	result := &interfaces.JobResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}

	return result, nil
}

// DeleteJob removes a job and its result. Deleting a job that does not
// exist is a no-op.
func (s *Store) DeleteJob(id string) error {
	if _, err := s.db.Exec(`DELETE FROM jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*interfaces.Job, error) {
	job := &interfaces.Job{}
	var (
		slides     []byte
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID, &job.Filename, &job.UploadPath, &job.Language, &job.MaxSlides,
		&job.GenerateVideo, &job.GenerateMCQs, &job.Status, &job.Progress,
		&job.CurrentSlide, &job.TotalSlides, &job.CurrentStep, &job.Error, &slides,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if len(slides) > 0 {
		if err := json.Unmarshal(slides, &job.SlidesProgress); err != nil {
			return nil, fmt.Errorf("failed to decode slides progress: %w", err)
		}
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}

	return job, nil
}

func marshalSlides(slides []interfaces.SlideProgress) ([]byte, error) {
	if len(slides) == 0 {
		return nil, nil
	}
	return json.Marshal(slides)
}
