package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/logger"
	"github.com/slidecast/engine/internal/metrics"
)

// JobProcessor runs the conversion for one claimed job.
type JobProcessor interface {
	Process(ctx context.Context, job *interfaces.Job) (*interfaces.JobResult, error)
}

// Pool claims pending jobs from the store and runs them through the
// processor, at most one job per worker at a time.
type Pool struct {
	manager      *jobs.Manager
	processor    JobProcessor
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	workerCount  int
	pollInterval time.Duration
	jobTimeout   time.Duration
}

// NewPool creates a worker pool. Jobs that run longer than jobTimeout
// are failed.
func NewPool(manager *jobs.Manager, processor JobProcessor, workerCount int, jobTimeout time.Duration) *Pool {
	if workerCount <= 0 {
		workerCount = 3
	}
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		manager:      manager,
		processor:    processor,
		workerCount:  workerCount,
		ctx:          ctx,
		cancel:       cancel,
		pollInterval: 1 * time.Second,
		jobTimeout:   jobTimeout,
	}
}

// Start begins processing jobs with the specified number of workers
func (p *Pool) Start() {
	logger.Logger.Info().Int("worker_count", p.workerCount).Msg("Starting worker pool")
	metrics.ActiveWorkers.Set(float64(p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully shuts down the worker pool
func (p *Pool) Stop() {
	logger.Logger.Info().Msg("Stopping worker pool")
	p.cancel()
	p.wg.Wait()
	metrics.ActiveWorkers.Set(0)
	logger.Logger.Info().Msg("Worker pool stopped")
}

// worker is the main worker goroutine that polls the store for jobs
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger.Logger.Info().Int("worker_id", id).Msg("Worker started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			logger.Logger.Info().Int("worker_id", id).Msg("Worker shutting down")
			return
		case <-ticker.C:
			job, err := p.manager.ClaimPendingJob()
			if err != nil {
				logger.Logger.Error().Int("worker_id", id).Err(err).Msg("Error claiming pending job")
				continue
			}

			if job != nil {
				p.processJob(id, job)
			}
		}
	}
}

// processJob runs a single claimed job to a terminal state.
func (p *Pool) processJob(workerID int, job *interfaces.Job) {
	log := logger.WithJobID(job.ID)
	log.Info().
		Int("worker_id", workerID).
		Str("filename", job.Filename).
		Str("language", job.Language).
		Msg("Processing job")

	ctx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
	defer cancel()

	p.manager.RegisterCancel(job.ID, cancel)
	defer p.manager.ReleaseCancel(job.ID)

	// A cancel request may have arrived between the claim and the
	// registration above.
	if current, err := p.manager.GetJob(job.ID); err != nil || current.Status != interfaces.StatusProcessing {
		log.Info().Msg("Job no longer processing, skipping")
		return
	}

	startTime := time.Now()
	result, err := p.processor.Process(ctx, job)
	duration := time.Since(startTime).Seconds()
	metrics.JobProcessingDuration.Observe(duration)

	switch {
	case err == nil:
		if cerr := p.manager.CompleteJob(job.ID, result); cerr != nil {
			log.Error().Int("worker_id", workerID).Err(cerr).Msg("Failed to record completed job")
		}

	case errors.Is(err, context.DeadlineExceeded):
		log.Error().Int("worker_id", workerID).Dur("timeout", p.jobTimeout).Msg("Job timed out")
		if ferr := p.manager.FailJob(job.ID, fmt.Sprintf("Job timed out after %s", p.jobTimeout)); ferr != nil {
			log.Error().Err(ferr).Msg("Failed to record timed out job")
		}

	case errors.Is(err, context.Canceled):
		// CancelJob already moved the record, nothing to write here.
		if current, gerr := p.manager.GetJob(job.ID); gerr == nil && current.Status == interfaces.StatusCancelled {
			log.Info().Int("worker_id", workerID).Msg("Job was cancelled")
		} else {
			log.Warn().Int("worker_id", workerID).Msg("Job interrupted by shutdown")
		}

	default:
		log.Error().Int("worker_id", workerID).Err(err).Msg("Job processing failed")
		if ferr := p.manager.FailJob(job.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("Failed to record failed job")
		}
	}
}
