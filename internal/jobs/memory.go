package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/slidecast/engine/internal/interfaces"
)

// MemoryStore is a thread-safe in-memory JobStore. When the job count
// exceeds the capacity the oldest jobs are evicted together with their
// results.
type MemoryStore struct {
	mu      sync.Mutex
	jobs    map[string]*interfaces.Job
	order   []string
	results map[string]*interfaces.JobResult
	maxJobs int
}

// NewMemoryStore creates a memory store holding at most maxJobs jobs.
func NewMemoryStore(maxJobs int) *MemoryStore {
	if maxJobs <= 0 {
		maxJobs = 100
	}
	return &MemoryStore{
		jobs:    make(map[string]*interfaces.Job),
		results: make(map[string]*interfaces.JobResult),
		maxJobs: maxJobs,
	}
}

// CreateJob stores a new job, evicting the oldest entries beyond
// capacity.
func (s *MemoryStore) CreateJob(job *interfaces.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}

	// Evict the oldest finished jobs first. Jobs still running are
	// never evicted, even when that leaves the store over capacity.
	for len(s.jobs) >= s.maxJobs {
		evicted := false
		for i, id := range s.order {
			candidate := s.jobs[id]
			if candidate != nil && !candidate.Terminal() {
				continue
			}
			s.order = append(s.order[:i], s.order[i+1:]...)
			delete(s.jobs, id)
			delete(s.results, id)
			evicted = true
			break
		}
		if !evicted {
			break
		}
	}

	s.jobs[job.ID] = cloneJob(job)
	s.order = append(s.order, job.ID)
	return nil
}

// GetJob returns a copy of the job, or nil when it does not exist.
func (s *MemoryStore) GetJob(id string) (*interfaces.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(job), nil
}

// UpdateJob replaces the stored job.
func (s *MemoryStore) UpdateJob(job *interfaces.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("job not found: %s", job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// ClaimPendingJob marks the oldest pending job as processing and
// returns it, or nil when none is pending.
func (s *MemoryStore) ClaimPendingJob() (*interfaces.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		job := s.jobs[id]
		if job == nil || job.Status != interfaces.StatusPending {
			continue
		}
		now := time.Now().UTC()
		job.Status = interfaces.StatusProcessing
		job.UpdatedAt = now
		job.StartedAt = &now
		return cloneJob(job), nil
	}
	return nil, nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *MemoryStore) ListJobs(limit int) ([]*interfaces.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}

	out := make([]*interfaces.Job, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		if job, ok := s.jobs[s.order[i]]; ok {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

// CountActive counts jobs that are pending or processing.
func (s *MemoryStore) CountActive() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, job := range s.jobs {
		if job.Status == interfaces.StatusPending || job.Status == interfaces.StatusProcessing {
			count++
		}
	}
	return count, nil
}

// SetResult stores the result of a job.
func (s *MemoryStore) SetResult(id string, result *interfaces.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	s.results[id] = result
	return nil
}

// GetResult returns the stored result, or nil when none exists.
func (s *MemoryStore) GetResult(id string) (*interfaces.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[id], nil
}

// DeleteJob removes a job and its result.
func (s *MemoryStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
	delete(s.results, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func cloneJob(j *interfaces.Job) *interfaces.Job {
	c := *j
	c.SlidesProgress = append([]interfaces.SlideProgress(nil), j.SlidesProgress...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
