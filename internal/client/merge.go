package client

import "github.com/slidecast/engine/internal/interfaces"

// Merge overlays update onto base field by field. Fields absent from
// the update keep the base value, so the same function serves both to
// accumulate partial updates from one channel and to project the
// stream view over the poll view. slides_progress is replaced as a
// whole when the update carries a non-empty array.
func Merge(base, update interfaces.JobStatus) interfaces.JobStatus {
	out := base

	if update.JobID != "" {
		out.JobID = update.JobID
	}
	if update.Status != "" {
		out.Status = update.Status
	}
	if update.Progress != nil {
		out.Progress = update.Progress
	}
	if update.CurrentSlide != nil {
		out.CurrentSlide = update.CurrentSlide
	}
	if update.TotalSlides != nil {
		out.TotalSlides = update.TotalSlides
	}
	if update.CurrentStep != "" {
		out.CurrentStep = update.CurrentStep
	}
	if update.Error != "" {
		out.Error = update.Error
	}
	if len(update.SlidesProgress) > 0 {
		out.SlidesProgress = update.SlidesProgress
	}
	if update.CreatedAt != nil {
		out.CreatedAt = update.CreatedAt
	}
	if update.UpdatedAt != nil {
		out.UpdatedAt = update.UpdatedAt
	}
	if update.CompletedAt != nil {
		out.CompletedAt = update.CompletedAt
	}

	return out
}
