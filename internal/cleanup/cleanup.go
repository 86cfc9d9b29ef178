// Package cleanup removes stale generated artifacts on a schedule.
// Uploads, audio, images and videos accumulate on disk for every job;
// the sweeper deletes anything older than the configured retention
// age.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/slidecast/engine/internal/config"
	"github.com/slidecast/engine/internal/logger"
)

// Sweeper deletes expired artifacts from the artifact directories.
type Sweeper struct {
	storage config.StorageConfig
	maxAge  time.Duration
	cron    *cron.Cron
}

func NewSweeper(storage config.StorageConfig, maxAge time.Duration) *Sweeper {
	return &Sweeper{storage: storage, maxAge: maxAge}
}

// Start schedules periodic sweeps. The schedule accepts cron
// expressions and the @hourly / @every forms.
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, func() {
		if err := s.Sweep(); err != nil {
			logger.Logger.Error().Err(err).Msg("Artifact sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	s.cron.Start()

	logger.Logger.Info().
		Str("schedule", schedule).
		Dur("max_age", s.maxAge).
		Msg("Artifact cleanup scheduled")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep removes everything older than the retention age from each
// artifact directory. Entries that cannot be removed are logged and
// skipped.
func (s *Sweeper) Sweep() error {
	cutoff := time.Now().Add(-s.maxAge)

	dirs := []string{
		s.storage.UploadsDir(),
		s.storage.AudioDir(),
		s.storage.ImagesDir(),
		s.storage.VideosDir(),
		s.storage.FinalVideosDir(),
	}

	removed := 0
	for _, dir := range dirs {
		n, err := sweepDir(dir, cutoff)
		removed += n
		if err != nil {
			return err
		}
	}

	if removed > 0 {
		logger.Logger.Info().Int("removed", removed).Msg("Artifact sweep finished")
	}
	return nil
}

func sweepDir(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}

	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Logger.Warn().Err(err).Str("path", path).Msg("Failed to remove expired artifact")
			continue
		}
		removed++
	}
	return removed, nil
}
