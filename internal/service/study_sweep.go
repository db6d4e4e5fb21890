package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/insight-lab/research-go-api/internal/observability"
	"github.com/insight-lab/research-go-api/internal/repository"
)

// StudySweeper periodically advances study lifecycles: drafts whose start
// date has arrived become active, active studies past their end date become
// completed. One sweep runs immediately on start, then on every tick.
type StudySweeper struct {
	studies  repository.StudyRepository
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStudySweeper constructs the sweeper.
func NewStudySweeper(studies repository.StudyRepository, interval time.Duration, logger zerolog.Logger) *StudySweeper {
	if interval <= 0 {
		interval = time.Hour
	}

	return &StudySweeper{
		studies:  studies,
		interval: interval,
		logger:   logger.With().Str("component", "study_sweeper").Logger(),
		now:      time.Now,
	}
}

// Run blocks until the context is cancelled. Intended to be started in its
// own goroutine from main.
func (s *StudySweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *StudySweeper) sweep(ctx context.Context) {
	changed, err := s.studies.AdvanceLifecycle(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("study lifecycle sweep failed")
		return
	}

	observability.StudySweepTransitionsTotal().Add(float64(changed))

	if changed > 0 {
		s.logger.Info().Int64("studies_transitioned", changed).Msg("study lifecycle sweep applied transitions")
	}
}
