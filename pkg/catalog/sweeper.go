package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/ironclaw/internal/observability"
)

// Sweeper periodically re-checks every registered artifact on disk and
// refreshes the missing-artifact gauge. It is observational only; a missing
// artifact never removes a record from the catalog.
type Sweeper struct {
	logger   zerolog.Logger
	handle   *Handle
	schedule cron.Schedule

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewSweeper creates a sweeper driven by a five-field cron expression
func NewSweeper(logger zerolog.Logger, handle *Handle, expr string) (*Sweeper, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule: %w", err)
	}

	return &Sweeper{
		logger:   logger.With().Str("component", "catalog-sweeper").Logger(),
		handle:   handle,
		schedule: schedule,
	}, nil
}

// Start arms the timer for the next scheduled sweep
func (s *Sweeper) Start() {
	s.arm()
}

// Stop cancels any pending sweep
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// arm schedules the next sweep run
func (s *Sweeper) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	next := s.schedule.Next(time.Now())
	s.timer = time.AfterFunc(time.Until(next), s.sweep)

	s.logger.Debug().
		Time("next_run", next).
		Msg("Artifact sweep scheduled")
}

// sweep checks every artifact and re-arms for the next run
func (s *Sweeper) sweep() {
	cat := s.handle.Snapshot()
	missing := cat.MissingArtifacts()

	for _, rec := range missing {
		s.logger.Warn().
			Str("capability", rec.Name).
			Str("binary_path", rec.BinaryPath).
			Msg("Artifact still missing")
	}

	observability.SetMissingArtifacts(len(missing))

	s.logger.Info().
		Int("capabilities", cat.Len()).
		Int("missing", len(missing)).
		Msg("Artifact sweep complete")

	s.arm()
}
