package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukex/flowforge/pkg/models"
)

const (
	DefaultSweepSchedule = "@every 1m"
	DefaultStaleAfter    = 10 * time.Minute

	// InterruptedMessage is recorded on deployments whose run did not survive the process.
	InterruptedMessage = "deployment interrupted"
)

// Sweeper fails deployments that are still pending or in progress in the
// store but have no live run in this process and have not progressed for
// staleAfter.
type Sweeper struct {
	orchestrator *Orchestrator
	staleAfter   time.Duration
	logger       *slog.Logger
	cron         *cron.Cron
}

func NewSweeper(o *Orchestrator, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	return &Sweeper{
		orchestrator: o,
		staleAfter:   staleAfter,
		logger:       logger.With("module", "deployment_sweeper"),
	}
}

// Start runs Sweep on schedule, a robfig/cron schedule such as "@every 1m".
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(schedule, func() {
		_, err := s.Sweep(context.Background())
		if err != nil {
			s.logger.Error("Sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Sweeper started", "schedule", schedule, "stale_after", s.staleAfter)

	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
}

// Sweep marks stale active deployments as failed and returns how many it changed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	states, err := s.orchestrator.store.DeploymentStates(ctx, models.DeploymentStatusPending, models.DeploymentStatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("failed to list active deployments: %w", err)
	}

	cutoff := s.orchestrator.now().Add(-s.staleAfter)
	swept := 0

	for _, state := range states {
		if state.UpdatedAt.After(cutoff) {
			continue
		}

		interrupted, err := s.orchestrator.interrupt(ctx, state.DeploymentID, cutoff)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to interrupt deployment", "deployment_id", state.DeploymentID, "error", err)

			continue
		}

		if interrupted {
			swept++
		}
	}

	if swept > 0 {
		s.logger.InfoContext(ctx, "Interrupted stale deployments", "count", swept)
	}

	return swept, nil
}

// interrupt fails id unless a run owns it or it progressed after cutoff.
func (o *Orchestrator) interrupt(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	a := o.acquire(id)
	defer o.release(a)

	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.hydrate(ctx, o.store)
	if err != nil {
		return false, err
	}

	if a.running || a.state == nil || !a.state.Status.Active() || a.state.UpdatedAt.After(cutoff) {
		return false, nil
	}

	o.failLocked(ctx, a, InterruptedMessage)

	return true, nil
}
