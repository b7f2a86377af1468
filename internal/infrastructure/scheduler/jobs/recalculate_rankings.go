// Package jobs contains implementations of scheduled jobs for the
// season ranking service.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumen-live/season-ranking/internal/application/command"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE RANKINGS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RecalculateRankingsJob runs a full recalculation pass over the
// active season. All the actual work lives in the command handler;
// the job only decides what counts as a failure from the scheduler's
// point of view.
type RecalculateRankingsJob struct {
	handler *command.RecalculateSeasonHandler
	logger  *slog.Logger

	// Timeout is the maximum duration of one pass.
	Timeout time.Duration
}

// NewRecalculateRankingsJob creates a new recalculation job.
func NewRecalculateRankingsJob(handler *command.RecalculateSeasonHandler, logger *slog.Logger) *RecalculateRankingsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalculateRankingsJob{
		handler: handler,
		logger:  logger,
		Timeout: 30 * time.Minute,
	}
}

// Name returns the unique name of the job.
func (j *RecalculateRankingsJob) Name() string {
	return "recalculate_rankings"
}

// Description returns a human-readable description of the job.
func (j *RecalculateRankingsJob) Description() string {
	return "Recalculates composite scores, tiers and ranks for the active season"
}

// Run executes one recalculation pass over the active season.
//
// Two outcomes are not failures: no active season exists, or another
// pass already holds the season lock. Both are expected in normal
// operation and only logged.
func (j *RecalculateRankingsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	result, err := j.handler.Handle(ctx, command.RecalculateSeasonCommand{TriggeredByJob: true})
	if err != nil {
		if errors.Is(err, shared.ErrNoActiveSeason) {
			j.logger.Info("no active season, skipping recalculation")
			return nil
		}
		if errors.Is(err, shared.ErrRecalcInFlight) {
			j.logger.Info("recalculation already in flight, skipping")
			return nil
		}
		return fmt.Errorf("recalculation pass: %w", err)
	}

	j.logger.Info("scheduled recalculation finished",
		"season_id", result.SeasonID,
		"run_id", result.RunID,
		"creators_total", result.CreatorsTotal,
		"creators_failed", result.CreatorsFailed,
		"chunks_failed", result.ChunksFailed,
		"duration", result.Duration.String(),
	)
	return nil
}

// LastRun returns the stats of the most recent pass, scheduled or
// manual, or nil if none completed yet.
func (j *RecalculateRankingsJob) LastRun() *command.RecalculateSeasonResult {
	return j.handler.LastRun()
}
