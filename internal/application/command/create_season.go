// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE SEASON COMMAND
// Opens a new competitive season. At most one season may be active at a
// time; the previous one must be ended first.
// ══════════════════════════════════════════════════════════════════════════════

// CreateSeasonCommand contains the data to open a season.
type CreateSeasonCommand struct {
	// Number is the sequential season number.
	Number int

	// Label is the human-readable season name.
	Label string

	// StartsAt is the season start (defaults to now if zero).
	StartsAt time.Time

	// Duration is the planned season length.
	Duration time.Duration

	// Config overrides the default scoring config (nil = defaults).
	Config *season.Config

	// Tiers overrides the default tier table (nil = defaults).
	Tiers *season.TierTable
}

// Validate validates the command.
func (c CreateSeasonCommand) Validate() error {
	if c.Number < 1 {
		return errors.New("create_season: number must be >= 1")
	}
	if c.Label == "" {
		return errors.New("create_season: label is required")
	}
	if c.Duration <= 0 {
		return errors.New("create_season: duration must be positive")
	}
	return nil
}

// CreateSeasonResult contains the result of opening a season.
type CreateSeasonResult struct {
	SeasonID string
	Number   season.Number
	StartsAt time.Time
	EndsAt   time.Time
}

// CreateSeasonHandler handles season creation.
type CreateSeasonHandler struct {
	seasonRepo season.SeasonRepository
	publisher  shared.EventPublisher
	logger     *slog.Logger
}

// NewCreateSeasonHandler creates a new handler.
func NewCreateSeasonHandler(seasonRepo season.SeasonRepository, publisher shared.EventPublisher, logger *slog.Logger) *CreateSeasonHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateSeasonHandler{
		seasonRepo: seasonRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// Handle opens a new season.
func (h *CreateSeasonHandler) Handle(ctx context.Context, cmd CreateSeasonCommand) (*CreateSeasonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	// The storage layer enforces the single-active-season invariant as
	// well; this check exists for a readable error on the common path.
	if _, err := h.seasonRepo.GetActive(ctx); err == nil {
		return nil, shared.ErrActiveSeasonExists
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("create_season: check active: %w", err)
	}

	cfg := season.DefaultConfig()
	if cmd.Config != nil {
		cfg = *cmd.Config
	}
	tiers := season.DefaultTierTable()
	if cmd.Tiers != nil {
		tiers = *cmd.Tiers
	}

	startsAt := cmd.StartsAt
	if startsAt.IsZero() {
		startsAt = time.Now().UTC()
	}

	s, err := season.New(season.Number(cmd.Number), cmd.Label, startsAt, cmd.Duration, cfg, tiers)
	if err != nil {
		return nil, err
	}

	if err := h.seasonRepo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create_season: persist: %w", err)
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(shared.NewSeasonCreatedEvent(s.ID, int(s.Number), s.Label, s.StartsAt, s.EndsAt)); err != nil {
			h.logger.Warn("failed to publish season.created", "season_id", s.ID, "error", err)
		}
	}

	h.logger.Info("season created",
		"season_id", s.ID,
		"number", int(s.Number),
		"label", s.Label,
		"ends_at", s.EndsAt,
	)

	return &CreateSeasonResult{
		SeasonID: s.ID,
		Number:   s.Number,
		StartsAt: s.StartsAt,
		EndsAt:   s.EndsAt,
	}, nil
}
