package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OVERRIDE SEASON CONFIG COMMAND
// Administrative replacement of an active season's scoring config.
// The config is otherwise frozen for the whole season; every override
// is followed by a full recalculation so that stored scores never
// reflect a mix of old and new weights.
// ══════════════════════════════════════════════════════════════════════════════

// OverrideConfigCommand contains the replacement config.
type OverrideConfigCommand struct {
	// SeasonID is the target season.
	SeasonID string

	// Config is the full replacement config.
	Config season.Config

	// OverriddenBy identifies the administrator, for the audit trail.
	OverriddenBy string
}

// Validate validates the command.
func (c OverrideConfigCommand) Validate() error {
	if c.SeasonID == "" {
		return errors.New("override_config: season_id is required")
	}
	if c.OverriddenBy == "" {
		return errors.New("override_config: overridden_by is required")
	}
	return nil
}

// OverrideConfigHandler handles config overrides.
type OverrideConfigHandler struct {
	seasonRepo season.SeasonRepository
	recalc     *RecalculateSeasonHandler
	publisher  shared.EventPublisher
	logger     *slog.Logger
}

// NewOverrideConfigHandler creates a new handler.
func NewOverrideConfigHandler(seasonRepo season.SeasonRepository, recalc *RecalculateSeasonHandler, publisher shared.EventPublisher, logger *slog.Logger) *OverrideConfigHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideConfigHandler{
		seasonRepo: seasonRepo,
		recalc:     recalc,
		publisher:  publisher,
		logger:     logger,
	}
}

// Handle replaces the season config and triggers a full recalculation.
func (h *OverrideConfigHandler) Handle(ctx context.Context, cmd OverrideConfigCommand) (*RecalculateSeasonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s, err := h.seasonRepo.GetByID(ctx, cmd.SeasonID)
	if err != nil {
		return nil, fmt.Errorf("override_config: load season: %w", err)
	}

	if err := s.OverrideConfig(cmd.Config); err != nil {
		return nil, err
	}
	if err := h.seasonRepo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("override_config: persist: %w", err)
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(shared.NewSeasonConfigOverrideEvent(s.ID, cmd.OverriddenBy)); err != nil {
			h.logger.Warn("failed to publish season.config_overridden", "season_id", s.ID, "error", err)
		}
	}

	h.logger.Info("season config overridden, starting full recalculation",
		"season_id", s.ID,
		"overridden_by", cmd.OverriddenBy,
	)

	// Mandatory follow-up pass: stored entries still carry scores from
	// the previous config until it completes.
	return h.recalc.Handle(ctx, RecalculateSeasonCommand{SeasonID: s.ID})
}
