package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumen-live/season-ranking/internal/domain/ranking"
	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CREATOR RANK QUERY
// Position, score breakdown and tier of a single creator in a season.
// ══════════════════════════════════════════════════════════════════════════════

// GetCreatorRankQuery requests one creator's standing.
type GetCreatorRankQuery struct {
	// SeasonID is the target season (empty = the active season).
	SeasonID string

	// CreatorID is the creator to look up.
	CreatorID string
}

// GetCreatorRankResult is the creator standing read model.
type GetCreatorRankResult struct {
	SeasonID           string    `json:"season_id"`
	CreatorID          string    `json:"creator_id"`
	Rank               int       `json:"rank"`
	CompositeScore     float64   `json:"composite_score"`
	Tier               string    `json:"tier"`
	GiftSubtotal       float64   `json:"gift_subtotal"`
	BattleSubtotal     float64   `json:"battle_subtotal"`
	UniqueSupporters   int       `json:"unique_supporters"`
	Momentum           float64   `json:"momentum"`
	LastRecalculatedAt time.Time `json:"last_recalculated_at"`
}

// GetCreatorRankHandler handles creator standing reads.
type GetCreatorRankHandler struct {
	seasonRepo season.SeasonRepository
	entryRepo  ranking.EntryRepository
	cache      ranking.Cache
	logger     *slog.Logger
}

// NewGetCreatorRankHandler creates a new handler.
func NewGetCreatorRankHandler(seasonRepo season.SeasonRepository, entryRepo ranking.EntryRepository, cache ranking.Cache, logger *slog.Logger) *GetCreatorRankHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetCreatorRankHandler{
		seasonRepo: seasonRepo,
		entryRepo:  entryRepo,
		cache:      cache,
		logger:     logger,
	}
}

// Handle returns the creator's standing in the season.
func (h *GetCreatorRankHandler) Handle(ctx context.Context, q GetCreatorRankQuery) (*GetCreatorRankResult, error) {
	if q.CreatorID == "" {
		return nil, fmt.Errorf("%w: creator_id is required", shared.ErrInvalidInput)
	}

	s, err := h.resolveSeason(ctx, q.SeasonID)
	if err != nil {
		return nil, err
	}

	entry := h.fromCache(ctx, s.ID, q.CreatorID)
	if entry == nil {
		entry, err = h.entryRepo.GetByCreator(ctx, s.ID, q.CreatorID)
		if err != nil {
			return nil, err
		}
	}

	return &GetCreatorRankResult{
		SeasonID:           s.ID,
		CreatorID:          entry.CreatorID,
		Rank:               int(entry.Rank),
		CompositeScore:     entry.CompositeScore,
		Tier:               entry.Tier.String(),
		GiftSubtotal:       entry.Subtotals.Gift,
		BattleSubtotal:     entry.Subtotals.Battle,
		UniqueSupporters:   entry.Subtotals.UniqueSupporters,
		Momentum:           entry.Subtotals.Momentum,
		LastRecalculatedAt: entry.LastRecalculatedAt,
	}, nil
}

func (h *GetCreatorRankHandler) fromCache(ctx context.Context, seasonID, creatorID string) *ranking.Entry {
	if h.cache == nil {
		return nil
	}
	entry, err := h.cache.GetCreator(ctx, seasonID, creatorID)
	if err != nil {
		h.logger.Warn("creator cache read failed, falling back", "creator_id", creatorID, "error", err)
		return nil
	}
	return entry
}

func (h *GetCreatorRankHandler) resolveSeason(ctx context.Context, seasonID string) (*season.Season, error) {
	if seasonID == "" {
		s, err := h.seasonRepo.GetActive(ctx)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.ErrNoActiveSeason
			}
			return nil, fmt.Errorf("get_creator_rank: resolve active season: %w", err)
		}
		return s, nil
	}
	s, err := h.seasonRepo.GetByID(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("get_creator_rank: load season: %w", err)
	}
	return s, nil
}
