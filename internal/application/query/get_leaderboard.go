// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumen-live/season-ranking/internal/domain/ranking"
	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Reads the top of the season leaderboard, cache-first: the Redis
// projection serves the hot path, Postgres is the fallback and the
// source of truth.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery requests the top of a season's leaderboard.
type GetLeaderboardQuery struct {
	// SeasonID is the target season (empty = the active season).
	SeasonID string

	// Limit is the number of entries to return (default 50, max 500).
	Limit int
}

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 500
)

// LeaderboardRow is one row of the read model.
type LeaderboardRow struct {
	Rank             int     `json:"rank"`
	CreatorID        string  `json:"creator_id"`
	CompositeScore   float64 `json:"composite_score"`
	Tier             string  `json:"tier"`
	UniqueSupporters int     `json:"unique_supporters"`
}

// GetLeaderboardResult is the leaderboard read model.
type GetLeaderboardResult struct {
	SeasonID     string           `json:"season_id"`
	SeasonNumber int              `json:"season_number"`
	SeasonStatus string           `json:"season_status"`
	Rows         []LeaderboardRow `json:"rows"`
	FromCache    bool             `json:"-"`
}

// GetLeaderboardHandler handles leaderboard reads.
type GetLeaderboardHandler struct {
	seasonRepo season.SeasonRepository
	entryRepo  ranking.EntryRepository
	cache      ranking.Cache
	logger     *slog.Logger
}

// NewGetLeaderboardHandler creates a new handler.
func NewGetLeaderboardHandler(seasonRepo season.SeasonRepository, entryRepo ranking.EntryRepository, cache ranking.Cache, logger *slog.Logger) *GetLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardHandler{
		seasonRepo: seasonRepo,
		entryRepo:  entryRepo,
		cache:      cache,
		logger:     logger,
	}
}

// Handle returns the top of the leaderboard.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	s, err := h.resolveSeason(ctx, q.SeasonID)
	if err != nil {
		return nil, err
	}

	entries, fromCache := h.loadTop(ctx, s.ID, limit)
	if entries == nil {
		entries, err = h.entryRepo.GetTop(ctx, s.ID, limit)
		if err != nil {
			return nil, fmt.Errorf("get_leaderboard: read entries: %w", err)
		}
	}

	rows := make([]LeaderboardRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, LeaderboardRow{
			Rank:             int(e.Rank),
			CreatorID:        e.CreatorID,
			CompositeScore:   e.CompositeScore,
			Tier:             e.Tier.String(),
			UniqueSupporters: e.Subtotals.UniqueSupporters,
		})
	}

	return &GetLeaderboardResult{
		SeasonID:     s.ID,
		SeasonNumber: int(s.Number),
		SeasonStatus: s.Status.String(),
		Rows:         rows,
		FromCache:    fromCache,
	}, nil
}

// loadTop tries the cache; any cache failure degrades to Postgres.
func (h *GetLeaderboardHandler) loadTop(ctx context.Context, seasonID string, limit int) ([]*ranking.Entry, bool) {
	if h.cache == nil {
		return nil, false
	}
	entries, err := h.cache.GetTop(ctx, seasonID, limit)
	if err != nil {
		h.logger.Warn("leaderboard cache read failed, falling back", "season_id", seasonID, "error", err)
		return nil, false
	}
	if entries == nil {
		return nil, false
	}
	return entries, true
}

func (h *GetLeaderboardHandler) resolveSeason(ctx context.Context, seasonID string) (*season.Season, error) {
	if seasonID == "" {
		s, err := h.seasonRepo.GetActive(ctx)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.ErrNoActiveSeason
			}
			return nil, fmt.Errorf("get_leaderboard: resolve active season: %w", err)
		}
		return s, nil
	}
	s, err := h.seasonRepo.GetByID(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: load season: %w", err)
	}
	return s, nil
}
