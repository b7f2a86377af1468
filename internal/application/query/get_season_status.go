package query

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
// GET SEASON STATUS QUERY
// Lifecycle view of a season: status, boundaries, remaining time and
// the tier table, plus the reward history once the season has ended.
// ══════════════════════════════════════════════════════════════════════════════

// GetSeasonStatusQuery requests a season's lifecycle view.
type GetSeasonStatusQuery struct {
	// SeasonID is the target season (empty = the active season).
	SeasonID string

	// IncludeRewards adds the reward ledger for ended seasons.
	IncludeRewards bool
}

// TierView is one tier band of the read model.
type TierView struct {
	Name     string  `json:"name"`
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score,omitempty"`
	Open     bool    `json:"open_ended,omitempty"`
}

// RewardView is one reward ledger row of the read model.
type RewardView struct {
	CreatorID  string    `json:"creator_id"`
	Tier       string    `json:"tier"`
	FinalRank  int       `json:"final_rank"`
	FinalScore float64   `json:"final_score"`
	GrantedAt  time.Time `json:"granted_at"`
}

// GetSeasonStatusResult is the season lifecycle read model.
type GetSeasonStatusResult struct {
	SeasonID  string       `json:"season_id"`
	Number    int          `json:"number"`
	Label     string       `json:"label"`
	Status    string       `json:"status"`
	StartsAt  time.Time    `json:"starts_at"`
	EndsAt    time.Time    `json:"ends_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
	Remaining string       `json:"remaining,omitempty"`
	Tiers     []TierView   `json:"tiers"`
	Rewards   []RewardView `json:"rewards,omitempty"`
}

// GetSeasonStatusHandler handles season lifecycle reads.
type GetSeasonStatusHandler struct {
	seasonRepo season.SeasonRepository
	rewardRepo season.RewardRepository
	logger     *slog.Logger
}

// NewGetSeasonStatusHandler creates a new handler.
func NewGetSeasonStatusHandler(seasonRepo season.SeasonRepository, rewardRepo season.RewardRepository, logger *slog.Logger) *GetSeasonStatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetSeasonStatusHandler{
		seasonRepo: seasonRepo,
		rewardRepo: rewardRepo,
		logger:     logger,
	}
}

// Handle returns the season lifecycle view.
func (h *GetSeasonStatusHandler) Handle(ctx context.Context, q GetSeasonStatusQuery) (*GetSeasonStatusResult, error) {
	s, err := h.resolveSeason(ctx, q.SeasonID)
	if err != nil {
		return nil, err
	}

	res := &GetSeasonStatusResult{
		SeasonID: s.ID,
		Number:   int(s.Number),
		Label:    s.Label,
		Status:   s.Status.String(),
		StartsAt: s.StartsAt,
		EndsAt:   s.EndsAt,
		EndedAt:  s.EndedAt,
	}
	if s.IsActive() {
		res.Remaining = s.Remaining(time.Now().UTC()).String()
	}

	for _, tier := range s.Tiers.Tiers() {
		view := TierView{Name: tier.Name.String(), MinScore: tier.MinScore}
		if tier.Unbounded() {
			view.Open = true
		} else {
			view.MaxScore = tier.MaxScore
		}
		res.Tiers = append(res.Tiers, view)
	}

	if q.IncludeRewards && s.HasEnded() {
		rewards, err := h.rewardRepo.GetBySeason(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("get_season_status: load rewards: %w", err)
		}
		for _, r := range rewards {
			res.Rewards = append(res.Rewards, RewardView{
				CreatorID:  r.CreatorID,
				Tier:       r.Tier.String(),
				FinalRank:  r.FinalRank,
				FinalScore: r.FinalScore,
				GrantedAt:  r.GrantedAt,
			})
		}
	}
	return res, nil
}

func (h *GetSeasonStatusHandler) resolveSeason(ctx context.Context, seasonID string) (*season.Season, error) {
	if seasonID == "" {
		s, err := h.seasonRepo.GetActive(ctx)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.ErrNoActiveSeason
			}
			return nil, fmt.Errorf("get_season_status: resolve active season: %w", err)
		}
		return s, nil
	}
	s, err := h.seasonRepo.GetByID(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("get_season_status: load season: %w", err)
	}
	return s, nil
}
