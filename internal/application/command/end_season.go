package command

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
// END SEASON COMMAND
// Freezes a season: one last recalculation pass, one immutable reward
// row per ranked creator, then the irreversible ACTIVE -> ENDED
// transition. After this command returns, nothing writes to the
// season's entries again.
// ══════════════════════════════════════════════════════════════════════════════

// EndSeasonCommand freezes a season.
type EndSeasonCommand struct {
	// SeasonID is the target season (empty = the active season).
	SeasonID string

	// EndedBy identifies the administrator, for the audit trail.
	EndedBy string
}

// Validate validates the command.
func (c EndSeasonCommand) Validate() error {
	if c.EndedBy == "" {
		return errors.New("end_season: ended_by is required")
	}
	return nil
}

// EndSeasonResult contains the outcome of freezing a season.
type EndSeasonResult struct {
	SeasonID       string
	Number         season.Number
	EndedAt        time.Time
	TotalCreators  int
	RewardsGranted int
	FinalPass      *RecalculateSeasonResult
}

// EndSeasonHandler handles season freezing.
type EndSeasonHandler struct {
	seasonRepo season.SeasonRepository
	entryRepo  ranking.EntryRepository
	rewardRepo season.RewardRepository
	cache      ranking.Cache
	recalc     *RecalculateSeasonHandler
	publisher  shared.EventPublisher
	logger     *slog.Logger
}

// NewEndSeasonHandler creates a new handler.
func NewEndSeasonHandler(
	seasonRepo season.SeasonRepository,
	entryRepo ranking.EntryRepository,
	rewardRepo season.RewardRepository,
	cache ranking.Cache,
	recalc *RecalculateSeasonHandler,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *EndSeasonHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EndSeasonHandler{
		seasonRepo: seasonRepo,
		entryRepo:  entryRepo,
		rewardRepo: rewardRepo,
		cache:      cache,
		recalc:     recalc,
		publisher:  publisher,
		logger:     logger,
	}
}

// Handle freezes the season.
func (h *EndSeasonHandler) Handle(ctx context.Context, cmd EndSeasonCommand) (*EndSeasonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s, err := h.resolveSeason(ctx, cmd.SeasonID)
	if err != nil {
		return nil, err
	}
	if !s.IsActive() {
		return nil, shared.ErrSeasonNotActive
	}

	log := h.logger.With("season_id", s.ID, "number", int(s.Number))
	log.Info("ending season", "ended_by", cmd.EndedBy)

	// Final authoritative pass. Rewards must reflect scores computed
	// against the complete signal set, not whatever the last scheduled
	// pass happened to see.
	finalPass, err := h.recalc.Handle(ctx, RecalculateSeasonCommand{SeasonID: s.ID})
	if err != nil {
		return nil, fmt.Errorf("end_season: final pass: %w", err)
	}

	entries, err := h.entryRepo.GetBySeason(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("end_season: load final entries: %w", err)
	}

	endedAt := time.Now().UTC()
	rewards := make([]*season.SeasonalReward, 0, len(entries))
	for _, e := range entries {
		reward, err := season.NewSeasonalReward(s.ID, e.CreatorID, e.Tier, int(e.Rank), e.CompositeScore, endedAt)
		if err != nil {
			return nil, fmt.Errorf("end_season: build reward for %s: %w", e.CreatorID, err)
		}
		rewards = append(rewards, reward)
	}

	if len(rewards) > 0 {
		if err := h.rewardRepo.GrantBatch(ctx, rewards); err != nil {
			return nil, fmt.Errorf("end_season: grant rewards: %w", err)
		}
	}

	if err := s.End(endedAt); err != nil {
		return nil, err
	}
	if err := h.seasonRepo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("end_season: persist: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, s.ID); err != nil {
			log.Warn("failed to invalidate leaderboard cache", "error", err)
		}
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(shared.NewSeasonEndedEvent(s.ID, int(s.Number), len(entries), len(rewards))); err != nil {
			log.Warn("failed to publish season.ended", "error", err)
		}
		for _, r := range rewards {
			if err := h.publisher.Publish(shared.NewRewardGrantedEvent(r.CreatorID, r.SeasonID, r.Tier.String(), r.FinalRank)); err != nil {
				log.Warn("failed to publish reward.granted", "creator_id", r.CreatorID, "error", err)
				break
			}
		}
	}

	log.Info("season ended",
		"ended_at", endedAt,
		"creators", len(entries),
		"rewards", len(rewards),
	)

	return &EndSeasonResult{
		SeasonID:       s.ID,
		Number:         s.Number,
		EndedAt:        endedAt,
		TotalCreators:  len(entries),
		RewardsGranted: len(rewards),
		FinalPass:      finalPass,
	}, nil
}

func (h *EndSeasonHandler) resolveSeason(ctx context.Context, seasonID string) (*season.Season, error) {
	if seasonID == "" {
		s, err := h.seasonRepo.GetActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("end_season: resolve active season: %w", err)
		}
		return s, nil
	}
	s, err := h.seasonRepo.GetByID(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("end_season: load season: %w", err)
	}
	return s, nil
}
