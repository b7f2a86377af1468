package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RewardRepository implements season.RewardRepository for PostgreSQL.
// Insert-only: the reward ledger has no update path at all.
type RewardRepository struct {
	conn *Connection
}

// NewRewardRepository creates a new RewardRepository.
func NewRewardRepository(conn *Connection) *RewardRepository {
	return &RewardRepository{conn: conn}
}

// GrantBatch writes all rewards of a frozen season in one transaction.
func (r *RewardRepository) GrantBatch(ctx context.Context, rewards []*season.SeasonalReward) error {
	if len(rewards) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, reward := range rewards {
			batch.Queue(`
				INSERT INTO seasonal_rewards (id, season_id, creator_id, tier, final_rank, final_score, granted_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`,
				reward.ID, reward.SeasonID, reward.CreatorID,
				reward.Tier.String(), reward.FinalRank, reward.FinalScore, reward.GrantedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for range rewards {
			if _, err := br.Exec(); err != nil {
				if IsUniqueViolation(err) {
					return shared.ErrRewardAlreadyExists
				}
				return fmt.Errorf("insert reward: %w", err)
			}
		}
		return nil
	})
}

// GetBySeason returns all rewards of a season, best rank first.
func (r *RewardRepository) GetBySeason(ctx context.Context, seasonID string) ([]*season.SeasonalReward, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+rewardColumns+`
		FROM seasonal_rewards
		WHERE season_id = $1
		ORDER BY final_rank
	`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("query rewards: %w", err)
	}
	defer rows.Close()

	return scanRewards(rows)
}

// GetByCreator returns a creator's reward history, newest season first.
func (r *RewardRepository) GetByCreator(ctx context.Context, creatorID string) ([]*season.SeasonalReward, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+rewardColumns+`
		FROM seasonal_rewards
		WHERE creator_id = $1
		ORDER BY granted_at DESC
	`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("query creator rewards: %w", err)
	}
	defer rows.Close()

	return scanRewards(rows)
}

const rewardColumns = `id, season_id, creator_id, tier, final_rank, final_score, granted_at`

func scanRewards(rows pgx.Rows) ([]*season.SeasonalReward, error) {
	var rewards []*season.SeasonalReward
	for rows.Next() {
		var (
			reward season.SeasonalReward
			tier   string
		)
		err := rows.Scan(&reward.ID, &reward.SeasonID, &reward.CreatorID, &tier,
			&reward.FinalRank, &reward.FinalScore, &reward.GrantedAt)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		reward.Tier = season.TierName(tier)
		rewards = append(rewards, &reward)
	}
	return rewards, rows.Err()
}
