package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lumen-live/season-ranking/internal/domain/ranking"
	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING ENTRY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EntryRepository implements ranking.EntryRepository for PostgreSQL.
type EntryRepository struct {
	conn *Connection
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(conn *Connection) *EntryRepository {
	return &EntryRepository{conn: conn}
}

// UpsertBatch writes a chunk of recalculated entries in one transaction.
// Idempotent: re-running the same chunk converges to the same rows.
// Ranks are intentionally not touched here - they belong to the final
// ranking pass.
func (r *EntryRepository) UpsertBatch(ctx context.Context, entries []*ranking.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`
				INSERT INTO ranking_entries
				(season_id, creator_id, gift_subtotal, battle_subtotal, unique_supporters,
				 momentum, composite_score, tier, last_recalculated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (season_id, creator_id) DO UPDATE SET
					gift_subtotal = EXCLUDED.gift_subtotal,
					battle_subtotal = EXCLUDED.battle_subtotal,
					unique_supporters = EXCLUDED.unique_supporters,
					momentum = EXCLUDED.momentum,
					composite_score = EXCLUDED.composite_score,
					tier = EXCLUDED.tier,
					last_recalculated_at = EXCLUDED.last_recalculated_at
			`,
				e.SeasonID,
				e.CreatorID,
				e.Subtotals.Gift,
				e.Subtotals.Battle,
				e.Subtotals.UniqueSupporters,
				e.Subtotals.Momentum,
				e.CompositeScore,
				e.Tier.String(),
				e.LastRecalculatedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for range entries {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("upsert entry: %w", err)
			}
		}
		return nil
	})
}

// UpdateRanks writes the dense ranks of a completed final pass.
func (r *EntryRepository) UpdateRanks(ctx context.Context, seasonID string, ranked []*ranking.Entry) error {
	if len(ranked) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range ranked {
			batch.Queue(`
				UPDATE ranking_entries SET rank = $3
				WHERE season_id = $1 AND creator_id = $2
			`, seasonID, e.CreatorID, int(e.Rank))
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for range ranked {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("update rank: %w", err)
			}
		}
		return nil
	})
}

// GetBySeason returns all entries of a season. Ranked entries come
// first in rank order; entries from a not-yet-completed first pass
// (rank 0) follow, ordered by score.
func (r *EntryRepository) GetBySeason(ctx context.Context, seasonID string) ([]*ranking.Entry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ranking_entries
		WHERE season_id = $1
		ORDER BY CASE WHEN rank > 0 THEN rank ELSE 2147483647 END, composite_score DESC, creator_id
	`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetByCreator returns one creator's entry in a season.
func (r *EntryRepository) GetByCreator(ctx context.Context, seasonID, creatorID string) (*ranking.Entry, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM ranking_entries
		WHERE season_id = $1 AND creator_id = $2
	`, seasonID, creatorID)

	e, err := scanEntry(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEntryNotFound
		}
		return nil, fmt.Errorf("query entry: %w", err)
	}
	return e, nil
}

// GetTop returns the first limit entries of a season by rank.
func (r *EntryRepository) GetTop(ctx context.Context, seasonID string, limit int) ([]*ranking.Entry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ranking_entries
		WHERE season_id = $1 AND rank > 0
		ORDER BY rank
		LIMIT $2
	`, seasonID, limit)
	if err != nil {
		return nil, fmt.Errorf("query top entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

const entryColumns = `season_id, creator_id, gift_subtotal, battle_subtotal, unique_supporters, momentum, composite_score, tier, rank, last_recalculated_at`

func scanEntry(row rowScanner) (*ranking.Entry, error) {
	var (
		e    ranking.Entry
		tier string
		rank int
	)
	err := row.Scan(
		&e.SeasonID, &e.CreatorID,
		&e.Subtotals.Gift, &e.Subtotals.Battle, &e.Subtotals.UniqueSupporters, &e.Subtotals.Momentum,
		&e.CompositeScore, &tier, &rank, &e.LastRecalculatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Tier = season.TierName(tier)
	e.Rank = ranking.Rank(rank)
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]*ranking.Entry, error) {
	var entries []*ranking.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
