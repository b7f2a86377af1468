package postgres

import (
	"context"
	"fmt"

	"github.com/lumen-live/season-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNAL STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SignalStore implements ranking.SignalStore for PostgreSQL.
// Read-only from the pipeline's point of view: the ingest paths own
// the writes. RecordGift/RecordBattle exist for seeding and tests.
type SignalStore struct {
	conn *Connection
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(conn *Connection) *SignalStore {
	return &SignalStore{conn: conn}
}

// ListCreatorIDs returns every creator with at least one signal in the
// season, sorted for deterministic chunking.
func (s *SignalStore) ListCreatorIDs(ctx context.Context, seasonID string) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT creator_id FROM gift_contributions WHERE season_id = $1
		UNION
		SELECT creator_id FROM battle_participations WHERE season_id = $1
		ORDER BY creator_id
	`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list creators: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan creator id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetSignalsForCreators returns the signals of a chunk of creators.
// Practice battles never leave the database: the ranked filter is part
// of the read itself.
func (s *SignalStore) GetSignalsForCreators(ctx context.Context, seasonID string, creatorIDs []string) ([]ranking.CreatorSignals, error) {
	if len(creatorIDs) == 0 {
		return nil, nil
	}

	bySignals := make(map[string]*ranking.CreatorSignals, len(creatorIDs))
	for _, id := range creatorIDs {
		bySignals[id] = &ranking.CreatorSignals{CreatorID: id}
	}

	giftRows, err := s.conn.Query(ctx, `
		SELECT creator_id, supporter_id, amount, occurred_at
		FROM gift_contributions
		WHERE season_id = $1 AND creator_id = ANY($2)
	`, seasonID, creatorIDs)
	if err != nil {
		return nil, fmt.Errorf("query gifts: %w", err)
	}
	defer giftRows.Close()

	for giftRows.Next() {
		g := ranking.GiftRecord{SeasonID: seasonID}
		if err := giftRows.Scan(&g.CreatorID, &g.SupporterID, &g.Amount, &g.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan gift: %w", err)
		}
		if cs, ok := bySignals[g.CreatorID]; ok {
			cs.Gifts = append(cs.Gifts, g)
		}
	}
	if err := giftRows.Err(); err != nil {
		return nil, err
	}

	battleRows, err := s.conn.Query(ctx, `
		SELECT creator_id, battle_id, raw_score, won, team_size, tournament, ranked, occurred_at
		FROM battle_participations
		WHERE season_id = $1 AND creator_id = ANY($2) AND ranked
	`, seasonID, creatorIDs)
	if err != nil {
		return nil, fmt.Errorf("query battles: %w", err)
	}
	defer battleRows.Close()

	for battleRows.Next() {
		b := ranking.BattleRecord{SeasonID: seasonID}
		if err := battleRows.Scan(&b.CreatorID, &b.BattleID, &b.RawScore, &b.Won, &b.TeamSize, &b.Tournament, &b.Ranked, &b.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		if cs, ok := bySignals[b.CreatorID]; ok {
			cs.Battles = append(cs.Battles, b)
		}
	}
	if err := battleRows.Err(); err != nil {
		return nil, err
	}

	// Preserve the chunk's creator order.
	out := make([]ranking.CreatorSignals, 0, len(creatorIDs))
	for _, id := range creatorIDs {
		out = append(out, *bySignals[id])
	}
	return out, nil
}

// RecordGift persists one gift contribution.
func (s *SignalStore) RecordGift(ctx context.Context, g ranking.GiftRecord) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO gift_contributions (season_id, creator_id, supporter_id, amount, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, g.SeasonID, g.CreatorID, g.SupporterID, g.Amount, g.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert gift: %w", err)
	}
	return nil
}

// RecordBattle persists one battle participation. Idempotent per
// (battle, creator): a replayed ingest event is a no-op.
func (s *SignalStore) RecordBattle(ctx context.Context, b ranking.BattleRecord) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO battle_participations
		(season_id, creator_id, battle_id, raw_score, won, team_size, tournament, ranked, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (battle_id, creator_id) DO NOTHING
	`, b.SeasonID, b.CreatorID, b.BattleID, b.RawScore, b.Won, b.TeamSize, b.Tournament, b.Ranked, b.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert battle: %w", err)
	}
	return nil
}
