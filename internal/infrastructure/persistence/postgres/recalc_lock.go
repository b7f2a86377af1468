package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALC LOCK IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RecalcLock implements season.RecalcLock on a plain lock table.
// A single INSERT ... ON CONFLICT both takes a free lock and reclaims
// an expired one; a live lock held by another run makes the statement
// affect zero rows.
type RecalcLock struct {
	conn *Connection
}

// NewRecalcLock creates a new RecalcLock.
func NewRecalcLock(conn *Connection) *RecalcLock {
	return &RecalcLock{conn: conn}
}

// Acquire takes the season lock for ttl.
func (l *RecalcLock) Acquire(ctx context.Context, seasonID, holderID string, ttl time.Duration) error {
	now := time.Now().UTC()

	tag, err := l.conn.Exec(ctx, `
		INSERT INTO recalc_locks (season_id, holder_id, acquired_at, locked_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (season_id) DO UPDATE SET
			holder_id = EXCLUDED.holder_id,
			acquired_at = EXCLUDED.acquired_at,
			locked_until = EXCLUDED.locked_until
		WHERE recalc_locks.locked_until < $3
	`, seasonID, holderID, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("acquire recalc lock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return shared.ErrRecalcInFlight
	}
	return nil
}

// Release drops the lock if holderID still holds it. Releasing a lock
// that was already reclaimed by another run is a no-op.
func (l *RecalcLock) Release(ctx context.Context, seasonID, holderID string) error {
	_, err := l.conn.Exec(ctx, `
		DELETE FROM recalc_locks WHERE season_id = $1 AND holder_id = $2
	`, seasonID, holderID)
	if err != nil {
		return fmt.Errorf("release recalc lock: %w", err)
	}
	return nil
}
