package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lumen-live/season-ranking/internal/domain/ranking"
	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements ranking.Cache on two keys per season:
// a sorted set ordered by the precomputed dense rank, and a hash with
// the full entry document per creator. The rank is the sorted-set
// score; the full tie-break chain lives in the ranking pass, never in
// Redis.
//
// Every operation goes through a circuit breaker. A tripped breaker
// degrades reads into cache misses, so a Redis outage falls back to
// PostgreSQL instead of failing the request.
type LeaderboardCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker) *LeaderboardCache {
	return &LeaderboardCache{cache: cache, breaker: breaker}
}

func boardKey(seasonID string) string {
	return "ranking:board:" + seasonID
}

func entriesKey(seasonID string) string {
	return "ranking:entries:" + seasonID
}

// cachedEntry is the JSON document stored per creator in the hash.
type cachedEntry struct {
	SeasonID           string    `json:"season_id"`
	CreatorID          string    `json:"creator_id"`
	GiftSubtotal       float64   `json:"gift_subtotal"`
	BattleSubtotal     float64   `json:"battle_subtotal"`
	UniqueSupporters   int       `json:"unique_supporters"`
	Momentum           float64   `json:"momentum"`
	CompositeScore     float64   `json:"composite_score"`
	Tier               string    `json:"tier"`
	Rank               int       `json:"rank"`
	LastRecalculatedAt time.Time `json:"last_recalculated_at"`
}

func fromDomainEntry(e *ranking.Entry) cachedEntry {
	return cachedEntry{
		SeasonID:           e.SeasonID,
		CreatorID:          e.CreatorID,
		GiftSubtotal:       e.Subtotals.Gift,
		BattleSubtotal:     e.Subtotals.Battle,
		UniqueSupporters:   e.Subtotals.UniqueSupporters,
		Momentum:           e.Subtotals.Momentum,
		CompositeScore:     e.CompositeScore,
		Tier:               e.Tier.String(),
		Rank:               int(e.Rank),
		LastRecalculatedAt: e.LastRecalculatedAt,
	}
}

func (c cachedEntry) toDomainEntry() *ranking.Entry {
	return &ranking.Entry{
		SeasonID:  c.SeasonID,
		CreatorID: c.CreatorID,
		Subtotals: ranking.Subtotals{
			Gift:             c.GiftSubtotal,
			Battle:           c.BattleSubtotal,
			UniqueSupporters: c.UniqueSupporters,
			Momentum:         c.Momentum,
		},
		CompositeScore:     c.CompositeScore,
		Tier:               season.TierName(c.Tier),
		Rank:               ranking.Rank(c.Rank),
		LastRecalculatedAt: c.LastRecalculatedAt,
	}
}

// Replace atomically swaps the season's projection for the ranked
// entries of a completed pass. Both keys are rewritten in a single
// transaction so readers never observe a half-built board.
func (l *LeaderboardCache) Replace(ctx context.Context, seasonID string, entries []*ranking.Entry, ttl time.Duration) error {
	members := make([]goredis.Z, 0, len(entries))
	docs := make(map[string]any, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(fromDomainEntry(e))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		members = append(members, goredis.Z{Score: float64(e.Rank), Member: e.CreatorID})
		docs[e.CreatorID] = data
	}

	return l.breaker.Execute(ctx, func(ctx context.Context) error {
		pipe := l.cache.Client().TxPipeline()
		pipe.Del(ctx, boardKey(seasonID), entriesKey(seasonID))
		if len(members) > 0 {
			pipe.ZAdd(ctx, boardKey(seasonID), members...)
			pipe.HSet(ctx, entriesKey(seasonID), docs)
			pipe.Expire(ctx, boardKey(seasonID), ttl)
			pipe.Expire(ctx, entriesKey(seasonID), ttl)
		}

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("replace leaderboard projection: %w", err)
		}
		return nil
	})
}

// GetTop returns the first limit entries by rank, or nil on a miss.
// An open breaker is reported as a miss so the query layer falls back
// to PostgreSQL. A miss is a normal outcome and does not count against
// the breaker.
func (l *LeaderboardCache) GetTop(ctx context.Context, seasonID string, limit int) ([]*ranking.Entry, error) {
	var entries []*ranking.Entry

	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		creatorIDs, err := l.cache.Client().ZRange(ctx, boardKey(seasonID), 0, int64(limit)-1).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheConnection, err)
		}
		if len(creatorIDs) == 0 {
			return nil
		}

		docs, err := l.cache.Client().HMGet(ctx, entriesKey(seasonID), creatorIDs...).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheConnection, err)
		}

		found := make([]*ranking.Entry, 0, len(docs))
		for _, doc := range docs {
			raw, ok := doc.(string)
			if !ok {
				// Hash out of sync with the sorted set. Treat the
				// whole projection as gone.
				return nil
			}
			var c cachedEntry
			if err := json.Unmarshal([]byte(raw), &c); err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			found = append(found, c.toDomainEntry())
		}
		entries = found
		return nil
	})
	if err != nil {
		if isBreakerOpen(err) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

// GetCreator returns one creator's entry, or nil on a miss.
func (l *LeaderboardCache) GetCreator(ctx context.Context, seasonID, creatorID string) (*ranking.Entry, error) {
	var entry *ranking.Entry

	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		raw, err := l.cache.Client().HGet(ctx, entriesKey(seasonID), creatorID).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrCacheConnection, err)
		}

		var c cachedEntry
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		entry = c.toDomainEntry()
		return nil
	})
	if err != nil {
		if isBreakerOpen(err) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// Invalidate drops the season's projection.
func (l *LeaderboardCache) Invalidate(ctx context.Context, seasonID string) error {
	return l.breaker.Execute(ctx, func(ctx context.Context) error {
		return l.cache.Delete(ctx, boardKey(seasonID), entriesKey(seasonID))
	})
}

// isBreakerOpen reports whether the error came from the breaker
// itself rather than from Redis. Those degrade into a cache miss.
func isBreakerOpen(err error) bool {
	return errors.Is(err, circuitbreaker.ErrCircuitOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests)
}
