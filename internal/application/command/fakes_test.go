package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumen-live/season-ranking/internal/domain/ranking"
	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// In-memory fakes for the command handler tests. They mirror the
// contracts of the persistence ports, including the errors the real
// PostgreSQL implementations return.

type fakeSeasonRepo struct {
	mu      sync.Mutex
	seasons map[string]*season.Season
}

func newFakeSeasonRepo(seasons ...*season.Season) *fakeSeasonRepo {
	r := &fakeSeasonRepo{seasons: make(map[string]*season.Season)}
	for _, s := range seasons {
		r.seasons[s.ID] = s
	}
	return r
}

func (r *fakeSeasonRepo) Create(_ context.Context, s *season.Season) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.seasons {
		if existing.IsActive() {
			return shared.ErrActiveSeasonExists
		}
	}
	r.seasons[s.ID] = s
	return nil
}

func (r *fakeSeasonRepo) Update(_ context.Context, s *season.Season) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seasons[s.ID]; !ok {
		return shared.ErrSeasonNotFound
	}
	r.seasons[s.ID] = s
	return nil
}

func (r *fakeSeasonRepo) GetByID(_ context.Context, id string) (*season.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.seasons[id]
	if !ok {
		return nil, shared.ErrSeasonNotFound
	}
	return s, nil
}

func (r *fakeSeasonRepo) GetActive(_ context.Context) (*season.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.seasons {
		if s.IsActive() {
			return s, nil
		}
	}
	return nil, shared.ErrNoActiveSeason
}

func (r *fakeSeasonRepo) GetByNumber(_ context.Context, number season.Number) (*season.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.seasons {
		if s.Number == number {
			return s, nil
		}
	}
	return nil, shared.ErrSeasonNotFound
}

func (r *fakeSeasonRepo) List(_ context.Context) ([]*season.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*season.Season, 0, len(r.seasons))
	for _, s := range r.seasons {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

type fakeSignalStore struct {
	mu      sync.Mutex
	signals map[string]ranking.CreatorSignals
	failFor map[string]bool
}

func newFakeSignalStore() *fakeSignalStore {
	return &fakeSignalStore{
		signals: make(map[string]ranking.CreatorSignals),
		failFor: make(map[string]bool),
	}
}

func (s *fakeSignalStore) put(cs ranking.CreatorSignals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[cs.CreatorID] = cs
}

func (s *fakeSignalStore) ListCreatorIDs(_ context.Context, _ string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.signals))
	for id := range s.signals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeSignalStore) GetSignalsForCreators(_ context.Context, _ string, creatorIDs []string) ([]ranking.CreatorSignals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ranking.CreatorSignals, 0, len(creatorIDs))
	for _, id := range creatorIDs {
		if s.failFor[id] {
			return nil, fmt.Errorf("signal store: read failed for %s", id)
		}
		if cs, ok := s.signals[id]; ok {
			out = append(out, cs)
		}
	}
	return out, nil
}

type fakeEntryRepo struct {
	mu        sync.Mutex
	entries   map[string]*ranking.Entry
	upserts   int
	upsertErr error
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[string]*ranking.Entry)}
}

func (r *fakeEntryRepo) UpsertBatch(_ context.Context, entries []*ranking.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	for _, e := range entries {
		copied := *e
		// An upsert never touches the stored rank; that is the ranking
		// pass's job.
		if prev, ok := r.entries[e.CreatorID]; ok {
			copied.Rank = prev.Rank
		}
		r.entries[e.CreatorID] = &copied
	}
	return nil
}

func (r *fakeEntryRepo) UpdateRanks(_ context.Context, _ string, ranked []*ranking.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range ranked {
		if stored, ok := r.entries[e.CreatorID]; ok {
			stored.Rank = e.Rank
		}
	}
	return nil
}

func (r *fakeEntryRepo) GetBySeason(_ context.Context, _ string) ([]*ranking.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ranking.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		copied := *e
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatorID < out[j].CreatorID })
	return out, nil
}

func (r *fakeEntryRepo) GetByCreator(_ context.Context, _, creatorID string) (*ranking.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[creatorID]
	if !ok {
		return nil, shared.ErrEntryNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeEntryRepo) GetTop(ctx context.Context, seasonID string, limit int) ([]*ranking.Entry, error) {
	all, err := r.GetBySeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Rank < all[j].Rank })
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeEntryRepo) rank(creatorID string) ranking.Rank {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[creatorID]; ok {
		return e.Rank
	}
	return 0
}

type fakeRecalcLock struct {
	mu       sync.Mutex
	holders  map[string]string
	acquires int
}

func newFakeRecalcLock() *fakeRecalcLock {
	return &fakeRecalcLock{holders: make(map[string]string)}
}

func (l *fakeRecalcLock) Acquire(_ context.Context, seasonID, holderID string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, ok := l.holders[seasonID]; ok && holder != holderID {
		return shared.ErrRecalcInFlight
	}
	l.holders[seasonID] = holderID
	l.acquires++
	return nil
}

func (l *fakeRecalcLock) Release(_ context.Context, seasonID, holderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holders[seasonID] == holderID {
		delete(l.holders, seasonID)
	}
	return nil
}

func (l *fakeRecalcLock) held(seasonID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.holders[seasonID]
	return ok
}

type fakeCache struct {
	mu          sync.Mutex
	replaced    map[string][]*ranking.Entry
	invalidated []string
	replaceErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{replaced: make(map[string][]*ranking.Entry)}
}

func (c *fakeCache) Replace(_ context.Context, seasonID string, entries []*ranking.Entry, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replaceErr != nil {
		return c.replaceErr
	}
	c.replaced[seasonID] = entries
	return nil
}

func (c *fakeCache) GetTop(_ context.Context, _ string, _ int) ([]*ranking.Entry, error) {
	return nil, nil
}

func (c *fakeCache) GetCreator(_ context.Context, _, _ string) (*ranking.Entry, error) {
	return nil, nil
}

func (c *fakeCache) Invalidate(_ context.Context, seasonID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, seasonID)
	return nil
}

type fakeRewardRepo struct {
	mu      sync.Mutex
	rewards []*season.SeasonalReward
}

func newFakeRewardRepo() *fakeRewardRepo {
	return &fakeRewardRepo{}
}

func (r *fakeRewardRepo) GrantBatch(_ context.Context, rewards []*season.SeasonalReward) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reward := range rewards {
		for _, existing := range r.rewards {
			if existing.SeasonID == reward.SeasonID && existing.CreatorID == reward.CreatorID {
				return shared.ErrRewardAlreadyExists
			}
		}
	}
	r.rewards = append(r.rewards, rewards...)
	return nil
}

func (r *fakeRewardRepo) GetBySeason(_ context.Context, seasonID string) ([]*season.SeasonalReward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*season.SeasonalReward, 0)
	for _, reward := range r.rewards {
		if reward.SeasonID == seasonID {
			out = append(out, reward)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinalRank < out[j].FinalRank })
	return out, nil
}

func (r *fakeRewardRepo) GetByCreator(_ context.Context, creatorID string) ([]*season.SeasonalReward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*season.SeasonalReward, 0)
	for _, reward := range r.rewards {
		if reward.CreatorID == creatorID {
			out = append(out, reward)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{}
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.Event, 0)
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// --- test data helpers ---

func newTestSeason(t *testing.T) *season.Season {
	t.Helper()
	s, err := season.New(
		1, "Season 1: Aurora",
		time.Now().UTC().Add(-24*time.Hour), 30*24*time.Hour,
		season.DefaultConfig(), season.DefaultTierTable(),
	)
	require.NoError(t, err)
	return s
}

// giftSignals builds signals of recent gifts from distinct supporters.
// Every gift lands inside the recent-activity window, so the decay
// factor is the same constant boost across repeated passes.
func giftSignals(seasonID, creatorID string, amounts ...float64) ranking.CreatorSignals {
	occurred := time.Now().UTC().Add(-time.Hour)
	gifts := make([]ranking.GiftRecord, 0, len(amounts))
	for i, amount := range amounts {
		gifts = append(gifts, ranking.GiftRecord{
			SeasonID:    seasonID,
			CreatorID:   creatorID,
			SupporterID: fmt.Sprintf("supporter-%s-%d", creatorID, i),
			Amount:      amount,
			OccurredAt:  occurred,
		})
	}
	return ranking.CreatorSignals{CreatorID: creatorID, Gifts: gifts}
}
