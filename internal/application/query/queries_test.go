package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-live/season-ranking/internal/domain/ranking"
	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// Stubs for the read-side ports. The queries only ever read, so these
// are plain value holders with optional injected failures.

type stubSeasonRepo struct {
	active *season.Season
	byID   map[string]*season.Season
}

func (r *stubSeasonRepo) Create(context.Context, *season.Season) error { return nil }
func (r *stubSeasonRepo) Update(context.Context, *season.Season) error { return nil }

func (r *stubSeasonRepo) GetByID(_ context.Context, id string) (*season.Season, error) {
	if s, ok := r.byID[id]; ok {
		return s, nil
	}
	return nil, shared.ErrSeasonNotFound
}

func (r *stubSeasonRepo) GetActive(context.Context) (*season.Season, error) {
	if r.active == nil {
		return nil, shared.ErrNoActiveSeason
	}
	return r.active, nil
}

func (r *stubSeasonRepo) GetByNumber(context.Context, season.Number) (*season.Season, error) {
	return nil, shared.ErrSeasonNotFound
}

func (r *stubSeasonRepo) List(context.Context) ([]*season.Season, error) { return nil, nil }

type stubEntryRepo struct {
	top       []*ranking.Entry
	byCreator map[string]*ranking.Entry
	lastLimit int
	topCalls  int
}

func (r *stubEntryRepo) UpsertBatch(context.Context, []*ranking.Entry) error { return nil }
func (r *stubEntryRepo) UpdateRanks(context.Context, string, []*ranking.Entry) error {
	return nil
}

func (r *stubEntryRepo) GetBySeason(context.Context, string) ([]*ranking.Entry, error) {
	return r.top, nil
}

func (r *stubEntryRepo) GetByCreator(_ context.Context, _, creatorID string) (*ranking.Entry, error) {
	if e, ok := r.byCreator[creatorID]; ok {
		return e, nil
	}
	return nil, shared.ErrEntryNotFound
}

func (r *stubEntryRepo) GetTop(_ context.Context, _ string, limit int) ([]*ranking.Entry, error) {
	r.topCalls++
	r.lastLimit = limit
	if limit < len(r.top) {
		return r.top[:limit], nil
	}
	return r.top, nil
}

type stubCache struct {
	top     []*ranking.Entry
	creator *ranking.Entry
	err     error
}

func (c *stubCache) Replace(context.Context, string, []*ranking.Entry, time.Duration) error {
	return nil
}

func (c *stubCache) GetTop(context.Context, string, int) ([]*ranking.Entry, error) {
	return c.top, c.err
}

func (c *stubCache) GetCreator(context.Context, string, string) (*ranking.Entry, error) {
	return c.creator, c.err
}

func (c *stubCache) Invalidate(context.Context, string) error { return nil }

func activeSeason(t *testing.T) *season.Season {
	t.Helper()
	s, err := season.New(
		3, "Season 3: Zenith",
		time.Now().UTC().Add(-7*24*time.Hour), 30*24*time.Hour,
		season.DefaultConfig(), season.DefaultTierTable(),
	)
	require.NoError(t, err)
	return s
}

func rankedEntry(seasonID, creatorID string, rank int, score float64, supporters int) *ranking.Entry {
	return &ranking.Entry{
		SeasonID:       seasonID,
		CreatorID:      creatorID,
		CompositeScore: score,
		Tier:           season.TierSilver,
		Rank:           ranking.Rank(rank),
		Subtotals: ranking.Subtotals{
			Gift:             score,
			UniqueSupporters: supporters,
		},
		LastRecalculatedAt: time.Now().UTC(),
	}
}

// --- leaderboard ---

func TestGetLeaderboard_CacheHit(t *testing.T) {
	s := activeSeason(t)
	entries := []*ranking.Entry{
		rankedEntry(s.ID, "creator-a", 1, 4200, 12),
		rankedEntry(s.ID, "creator-b", 2, 1100, 4),
	}
	repo := &stubEntryRepo{}
	h := NewGetLeaderboardHandler(&stubSeasonRepo{active: s}, repo, &stubCache{top: entries}, nil)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.Equal(t, 0, repo.topCalls)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 1, result.Rows[0].Rank)
	assert.Equal(t, "creator-a", result.Rows[0].CreatorID)
	assert.Equal(t, 12, result.Rows[0].UniqueSupporters)
	assert.Equal(t, int(s.Number), result.SeasonNumber)
}

func TestGetLeaderboard_CacheMissFallsBackToStore(t *testing.T) {
	s := activeSeason(t)
	repo := &stubEntryRepo{top: []*ranking.Entry{rankedEntry(s.ID, "creator-a", 1, 4200, 12)}}
	h := NewGetLeaderboardHandler(&stubSeasonRepo{active: s}, repo, &stubCache{}, nil)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)

	assert.False(t, result.FromCache)
	assert.Equal(t, 1, repo.topCalls)
	assert.Len(t, result.Rows, 1)
}

func TestGetLeaderboard_CacheErrorFallsBackToStore(t *testing.T) {
	s := activeSeason(t)
	repo := &stubEntryRepo{top: []*ranking.Entry{rankedEntry(s.ID, "creator-a", 1, 4200, 12)}}
	h := NewGetLeaderboardHandler(&stubSeasonRepo{active: s}, repo, &stubCache{err: assert.AnError}, nil)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Len(t, result.Rows, 1)
}

func TestGetLeaderboard_LimitBounds(t *testing.T) {
	s := activeSeason(t)
	repo := &stubEntryRepo{}
	h := NewGetLeaderboardHandler(&stubSeasonRepo{active: s}, repo, nil, nil)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 50, repo.lastLimit)

	_, err = h.Handle(context.Background(), GetLeaderboardQuery{Limit: 9999})
	require.NoError(t, err)
	assert.Equal(t, 500, repo.lastLimit)
}

func TestGetLeaderboard_NoActiveSeason(t *testing.T) {
	h := NewGetLeaderboardHandler(&stubSeasonRepo{}, &stubEntryRepo{}, nil, nil)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrNoActiveSeason)
}

// --- creator rank ---

func TestGetCreatorRank_FromStore(t *testing.T) {
	s := activeSeason(t)
	entry := rankedEntry(s.ID, "creator-a", 5, 777, 3)
	repo := &stubEntryRepo{byCreator: map[string]*ranking.Entry{"creator-a": entry}}
	h := NewGetCreatorRankHandler(&stubSeasonRepo{active: s}, repo, &stubCache{}, nil)

	result, err := h.Handle(context.Background(), GetCreatorRankQuery{CreatorID: "creator-a"})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Rank)
	assert.Equal(t, 777.0, result.CompositeScore)
	assert.Equal(t, 3, result.UniqueSupporters)
	assert.Equal(t, season.TierSilver.String(), result.Tier)
}

func TestGetCreatorRank_CacheHit(t *testing.T) {
	s := activeSeason(t)
	cache := &stubCache{creator: rankedEntry(s.ID, "creator-a", 2, 999, 7)}
	h := NewGetCreatorRankHandler(&stubSeasonRepo{active: s}, &stubEntryRepo{}, cache, nil)

	result, err := h.Handle(context.Background(), GetCreatorRankQuery{CreatorID: "creator-a"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rank)
}

func TestGetCreatorRank_NotFound(t *testing.T) {
	s := activeSeason(t)
	h := NewGetCreatorRankHandler(&stubSeasonRepo{active: s}, &stubEntryRepo{}, nil, nil)

	_, err := h.Handle(context.Background(), GetCreatorRankQuery{CreatorID: "nobody"})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestGetCreatorRank_RequiresCreatorID(t *testing.T) {
	h := NewGetCreatorRankHandler(&stubSeasonRepo{}, &stubEntryRepo{}, nil, nil)

	_, err := h.Handle(context.Background(), GetCreatorRankQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// --- season status ---

type stubRewardRepo struct {
	rewards []*season.SeasonalReward
}

func (r *stubRewardRepo) GrantBatch(context.Context, []*season.SeasonalReward) error { return nil }

func (r *stubRewardRepo) GetBySeason(context.Context, string) ([]*season.SeasonalReward, error) {
	return r.rewards, nil
}

func (r *stubRewardRepo) GetByCreator(context.Context, string) ([]*season.SeasonalReward, error) {
	return nil, nil
}

func TestGetSeasonStatus_ActiveSeason(t *testing.T) {
	s := activeSeason(t)
	h := NewGetSeasonStatusHandler(&stubSeasonRepo{active: s}, &stubRewardRepo{}, nil)

	result, err := h.Handle(context.Background(), GetSeasonStatusQuery{})
	require.NoError(t, err)

	assert.Equal(t, s.ID, result.SeasonID)
	assert.Equal(t, season.StatusActive.String(), result.Status)
	assert.NotEmpty(t, result.Remaining)
	assert.Nil(t, result.EndedAt)
	assert.Len(t, result.Tiers, 5)
	assert.True(t, result.Tiers[len(result.Tiers)-1].Open)
	assert.Empty(t, result.Rewards)
}

func TestGetSeasonStatus_EndedSeasonWithRewards(t *testing.T) {
	s := activeSeason(t)
	endedAt := time.Now().UTC()
	require.NoError(t, s.End(endedAt))

	reward, err := season.NewSeasonalReward(s.ID, "creator-a", season.TierGold, 1, 8000, endedAt)
	require.NoError(t, err)

	h := NewGetSeasonStatusHandler(
		&stubSeasonRepo{byID: map[string]*season.Season{s.ID: s}},
		&stubRewardRepo{rewards: []*season.SeasonalReward{reward}},
		nil,
	)

	result, err := h.Handle(context.Background(), GetSeasonStatusQuery{SeasonID: s.ID, IncludeRewards: true})
	require.NoError(t, err)

	assert.Equal(t, season.StatusEnded.String(), result.Status)
	require.NotNil(t, result.EndedAt)
	assert.Empty(t, result.Remaining)
	require.Len(t, result.Rewards, 1)
	assert.Equal(t, "creator-a", result.Rewards[0].CreatorID)
	assert.Equal(t, 1, result.Rewards[0].FinalRank)
}

func TestGetSeasonStatus_RewardsOmittedUnlessRequested(t *testing.T) {
	s := activeSeason(t)
	require.NoError(t, s.End(time.Now().UTC()))

	reward, err := season.NewSeasonalReward(s.ID, "creator-a", season.TierGold, 1, 8000, time.Now().UTC())
	require.NoError(t, err)

	h := NewGetSeasonStatusHandler(
		&stubSeasonRepo{byID: map[string]*season.Season{s.ID: s}},
		&stubRewardRepo{rewards: []*season.SeasonalReward{reward}},
		nil,
	)

	result, err := h.Handle(context.Background(), GetSeasonStatusQuery{SeasonID: s.ID})
	require.NoError(t, err)
	assert.Empty(t, result.Rewards)
}

func TestGetSeasonStatus_UnknownSeason(t *testing.T) {
	h := NewGetSeasonStatusHandler(&stubSeasonRepo{}, &stubRewardRepo{}, nil)

	_, err := h.Handle(context.Background(), GetSeasonStatusQuery{SeasonID: "missing"})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}
