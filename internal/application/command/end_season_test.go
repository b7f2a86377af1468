package command

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

type endSeasonFixture struct {
	*recalcFixture
	handler *EndSeasonHandler
	rewards *fakeRewardRepo
}

func newEndSeasonFixture(t *testing.T) *endSeasonFixture {
	t.Helper()
	f := &endSeasonFixture{
		recalcFixture: newRecalcFixture(t, RecalculateConfig{ChunkSize: 2}),
		rewards:       newFakeRewardRepo(),
	}
	f.handler = NewEndSeasonHandler(
		f.seasons, f.entries, f.rewards, f.cache,
		f.recalcFixture.handler, f.publisher, slog.Default(),
	)
	return f
}

func TestEndSeason_FreezesAndGrantsRewards(t *testing.T) {
	f := newEndSeasonFixture(t)
	f.seed()

	result, err := f.handler.Handle(context.Background(), EndSeasonCommand{EndedBy: "admin@lumen"})
	require.NoError(t, err)

	assert.Equal(t, f.season.ID, result.SeasonID)
	assert.Equal(t, 3, result.TotalCreators)
	assert.Equal(t, 3, result.RewardsGranted)
	require.NotNil(t, result.FinalPass)
	assert.Equal(t, 3, result.FinalPass.CreatorsTotal)

	assert.True(t, f.season.HasEnded())
	require.NotNil(t, f.season.EndedAt)

	// One immutable reward row per ranked creator, ordered by final rank.
	granted, err := f.rewards.GetBySeason(context.Background(), f.season.ID)
	require.NoError(t, err)
	require.Len(t, granted, 3)
	assert.Equal(t, "creator-a", granted[0].CreatorID)
	assert.Equal(t, 1, granted[0].FinalRank)
	assert.Equal(t, "creator-c", granted[2].CreatorID)
	assert.Equal(t, 3, granted[2].FinalRank)
	for _, r := range granted {
		assert.NotEmpty(t, r.Tier)
		assert.GreaterOrEqual(t, r.FinalScore, 0.0)
	}

	// The stale projection of the frozen season is dropped.
	assert.Contains(t, f.cache.invalidated, f.season.ID)

	assert.Len(t, f.publisher.byType(shared.EventSeasonEnded), 1)
	assert.Len(t, f.publisher.byType(shared.EventRewardGranted), 3)
}

func TestEndSeason_EmptySeason(t *testing.T) {
	f := newEndSeasonFixture(t)

	result, err := f.handler.Handle(context.Background(), EndSeasonCommand{EndedBy: "admin@lumen"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalCreators)
	assert.Equal(t, 0, result.RewardsGranted)
	assert.True(t, f.season.HasEnded())
	assert.Empty(t, f.publisher.byType(shared.EventRewardGranted))
}

func TestEndSeason_AlreadyEnded(t *testing.T) {
	f := newEndSeasonFixture(t)
	require.NoError(t, f.season.End(time.Now().UTC()))

	_, err := f.handler.Handle(context.Background(), EndSeasonCommand{SeasonID: f.season.ID, EndedBy: "admin@lumen"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSeasonNotActive)
}

func TestEndSeason_RequiresEndedBy(t *testing.T) {
	f := newEndSeasonFixture(t)

	_, err := f.handler.Handle(context.Background(), EndSeasonCommand{})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.True(t, f.season.IsActive())
}

func TestEndSeason_FinalPassLockConflict(t *testing.T) {
	f := newEndSeasonFixture(t)
	f.seed()
	f.lock.holders[f.season.ID] = "another-process"

	_, err := f.handler.Handle(context.Background(), EndSeasonCommand{EndedBy: "admin@lumen"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrRecalcInFlight)

	// The season stays live when the final pass cannot run.
	assert.True(t, f.season.IsActive())
	rewards, _ := f.rewards.GetBySeason(context.Background(), f.season.ID)
	assert.Empty(t, rewards)
}
