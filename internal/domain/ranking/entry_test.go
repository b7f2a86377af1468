package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

func TestNewEntry(t *testing.T) {
	e, err := NewEntry("season-1", "creator-1")
	require.NoError(t, err)
	assert.Equal(t, "season-1", e.SeasonID)
	assert.Equal(t, "creator-1", e.CreatorID)
	assert.Zero(t, e.Rank)

	_, err = NewEntry("", "creator-1")
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = NewEntry("season-1", "  ")
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestEntry_ApplyScore(t *testing.T) {
	e, err := NewEntry("season-1", "creator-1")
	require.NoError(t, err)

	at := time.Now()
	subtotals := Subtotals{Gift: 1000, Battle: 500, UniqueSupporters: 10, Momentum: 200}
	e.ApplyScore(subtotals, 671, season.TierBronze, at)

	assert.Equal(t, subtotals, e.Subtotals)
	assert.Equal(t, 671.0, e.CompositeScore)
	assert.Equal(t, season.TierBronze, e.Tier)
	assert.Equal(t, at.UTC(), e.LastRecalculatedAt)
}

func TestRank_IsValid(t *testing.T) {
	assert.False(t, Rank(0).IsValid())
	assert.True(t, Rank(1).IsValid())
	assert.True(t, Rank(5).IsTop10())
	assert.False(t, Rank(11).IsTop10())
}
