package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(creatorID string, score float64, supporters int, recalcAt time.Time) *Entry {
	return &Entry{
		SeasonID:           "season-1",
		CreatorID:          creatorID,
		CompositeScore:     score,
		Subtotals:          Subtotals{UniqueSupporters: supporters},
		LastRecalculatedAt: recalcAt,
	}
}

func TestSequencer_DenseRanks(t *testing.T) {
	now := time.Now().UTC()
	entries := []*Entry{
		entry("c", 100, 5, now),
		entry("a", 300, 5, now),
		entry("b", 200, 5, now),
	}

	NewSequencer().Sequence(entries)

	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].CreatorID)
	assert.Equal(t, "b", entries[1].CreatorID)
	assert.Equal(t, "c", entries[2].CreatorID)

	// Every rank from 1 to N is taken, no shared positions.
	for i, e := range entries {
		assert.Equal(t, Rank(i+1), e.Rank)
	}
}

func TestSequencer_TieBreak_UniqueSupporters(t *testing.T) {
	now := time.Now().UTC()

	// Identical composite score: more distinct supporters ranks higher.
	a := entry("creator-a", 671, 10, now)
	b := entry("creator-b", 671, 8, now)
	entries := []*Entry{b, a}

	NewSequencer().Sequence(entries)

	assert.Equal(t, Rank(1), a.Rank)
	assert.Equal(t, Rank(2), b.Rank)
}

func TestSequencer_TieBreak_EarlierRecalcWins(t *testing.T) {
	now := time.Now().UTC()

	a := entry("creator-a", 500, 10, now.Add(-time.Minute))
	b := entry("creator-b", 500, 10, now)
	entries := []*Entry{b, a}

	NewSequencer().Sequence(entries)

	assert.Equal(t, Rank(1), a.Rank)
	assert.Equal(t, Rank(2), b.Rank)
}

func TestSequencer_TieBreak_CreatorIDIsFinal(t *testing.T) {
	now := time.Now().UTC()

	a := entry("creator-a", 500, 10, now)
	b := entry("creator-b", 500, 10, now)
	entries := []*Entry{b, a}

	NewSequencer().Sequence(entries)

	// Fully tied entries still order deterministically, by creator ID.
	assert.Equal(t, Rank(1), a.Rank)
	assert.Equal(t, Rank(2), b.Rank)
}

func TestSequencer_Deterministic(t *testing.T) {
	now := time.Now().UTC()
	build := func() []*Entry {
		return []*Entry{
			entry("e", 100, 1, now),
			entry("b", 500, 3, now),
			entry("d", 100, 1, now),
			entry("a", 500, 7, now),
			entry("c", 250, 2, now),
		}
	}

	first := build()
	NewSequencer().Sequence(first)

	second := build()
	NewSequencer().Sequence(second)

	for i := range first {
		assert.Equal(t, first[i].CreatorID, second[i].CreatorID)
		assert.Equal(t, first[i].Rank, second[i].Rank)
	}
}

func TestSequencer_Empty(t *testing.T) {
	assert.NotPanics(t, func() {
		NewSequencer().Sequence(nil)
	})
}
