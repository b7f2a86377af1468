package season

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

func TestDefaultTierTable_IsValid(t *testing.T) {
	tt := DefaultTierTable()
	require.NoError(t, tt.Validate())
	assert.Equal(t, 5, tt.Len())
}

func TestTierTable_Assign_Boundaries(t *testing.T) {
	tt := DefaultTierTable()

	cases := []struct {
		score float64
		want  TierName
	}{
		{0, TierBronze},
		{999.99, TierBronze},
		{1000, TierSilver}, // lower bound is inclusive
		{4999.99, TierSilver},
		{5000, TierGold},
		{20000, TierPlatinum},
		{50000, TierDiamond},
		{1e9, TierDiamond}, // top tier is open-ended
	}
	for _, c := range cases {
		got, err := tt.Assign(c.score)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "score %.2f", c.score)
	}
}

func TestTierTable_Assign_NegativeScore(t *testing.T) {
	tt := DefaultTierTable()
	_, err := tt.Assign(-1)
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)
}

func TestNewTierTable_SortsInput(t *testing.T) {
	tt, err := NewTierTable([]Tier{
		{Name: "HIGH", MinScore: 100, MaxScore: -1},
		{Name: "LOW", MinScore: 0, MaxScore: 100},
	})
	require.NoError(t, err)

	tiers := tt.Tiers()
	assert.Equal(t, TierName("LOW"), tiers[0].Name)
	assert.Equal(t, TierName("HIGH"), tiers[1].Name)
}

func TestNewTierTable_Rejections(t *testing.T) {
	cases := map[string][]Tier{
		"empty table": {},
		"does not start at zero": {
			{Name: "A", MinScore: 10, MaxScore: -1},
		},
		"gap between bands": {
			{Name: "A", MinScore: 0, MaxScore: 100},
			{Name: "B", MinScore: 200, MaxScore: -1},
		},
		"overlapping bands": {
			{Name: "A", MinScore: 0, MaxScore: 150},
			{Name: "B", MinScore: 100, MaxScore: -1},
		},
		"closed top tier": {
			{Name: "A", MinScore: 0, MaxScore: 100},
			{Name: "B", MinScore: 100, MaxScore: 200},
		},
		"empty tier name": {
			{Name: "", MinScore: 0, MaxScore: -1},
		},
	}

	for name, tiers := range cases {
		_, err := NewTierTable(tiers)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, shared.ErrInvalidConfig, name)
	}
}
