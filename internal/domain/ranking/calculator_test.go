package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumen-live/season-ranking/internal/domain/season"
)

func TestCalculator_Composite_WeightedSum(t *testing.T) {
	cfg := season.DefaultConfig()
	cfg.Weights = season.Weights{Gift: 0.5, Battle: 0.3, Unique: 0.1, Momentum: 0.1}
	calc := NewCalculator()

	// 0.5*1000 + 0.3*500 + 0.1*10 + 0.1*200 = 500 + 150 + 1 + 20 = 671.
	got := calc.Composite(cfg, Subtotals{
		Gift:             1000,
		Battle:           500,
		UniqueSupporters: 10,
		Momentum:         200,
	})
	assert.InDelta(t, 671.0, got, 1e-9)
}

func TestCalculator_Composite_ZeroSubtotals(t *testing.T) {
	calc := NewCalculator()
	assert.Zero(t, calc.Composite(season.DefaultConfig(), Subtotals{}))
}

func TestCalculator_Composite_NeverNegative(t *testing.T) {
	calc := NewCalculator()

	// Subtotals are non-negative by construction, but the clamp holds
	// even against bad upstream data.
	got := calc.Composite(season.DefaultConfig(), Subtotals{Gift: -100})
	assert.Zero(t, got)
}
