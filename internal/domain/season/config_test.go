package season

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_WeightsMustSumToOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Gift = 0.7 // sum is now 1.2

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)
}

func TestConfig_Validate_WeightSumTolerance(t *testing.T) {
	cfg := DefaultConfig()
	// Within tolerance: 0.5001 + 0.3 + 0.1 + 0.1 = 1.0001
	cfg.Weights.Gift = 0.5001
	assert.NoError(t, cfg.Validate())

	// Outside tolerance
	cfg.Weights.Gift = 0.51
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_Rejections(t *testing.T) {
	mutations := map[string]func(*Config){
		"negative weight":          func(c *Config) { c.Weights.Gift = -0.1; c.Weights.Battle = 0.9 },
		"whale share above one":    func(c *Config) { c.WhaleThresholdShare = 1.5 },
		"whale share zero":         func(c *Config) { c.WhaleThresholdShare = 0 },
		"whale multiplier above 1": func(c *Config) { c.WhaleDiminishingMultiplier = 1.1 },
		"zero decay window":        func(c *Config) { c.DecayWindow = 0 },
		"decay floor zero":         func(c *Config) { c.DecayFloor = 0 },
		"decay floor one":          func(c *Config) { c.DecayFloor = 1 },
		"recent beyond decay":      func(c *Config) { c.RecentWindow = c.DecayWindow },
		"boost below one":          func(c *Config) { c.RecentBoost = 0.9 },
		"zero momentum window":     func(c *Config) { c.MomentumWindow = 0 },
		"zero battle cap":          func(c *Config) { c.BattleScoreCap = 0 },
		"tournament below one":     func(c *Config) { c.TournamentMultiplier = 0.5 },
		"negative win bonus":       func(c *Config) { c.WinBonuses[BracketSolo] = -10 },
	}

	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestConfig_DecayFactor_RecentBoost(t *testing.T) {
	cfg := DefaultConfig()

	// Inside the freshness window the factor is the boost, above 1.0.
	assert.Equal(t, cfg.RecentBoost, cfg.DecayFactor(0))
	assert.Equal(t, cfg.RecentBoost, cfg.DecayFactor(cfg.RecentWindow))
	assert.Greater(t, cfg.DecayFactor(time.Hour), 1.0)
}

func TestConfig_DecayFactor_MonotoneAndFloored(t *testing.T) {
	cfg := DefaultConfig()

	prev := cfg.DecayFactor(cfg.RecentWindow + time.Minute)
	for age := cfg.RecentWindow + time.Hour; age < cfg.DecayWindow+48*time.Hour; age += 12 * time.Hour {
		f := cfg.DecayFactor(age)
		assert.LessOrEqual(t, f, prev, "decay must never increase with age")
		assert.GreaterOrEqual(t, f, cfg.DecayFloor, "decay must never drop below the floor")
		prev = f
	}

	// At and beyond the decay window the factor sits exactly on the floor.
	assert.Equal(t, cfg.DecayFloor, cfg.DecayFactor(cfg.DecayWindow))
	assert.Equal(t, cfg.DecayFloor, cfg.DecayFactor(365*24*time.Hour))
}

func TestConfig_DecayFactor_NegativeAgeTreatedAsFresh(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.RecentBoost, cfg.DecayFactor(-time.Hour))
}

func TestConfig_MomentumWeight(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1.0, cfg.MomentumWeight(0))
	assert.Equal(t, 0.0, cfg.MomentumWeight(cfg.MomentumWindow))
	assert.Equal(t, 0.0, cfg.MomentumWeight(cfg.MomentumWindow+time.Hour))

	// Halfway through the window the weight is halfway between 1.0 and
	// the edge weight.
	mid := cfg.MomentumWeight(cfg.MomentumWindow / 2)
	assert.InDelta(t, (1.0+cfg.MomentumEdgeWeight)/2, mid, 1e-9)
}

func TestBracketForTeamSize(t *testing.T) {
	assert.Equal(t, BracketSolo, BracketForTeamSize(1))
	assert.Equal(t, BracketDuo, BracketForTeamSize(2))
	assert.Equal(t, BracketSquad, BracketForTeamSize(3))
	assert.Equal(t, BracketSquad, BracketForTeamSize(4))
	assert.Equal(t, BracketRaid, BracketForTeamSize(5))
	assert.Equal(t, BracketRaid, BracketForTeamSize(10))
}
