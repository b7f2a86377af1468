package command

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

func newOverrideFixture(t *testing.T) (*OverrideConfigHandler, *recalcFixture) {
	t.Helper()
	f := newRecalcFixture(t, RecalculateConfig{ChunkSize: 2})
	handler := NewOverrideConfigHandler(f.seasons, f.handler, f.publisher, slog.Default())
	return handler, f
}

func TestOverrideConfig_TriggersFullRecalculation(t *testing.T) {
	handler, f := newOverrideFixture(t)
	f.seed()

	cfg := season.DefaultConfig()
	cfg.TournamentMultiplier = 2.5

	result, err := handler.Handle(context.Background(), OverrideConfigCommand{
		SeasonID:     f.season.ID,
		Config:       cfg,
		OverriddenBy: "admin@lumen",
	})
	require.NoError(t, err)

	// The override is immediately followed by a complete pass.
	require.NotNil(t, result)
	assert.Equal(t, f.season.ID, result.SeasonID)
	assert.Equal(t, 3, result.CreatorsTotal)
	assert.Positive(t, f.entries.upserts)

	assert.Equal(t, 2.5, f.season.Config.TournamentMultiplier)
	assert.Len(t, f.publisher.byType(shared.EventSeasonConfigOverride), 1)
}

func TestOverrideConfig_EndedSeasonRejected(t *testing.T) {
	handler, f := newOverrideFixture(t)
	require.NoError(t, f.season.End(time.Now().UTC()))

	_, err := handler.Handle(context.Background(), OverrideConfigCommand{
		SeasonID:     f.season.ID,
		Config:       season.DefaultConfig(),
		OverriddenBy: "admin@lumen",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSeasonNotActive)
}

func TestOverrideConfig_InvalidConfigRejected(t *testing.T) {
	handler, f := newOverrideFixture(t)
	original := f.season.Config

	cfg := season.DefaultConfig()
	cfg.DecayWindow = 0

	_, err := handler.Handle(context.Background(), OverrideConfigCommand{
		SeasonID:     f.season.ID,
		Config:       cfg,
		OverriddenBy: "admin@lumen",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)

	// Rejected override leaves the stored config untouched.
	assert.Equal(t, original, f.season.Config)
}

func TestOverrideConfig_Validation(t *testing.T) {
	handler, f := newOverrideFixture(t)

	cases := map[string]OverrideConfigCommand{
		"missing season":        {Config: season.DefaultConfig(), OverriddenBy: "admin"},
		"missing overridden_by": {SeasonID: f.season.ID, Config: season.DefaultConfig()},
	}
	for name, cmd := range cases {
		_, err := handler.Handle(context.Background(), cmd)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, shared.ErrInvalidInput, name)
	}
}

func TestOverrideConfig_UnknownSeason(t *testing.T) {
	handler, _ := newOverrideFixture(t)

	_, err := handler.Handle(context.Background(), OverrideConfigCommand{
		SeasonID:     "no-such-season",
		Config:       season.DefaultConfig(),
		OverriddenBy: "admin@lumen",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSeasonNotFound)
}
