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

func TestCreateSeason_Success(t *testing.T) {
	repo := newFakeSeasonRepo()
	publisher := newFakePublisher()
	handler := NewCreateSeasonHandler(repo, publisher, slog.Default())

	startsAt := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	result, err := handler.Handle(context.Background(), CreateSeasonCommand{
		Number:   7,
		Label:    "Season 7: Aurora",
		StartsAt: startsAt,
		Duration: 60 * 24 * time.Hour,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.SeasonID)
	assert.Equal(t, season.Number(7), result.Number)
	assert.Equal(t, startsAt, result.StartsAt)
	assert.Equal(t, startsAt.Add(60*24*time.Hour), result.EndsAt)

	stored, err := repo.GetByID(context.Background(), result.SeasonID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive())
	assert.NoError(t, stored.Config.Validate())

	assert.Len(t, publisher.byType(shared.EventSeasonCreated), 1)
}

func TestCreateSeason_DefaultsStartToNow(t *testing.T) {
	handler := NewCreateSeasonHandler(newFakeSeasonRepo(), nil, slog.Default())

	before := time.Now().UTC()
	result, err := handler.Handle(context.Background(), CreateSeasonCommand{
		Number:   1,
		Label:    "Season 1",
		Duration: 30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	assert.False(t, result.StartsAt.Before(before))
}

func TestCreateSeason_ActiveSeasonExists(t *testing.T) {
	active := newTestSeason(t)
	handler := NewCreateSeasonHandler(newFakeSeasonRepo(active), nil, slog.Default())

	_, err := handler.Handle(context.Background(), CreateSeasonCommand{
		Number:   2,
		Label:    "Season 2",
		Duration: 30 * 24 * time.Hour,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrActiveSeasonExists)
}

func TestCreateSeason_Validation(t *testing.T) {
	handler := NewCreateSeasonHandler(newFakeSeasonRepo(), nil, slog.Default())

	cases := map[string]CreateSeasonCommand{
		"zero number":   {Label: "S", Duration: time.Hour},
		"empty label":   {Number: 1, Duration: time.Hour},
		"zero duration": {Number: 1, Label: "S"},
	}
	for name, cmd := range cases {
		_, err := handler.Handle(context.Background(), cmd)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, shared.ErrInvalidInput, name)
	}
}

func TestCreateSeason_CustomConfig(t *testing.T) {
	repo := newFakeSeasonRepo()
	handler := NewCreateSeasonHandler(repo, nil, slog.Default())

	cfg := season.DefaultConfig()
	cfg.TournamentMultiplier = 2.0

	result, err := handler.Handle(context.Background(), CreateSeasonCommand{
		Number:   1,
		Label:    "Season 1",
		Duration: 30 * 24 * time.Hour,
		Config:   &cfg,
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), result.SeasonID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, stored.Config.TournamentMultiplier)
}

func TestCreateSeason_InvalidCustomConfig(t *testing.T) {
	handler := NewCreateSeasonHandler(newFakeSeasonRepo(), nil, slog.Default())

	cfg := season.DefaultConfig()
	cfg.Weights.Gift = 0.9 // weights no longer sum to one

	_, err := handler.Handle(context.Background(), CreateSeasonCommand{
		Number:   1,
		Label:    "Season 1",
		Duration: 30 * 24 * time.Hour,
		Config:   &cfg,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)
}
