// Package postgres implements the PostgreSQL persistence layer for the
// season ranking subsystem.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE SEASONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create seasons and the reward ledger
-- Version: 001

CREATE TABLE IF NOT EXISTS seasons (
    id UUID PRIMARY KEY,
    number INTEGER NOT NULL UNIQUE,
    label VARCHAR(200) NOT NULL,
    starts_at TIMESTAMP WITH TIME ZONE NOT NULL,
    ends_at TIMESTAMP WITH TIME ZONE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    config JSONB NOT NULL,
    tiers JSONB NOT NULL,
    ended_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('PENDING', 'ACTIVE', 'ENDED')),
    CONSTRAINT valid_number CHECK (number > 0),
    CONSTRAINT valid_bounds CHECK (ends_at > starts_at)
);

-- At most one ACTIVE season, enforced by the database itself.
CREATE UNIQUE INDEX IF NOT EXISTS idx_seasons_single_active
    ON seasons(status) WHERE status = 'ACTIVE';

CREATE INDEX IF NOT EXISTS idx_seasons_number ON seasons(number DESC);

-- Immutable reward ledger: one row per (season, creator), written once
-- when the season is frozen.
CREATE TABLE IF NOT EXISTS seasonal_rewards (
    id UUID PRIMARY KEY,
    season_id UUID NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
    creator_id VARCHAR(64) NOT NULL,
    tier VARCHAR(30) NOT NULL,
    final_rank INTEGER NOT NULL,
    final_score DOUBLE PRECISION NOT NULL,
    granted_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_final_rank CHECK (final_rank >= 1),
    CONSTRAINT valid_final_score CHECK (final_score >= 0),
    UNIQUE(season_id, creator_id)
);

CREATE INDEX IF NOT EXISTS idx_rewards_season_rank ON seasonal_rewards(season_id, final_rank);
CREATE INDEX IF NOT EXISTS idx_rewards_creator ON seasonal_rewards(creator_id);
`

const migration001Down = `
DROP TABLE IF EXISTS seasonal_rewards;
DROP TABLE IF EXISTS seasons;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE RANKING ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create ranking entries
-- Version: 002

CREATE TABLE IF NOT EXISTS ranking_entries (
    season_id UUID NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
    creator_id VARCHAR(64) NOT NULL,
    gift_subtotal DOUBLE PRECISION NOT NULL DEFAULT 0,
    battle_subtotal DOUBLE PRECISION NOT NULL DEFAULT 0,
    unique_supporters INTEGER NOT NULL DEFAULT 0,
    momentum DOUBLE PRECISION NOT NULL DEFAULT 0,
    composite_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    tier VARCHAR(30) NOT NULL DEFAULT '',
    rank INTEGER NOT NULL DEFAULT 0,
    last_recalculated_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_composite CHECK (composite_score >= 0),
    CONSTRAINT valid_supporters CHECK (unique_supporters >= 0),
    PRIMARY KEY (season_id, creator_id)
);

CREATE INDEX IF NOT EXISTS idx_entries_season_rank
    ON ranking_entries(season_id, rank) WHERE rank > 0;
CREATE INDEX IF NOT EXISTS idx_entries_season_score
    ON ranking_entries(season_id, composite_score DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS ranking_entries;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ENGAGEMENT SIGNALS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create raw engagement signal tables
-- Version: 003
-- These tables are written by the payment and battle ingest paths and
-- only read by the recalculation pipeline.

CREATE TABLE IF NOT EXISTS gift_contributions (
    id BIGSERIAL PRIMARY KEY,
    season_id UUID NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
    creator_id VARCHAR(64) NOT NULL,
    supporter_id VARCHAR(64) NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_amount CHECK (amount > 0)
);

CREATE INDEX IF NOT EXISTS idx_gifts_season_creator
    ON gift_contributions(season_id, creator_id);
CREATE INDEX IF NOT EXISTS idx_gifts_occurred_at
    ON gift_contributions(occurred_at DESC);

CREATE TABLE IF NOT EXISTS battle_participations (
    id BIGSERIAL PRIMARY KEY,
    season_id UUID NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
    creator_id VARCHAR(64) NOT NULL,
    battle_id VARCHAR(64) NOT NULL,
    raw_score DOUBLE PRECISION NOT NULL,
    won BOOLEAN NOT NULL DEFAULT FALSE,
    team_size INTEGER NOT NULL DEFAULT 1,
    tournament BOOLEAN NOT NULL DEFAULT FALSE,
    ranked BOOLEAN NOT NULL DEFAULT TRUE,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_raw_score CHECK (raw_score >= 0),
    CONSTRAINT valid_team_size CHECK (team_size >= 1),
    UNIQUE(battle_id, creator_id)
);

CREATE INDEX IF NOT EXISTS idx_battles_season_creator
    ON battle_participations(season_id, creator_id);
`

const migration003Down = `
DROP TABLE IF EXISTS battle_participations;
DROP TABLE IF EXISTS gift_contributions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE RECALC LOCKS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create the cross-process recalculation lock
-- Version: 004

CREATE TABLE IF NOT EXISTS recalc_locks (
    season_id UUID PRIMARY KEY REFERENCES seasons(id) ON DELETE CASCADE,
    holder_id UUID NOT NULL,
    acquired_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    locked_until TIMESTAMP WITH TIME ZONE NOT NULL
);
`

const migration004Down = `
DROP TABLE IF EXISTS recalc_locks;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_seasons", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_ranking_entries", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_signals", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_recalc_locks", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}
