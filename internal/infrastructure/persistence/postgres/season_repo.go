package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEASON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SeasonRepository implements season.SeasonRepository for PostgreSQL.
type SeasonRepository struct {
	conn *Connection
}

// NewSeasonRepository creates a new SeasonRepository.
func NewSeasonRepository(conn *Connection) *SeasonRepository {
	return &SeasonRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// JSONB DOCUMENTS
// Config and tier table are stored as JSONB documents. Durations are
// serialized as whole seconds so the documents stay readable in SQL.
// ─────────────────────────────────────────────────────────────────────────────

type configDoc struct {
	WeightGift                 float64            `json:"weight_gift"`
	WeightBattle               float64            `json:"weight_battle"`
	WeightUnique               float64            `json:"weight_unique"`
	WeightMomentum             float64            `json:"weight_momentum"`
	WhaleThresholdShare        float64            `json:"whale_threshold_share"`
	WhaleDiminishingMultiplier float64            `json:"whale_diminishing_multiplier"`
	DecayWindowSeconds         int64              `json:"decay_window_seconds"`
	DecayFloor                 float64            `json:"decay_floor"`
	RecentWindowSeconds        int64              `json:"recent_window_seconds"`
	RecentBoost                float64            `json:"recent_boost"`
	MomentumWindowSeconds      int64              `json:"momentum_window_seconds"`
	MomentumEdgeWeight         float64            `json:"momentum_edge_weight"`
	BattleScoreCap             float64            `json:"battle_score_cap"`
	TournamentMultiplier       float64            `json:"tournament_multiplier"`
	WinBonuses                 map[string]float64 `json:"win_bonuses"`
}

func encodeConfig(cfg season.Config) ([]byte, error) {
	doc := configDoc{
		WeightGift:                 cfg.Weights.Gift,
		WeightBattle:               cfg.Weights.Battle,
		WeightUnique:               cfg.Weights.Unique,
		WeightMomentum:             cfg.Weights.Momentum,
		WhaleThresholdShare:        cfg.WhaleThresholdShare,
		WhaleDiminishingMultiplier: cfg.WhaleDiminishingMultiplier,
		DecayWindowSeconds:         int64(cfg.DecayWindow.Seconds()),
		DecayFloor:                 cfg.DecayFloor,
		RecentWindowSeconds:        int64(cfg.RecentWindow.Seconds()),
		RecentBoost:                cfg.RecentBoost,
		MomentumWindowSeconds:      int64(cfg.MomentumWindow.Seconds()),
		MomentumEdgeWeight:         cfg.MomentumEdgeWeight,
		BattleScoreCap:             cfg.BattleScoreCap,
		TournamentMultiplier:       cfg.TournamentMultiplier,
		WinBonuses:                 make(map[string]float64, len(cfg.WinBonuses)),
	}
	for bracket, bonus := range cfg.WinBonuses {
		doc.WinBonuses[string(bracket)] = bonus
	}
	return json.Marshal(doc)
}

func decodeConfig(data []byte) (season.Config, error) {
	var doc configDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return season.Config{}, fmt.Errorf("decode season config: %w", err)
	}

	cfg := season.Config{
		Weights: season.Weights{
			Gift:     doc.WeightGift,
			Battle:   doc.WeightBattle,
			Unique:   doc.WeightUnique,
			Momentum: doc.WeightMomentum,
		},
		WhaleThresholdShare:        doc.WhaleThresholdShare,
		WhaleDiminishingMultiplier: doc.WhaleDiminishingMultiplier,
		DecayWindow:                time.Duration(doc.DecayWindowSeconds) * time.Second,
		DecayFloor:                 doc.DecayFloor,
		RecentWindow:               time.Duration(doc.RecentWindowSeconds) * time.Second,
		RecentBoost:                doc.RecentBoost,
		MomentumWindow:             time.Duration(doc.MomentumWindowSeconds) * time.Second,
		MomentumEdgeWeight:         doc.MomentumEdgeWeight,
		BattleScoreCap:             doc.BattleScoreCap,
		TournamentMultiplier:       doc.TournamentMultiplier,
		WinBonuses:                 make(map[season.TeamBracket]float64, len(doc.WinBonuses)),
	}
	for bracket, bonus := range doc.WinBonuses {
		cfg.WinBonuses[season.TeamBracket(bracket)] = bonus
	}
	return cfg, nil
}

type tierDoc struct {
	Name     string  `json:"name"`
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`
}

func encodeTiers(tt season.TierTable) ([]byte, error) {
	tiers := tt.Tiers()
	docs := make([]tierDoc, 0, len(tiers))
	for _, t := range tiers {
		docs = append(docs, tierDoc{Name: string(t.Name), MinScore: t.MinScore, MaxScore: t.MaxScore})
	}
	return json.Marshal(docs)
}

func decodeTiers(data []byte) (season.TierTable, error) {
	var docs []tierDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return season.TierTable{}, fmt.Errorf("decode tier table: %w", err)
	}

	tiers := make([]season.Tier, 0, len(docs))
	for _, d := range docs {
		tiers = append(tiers, season.Tier{Name: season.TierName(d.Name), MinScore: d.MinScore, MaxScore: d.MaxScore})
	}
	return season.NewTierTable(tiers)
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD
// ─────────────────────────────────────────────────────────────────────────────

// Create saves a new season. The partial unique index on ACTIVE status
// makes a second active season impossible even under concurrent creates.
func (r *SeasonRepository) Create(ctx context.Context, s *season.Season) error {
	configJSON, err := encodeConfig(s.Config)
	if err != nil {
		return err
	}
	tiersJSON, err := encodeTiers(s.Tiers)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO seasons (id, number, label, starts_at, ends_at, status, config, tiers, ended_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		s.ID, int(s.Number), s.Label, s.StartsAt, s.EndsAt, s.Status.String(),
		configJSON, tiersJSON, s.EndedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrActiveSeasonExists
		}
		return fmt.Errorf("insert season: %w", err)
	}
	return nil
}

// Update saves changes to an existing season.
func (r *SeasonRepository) Update(ctx context.Context, s *season.Season) error {
	configJSON, err := encodeConfig(s.Config)
	if err != nil {
		return err
	}
	tiersJSON, err := encodeTiers(s.Tiers)
	if err != nil {
		return err
	}

	tag, err := r.conn.Exec(ctx, `
		UPDATE seasons
		SET label = $2, starts_at = $3, ends_at = $4, status = $5,
		    config = $6, tiers = $7, ended_at = $8, updated_at = $9
		WHERE id = $1
	`,
		s.ID, s.Label, s.StartsAt, s.EndsAt, s.Status.String(),
		configJSON, tiersJSON, s.EndedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update season: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSeasonNotFound
	}
	return nil
}

// GetByID returns a season by its identifier.
func (r *SeasonRepository) GetByID(ctx context.Context, id string) (*season.Season, error) {
	return r.getOne(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE id = $1`, id)
}

// GetActive returns the single active season.
func (r *SeasonRepository) GetActive(ctx context.Context) (*season.Season, error) {
	s, err := r.getOne(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE status = 'ACTIVE'`)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrNoActiveSeason
		}
		return nil, err
	}
	return s, nil
}

// GetByNumber returns a season by its sequential number.
func (r *SeasonRepository) GetByNumber(ctx context.Context, number season.Number) (*season.Season, error) {
	return r.getOne(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE number = $1`, int(number))
}

// List returns all seasons, newest first.
func (r *SeasonRepository) List(ctx context.Context) ([]*season.Season, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+seasonColumns+` FROM seasons ORDER BY number DESC`)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	defer rows.Close()

	var seasons []*season.Season
	for rows.Next() {
		s, err := scanSeason(rows)
		if err != nil {
			return nil, err
		}
		seasons = append(seasons, s)
	}
	return seasons, rows.Err()
}

const seasonColumns = `id, number, label, starts_at, ends_at, status, config, tiers, ended_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SeasonRepository) getOne(ctx context.Context, query string, args ...any) (*season.Season, error) {
	s, err := scanSeason(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSeasonNotFound
		}
		return nil, err
	}
	return s, nil
}

func scanSeason(row rowScanner) (*season.Season, error) {
	var (
		s          season.Season
		number     int
		status     string
		configJSON []byte
		tiersJSON  []byte
	)
	err := row.Scan(&s.ID, &number, &s.Label, &s.StartsAt, &s.EndsAt, &status,
		&configJSON, &tiersJSON, &s.EndedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.Number = season.Number(number)
	parsedStatus, err := season.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	s.Status = parsedStatus

	if s.Config, err = decodeConfig(configJSON); err != nil {
		return nil, err
	}
	if s.Tiers, err = decodeTiers(tiersJSON); err != nil {
		return nil, err
	}
	return &s, nil
}
