package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lumen-live/season-ranking/internal/application/command"
	"github.com/lumen-live/season-ranking/internal/application/query"
	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
	"github.com/lumen-live/season-ranking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "season-ranking",
		"version": "v1",
		"uptime":  s.Uptime().Round(time.Second).String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"healthy": true})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"alive": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// PUBLIC API HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := query.GetLeaderboardQuery{
		SeasonID: getQueryParam(r, "season_id", ""),
		Limit:    getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, http.StatusOK, result, &ResponseMeta{FromCache: result.FromCache})
}

func (s *Server) handleGetCreatorRank(w http.ResponseWriter, r *http.Request) {
	q := query.GetCreatorRankQuery{
		SeasonID:  getQueryParam(r, "season_id", ""),
		CreatorID: r.PathValue("id"),
	}

	result, err := s.deps.GetCreatorRankHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetCurrentSeason(w http.ResponseWriter, r *http.Request) {
	s.writeSeasonStatus(w, r, "")
}

func (s *Server) handleGetSeason(w http.ResponseWriter, r *http.Request) {
	s.writeSeasonStatus(w, r, r.PathValue("id"))
}

func (s *Server) writeSeasonStatus(w http.ResponseWriter, r *http.Request, seasonID string) {
	q := query.GetSeasonStatusQuery{
		SeasonID:       seasonID,
		IncludeRewards: getQueryParamBool(r, "include_rewards"),
	}

	result, err := s.deps.GetSeasonStatusHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN API HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createSeasonRequest struct {
	Number       int            `json:"number"`
	Label        string         `json:"label"`
	StartsAt     *time.Time     `json:"starts_at,omitempty"`
	DurationDays int            `json:"duration_days"`
	Config       *configPayload `json:"config,omitempty"`
}

func (s *Server) handleCreateSeason(w http.ResponseWriter, r *http.Request) {
	var req createSeasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	cmd := command.CreateSeasonCommand{
		Number:   req.Number,
		Label:    req.Label,
		Duration: time.Duration(req.DurationDays) * 24 * time.Hour,
	}
	if req.StartsAt != nil {
		cmd.StartsAt = *req.StartsAt
	}
	if req.Config != nil {
		cfg := req.Config.toDomain()
		cmd.Config = &cfg
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.deps.CreateSeasonHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"season_id": result.SeasonID,
		"number":    int(result.Number),
		"starts_at": result.StartsAt,
		"ends_at":   result.EndsAt,
	})
}

type endSeasonRequest struct {
	EndedBy string `json:"ended_by"`
}

func (s *Server) handleEndSeason(w http.ResponseWriter, r *http.Request) {
	var req endSeasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	cmd := command.EndSeasonCommand{
		SeasonID: r.PathValue("id"),
		EndedBy:  req.EndedBy,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.deps.EndSeasonHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"season_id":       result.SeasonID,
		"number":          int(result.Number),
		"ended_at":        result.EndedAt,
		"total_creators":  result.TotalCreators,
		"rewards_granted": result.RewardsGranted,
	})
}

type overrideConfigRequest struct {
	OverriddenBy string        `json:"overridden_by"`
	Config       configPayload `json:"config"`
}

func (s *Server) handleOverrideConfig(w http.ResponseWriter, r *http.Request) {
	var req overrideConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	cmd := command.OverrideConfigCommand{
		SeasonID:     r.PathValue("id"),
		Config:       req.Config.toDomain(),
		OverriddenBy: req.OverriddenBy,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.deps.OverrideConfigHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recalcView(result))
}

type triggerRecalculationRequest struct {
	SeasonID string `json:"season_id,omitempty"`
}

func (s *Server) handleTriggerRecalculation(w http.ResponseWriter, r *http.Request) {
	var req triggerRecalculationRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
			return
		}
	}

	result, err := s.deps.RecalculateHandler.Handle(r.Context(), command.RecalculateSeasonCommand{
		SeasonID: req.SeasonID,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recalcView(result))
}

func (s *Server) handleLastRecalculation(w http.ResponseWriter, _ *http.Request) {
	last := s.deps.RecalculateHandler.LastRun()
	if last == nil {
		writeJSONError(w, http.StatusNotFound, "no_runs", "No recalculation pass has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, recalcView(last))
}

// recalcView shapes a pass result for the API.
func recalcView(r *command.RecalculateSeasonResult) map[string]interface{} {
	return map[string]interface{}{
		"run_id":           r.RunID,
		"season_id":        r.SeasonID,
		"started_at":       r.StartedAt,
		"completed_at":     r.CompletedAt,
		"duration":         r.Duration.String(),
		"creators_total":   r.CreatorsTotal,
		"creators_failed":  r.CreatorsFailed,
		"chunks_total":     r.ChunksTotal,
		"chunks_failed":    r.ChunksFailed,
		"malformed":        r.MalformedSignals,
		"triggered_by_job": r.TriggeredByJob,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG PAYLOAD
// ══════════════════════════════════════════════════════════════════════════════

// configPayload is the wire form of a scoring config. Durations are
// whole seconds, matching the stored JSONB documents.
type configPayload struct {
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

func (p configPayload) toDomain() season.Config {
	cfg := season.Config{
		Weights: season.Weights{
			Gift:     p.WeightGift,
			Battle:   p.WeightBattle,
			Unique:   p.WeightUnique,
			Momentum: p.WeightMomentum,
		},
		WhaleThresholdShare:        p.WhaleThresholdShare,
		WhaleDiminishingMultiplier: p.WhaleDiminishingMultiplier,
		DecayWindow:                time.Duration(p.DecayWindowSeconds) * time.Second,
		DecayFloor:                 p.DecayFloor,
		RecentWindow:               time.Duration(p.RecentWindowSeconds) * time.Second,
		RecentBoost:                p.RecentBoost,
		MomentumWindow:             time.Duration(p.MomentumWindowSeconds) * time.Second,
		MomentumEdgeWeight:         p.MomentumEdgeWeight,
		BattleScoreCap:             p.BattleScoreCap,
		TournamentMultiplier:       p.TournamentMultiplier,
		WinBonuses:                 make(map[season.TeamBracket]float64, len(p.WinBonuses)),
	}
	for bracket, bonus := range p.WinBonuses {
		cfg.WinBonuses[season.TeamBracket(bracket)] = bonus
	}
	return cfg
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError translates domain errors into HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, shared.ErrRecalcInFlight):
		writeJSONError(w, http.StatusConflict, "recalculation_in_flight", err.Error())
	case shared.IsConflict(err),
		errors.Is(err, shared.ErrAlreadyExists),
		errors.Is(err, shared.ErrInvalidState),
		errors.Is(err, shared.ErrStateTransition),
		errors.Is(err, shared.ErrImmutable):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrEmptyValue):
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		s.logger.Error("request failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
