// Package shared contains common domain types, errors and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the season-ranking subsystem.
const (
	// Season lifecycle events
	EventSeasonCreated        EventType = "season.created"
	EventSeasonEnded          EventType = "season.ended"
	EventSeasonConfigOverride EventType = "season.config_overridden"

	// Ranking events
	EventRecalculationStarted   EventType = "ranking.recalculation_started"
	EventRecalculationCompleted EventType = "ranking.recalculation_completed"
	EventRankChanged            EventType = "ranking.rank_changed"

	// Reward events
	EventRewardGranted EventType = "reward.granted"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// newBaseEvent creates a BaseEvent stamped with the current UTC time.
func newBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SEASON EVENTS
// ─────────────────────────────────────────────────────────────────────────────

// SeasonCreatedEvent is emitted when a new season becomes active.
type SeasonCreatedEvent struct {
	BaseEvent
	SeasonNumber int       `json:"season_number"`
	Label        string    `json:"label"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
}

// NewSeasonCreatedEvent creates a SeasonCreatedEvent.
func NewSeasonCreatedEvent(seasonID string, number int, label string, startsAt, endsAt time.Time) *SeasonCreatedEvent {
	return &SeasonCreatedEvent{
		BaseEvent:    newBaseEvent(EventSeasonCreated, seasonID),
		SeasonNumber: number,
		Label:        label,
		StartsAt:     startsAt,
		EndsAt:       endsAt,
	}
}

// Payload implements Event interface.
func (e *SeasonCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"season_id":     e.AggregateId,
		"season_number": e.SeasonNumber,
		"label":         e.Label,
		"starts_at":     e.StartsAt,
		"ends_at":       e.EndsAt,
	}
}

// SeasonEndedEvent is emitted when a season is frozen. The reward-fulfillment
// process consumes this event to grant badges and assets.
type SeasonEndedEvent struct {
	BaseEvent
	SeasonNumber  int `json:"season_number"`
	TotalCreators int `json:"total_creators"`
	RewardsCount  int `json:"rewards_count"`
}

// NewSeasonEndedEvent creates a SeasonEndedEvent.
func NewSeasonEndedEvent(seasonID string, number, totalCreators, rewardsCount int) *SeasonEndedEvent {
	return &SeasonEndedEvent{
		BaseEvent:     newBaseEvent(EventSeasonEnded, seasonID),
		SeasonNumber:  number,
		TotalCreators: totalCreators,
		RewardsCount:  rewardsCount,
	}
}

// Payload implements Event interface.
func (e *SeasonEndedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"season_id":      e.AggregateId,
		"season_number":  e.SeasonNumber,
		"total_creators": e.TotalCreators,
		"rewards_count":  e.RewardsCount,
	}
}

// SeasonConfigOverrideEvent is emitted when an administrator overrides the
// config of an active season. A full recalculation always follows.
type SeasonConfigOverrideEvent struct {
	BaseEvent
	OverriddenBy string `json:"overridden_by"`
}

// NewSeasonConfigOverrideEvent creates a SeasonConfigOverrideEvent.
func NewSeasonConfigOverrideEvent(seasonID, overriddenBy string) *SeasonConfigOverrideEvent {
	return &SeasonConfigOverrideEvent{
		BaseEvent:    newBaseEvent(EventSeasonConfigOverride, seasonID),
		OverriddenBy: overriddenBy,
	}
}

// Payload implements Event interface.
func (e *SeasonConfigOverrideEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"season_id":     e.AggregateId,
		"overridden_by": e.OverriddenBy,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// RANKING EVENTS
// ─────────────────────────────────────────────────────────────────────────────

// RecalculationCompletedEvent is emitted after a full pass over a season.
type RecalculationCompletedEvent struct {
	BaseEvent
	RunID          string        `json:"run_id"`
	EntriesTotal   int           `json:"entries_total"`
	EntriesFailed  int           `json:"entries_failed"`
	ChunksTotal    int           `json:"chunks_total"`
	ChunksFailed   int           `json:"chunks_failed"`
	Duration       time.Duration `json:"duration"`
	TriggeredByJob bool          `json:"triggered_by_job"`
}

// NewRecalculationCompletedEvent creates a RecalculationCompletedEvent.
func NewRecalculationCompletedEvent(seasonID, runID string, entriesTotal, entriesFailed, chunksTotal, chunksFailed int, duration time.Duration, byJob bool) *RecalculationCompletedEvent {
	return &RecalculationCompletedEvent{
		BaseEvent:      newBaseEvent(EventRecalculationCompleted, seasonID),
		RunID:          runID,
		EntriesTotal:   entriesTotal,
		EntriesFailed:  entriesFailed,
		ChunksTotal:    chunksTotal,
		ChunksFailed:   chunksFailed,
		Duration:       duration,
		TriggeredByJob: byJob,
	}
}

// Payload implements Event interface.
func (e *RecalculationCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"season_id":      e.AggregateId,
		"run_id":         e.RunID,
		"entries_total":  e.EntriesTotal,
		"entries_failed": e.EntriesFailed,
		"chunks_total":   e.ChunksTotal,
		"chunks_failed":  e.ChunksFailed,
		"duration":       e.Duration.String(),
	}
}

// RankChangedEvent is emitted for a creator whose dense rank moved between
// two completed passes.
type RankChangedEvent struct {
	BaseEvent
	SeasonID string `json:"season_id"`
	OldRank  int    `json:"old_rank"`
	NewRank  int    `json:"new_rank"`
}

// NewRankChangedEvent creates a RankChangedEvent. The aggregate is the creator.
func NewRankChangedEvent(creatorID, seasonID string, oldRank, newRank int) *RankChangedEvent {
	return &RankChangedEvent{
		BaseEvent: newBaseEvent(EventRankChanged, creatorID),
		SeasonID:  seasonID,
		OldRank:   oldRank,
		NewRank:   newRank,
	}
}

// Payload implements Event interface.
func (e *RankChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"creator_id": e.AggregateId,
		"season_id":  e.SeasonID,
		"old_rank":   e.OldRank,
		"new_rank":   e.NewRank,
	}
}

// RewardGrantedEvent is emitted once per (season, creator) at season end.
type RewardGrantedEvent struct {
	BaseEvent
	SeasonID string `json:"season_id"`
	Tier     string `json:"tier"`
	Rank     int    `json:"rank"`
}

// NewRewardGrantedEvent creates a RewardGrantedEvent. The aggregate is the creator.
func NewRewardGrantedEvent(creatorID, seasonID, tier string, rank int) *RewardGrantedEvent {
	return &RewardGrantedEvent{
		BaseEvent: newBaseEvent(EventRewardGranted, creatorID),
		SeasonID:  seasonID,
		Tier:      tier,
		Rank:      rank,
	}
}

// Payload implements Event interface.
func (e *RewardGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"creator_id": e.AggregateId,
		"season_id":  e.SeasonID,
		"tier":       e.Tier,
		"rank":       e.Rank,
	}
}

// EventPublisher publishes domain events to interested subscribers.
// The implementation lives in the infrastructure layer.
type EventPublisher interface {
	// Publish delivers the event to all subscribers of its type.
	Publish(event Event) error
}

// EventHandler processes a single domain event.
type EventHandler func(event Event)
