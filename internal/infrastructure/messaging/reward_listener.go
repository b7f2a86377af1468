package messaging

import (
	"log/slog"
	"sync"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD FULFILLMENT LISTENER
// ══════════════════════════════════════════════════════════════════════════════

// PendingReward is a granted reward awaiting downstream fulfillment
// (badge issuance, asset delivery).
type PendingReward struct {
	CreatorID string `json:"creator_id"`
	SeasonID  string `json:"season_id"`
	Tier      string `json:"tier"`
	Rank      int    `json:"rank"`
}

// RewardFulfillmentListener collects RewardGrantedEvents into a
// pending queue for the fulfillment process. Grants are made durable
// in PostgreSQL before the events fire, so losing this queue on
// restart loses nothing: fulfillment can always re-read the reward
// ledger.
type RewardFulfillmentListener struct {
	mu      sync.Mutex
	pending []PendingReward
	logger  *slog.Logger
}

// NewRewardFulfillmentListener creates a new listener.
func NewRewardFulfillmentListener(logger *slog.Logger) *RewardFulfillmentListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &RewardFulfillmentListener{logger: logger}
}

// Attach subscribes the listener to the bus.
func (l *RewardFulfillmentListener) Attach(bus *InMemoryEventBus) error {
	if err := bus.Subscribe(shared.EventRewardGranted, l.onRewardGranted); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventSeasonEnded, l.onSeasonEnded)
}

func (l *RewardFulfillmentListener) onRewardGranted(event shared.Event) {
	e, ok := event.(*shared.RewardGrantedEvent)
	if !ok {
		return
	}

	l.mu.Lock()
	l.pending = append(l.pending, PendingReward{
		CreatorID: e.AggregateId,
		SeasonID:  e.SeasonID,
		Tier:      e.Tier,
		Rank:      e.Rank,
	})
	l.mu.Unlock()
}

func (l *RewardFulfillmentListener) onSeasonEnded(event shared.Event) {
	e, ok := event.(*shared.SeasonEndedEvent)
	if !ok {
		return
	}

	l.logger.Info("season ended, rewards queued for fulfillment",
		"season_id", e.AggregateId,
		"season_number", e.SeasonNumber,
		"rewards_count", e.RewardsCount,
	)
}

// Drain returns and clears the pending queue.
func (l *RewardFulfillmentListener) Drain() []PendingReward {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.pending
	l.pending = nil
	return out
}

// PendingCount returns the number of queued rewards.
func (l *RewardFulfillmentListener) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
