package season

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEASONAL REWARD
// ══════════════════════════════════════════════════════════════════════════════

// SeasonalReward - неизменяемая запись о награде стримера за сезон.
// Создаётся ровно один раз на пару (сезон, стример) при заморозке
// сезона и после этого не редактируется: это исторический факт,
// а не живое состояние.
type SeasonalReward struct {
	// ID - уникальный идентификатор записи (UUID).
	ID string

	// SeasonID - сезон, за который выдана награда.
	SeasonID string

	// CreatorID - стример-получатель.
	CreatorID string

	// Tier - финальный тир стримера.
	Tier TierName

	// FinalRank - финальный плотный ранг.
	FinalRank int

	// FinalScore - финальный композитный счёт.
	FinalScore float64

	// GrantedAt - момент выдачи (момент заморозки сезона).
	GrantedAt time.Time
}

// NewSeasonalReward создаёт запись награды с валидацией.
func NewSeasonalReward(seasonID, creatorID string, tier TierName, finalRank int, finalScore float64, grantedAt time.Time) (*SeasonalReward, error) {
	if strings.TrimSpace(seasonID) == "" {
		return nil, fmt.Errorf("%w: season ID", shared.ErrEmptyValue)
	}
	if strings.TrimSpace(creatorID) == "" {
		return nil, fmt.Errorf("%w: creator ID", shared.ErrEmptyValue)
	}
	if strings.TrimSpace(string(tier)) == "" {
		return nil, fmt.Errorf("%w: tier name", shared.ErrEmptyValue)
	}
	if finalRank < 1 {
		return nil, fmt.Errorf("%w: final rank must be >= 1", shared.ErrInvalidInput)
	}
	if finalScore < 0 {
		return nil, fmt.Errorf("%w: final score", shared.ErrNegativeValue)
	}

	return &SeasonalReward{
		ID:         uuid.New().String(),
		SeasonID:   seasonID,
		CreatorID:  creatorID,
		Tier:       tier,
		FinalRank:  finalRank,
		FinalScore: finalScore,
		GrantedAt:  grantedAt.UTC(),
	}, nil
}

// String возвращает строковое представление для логирования.
func (r *SeasonalReward) String() string {
	return fmt.Sprintf("Reward{creator=%s tier=%s rank=%d}", r.CreatorID, r.Tier, r.FinalRank)
}
