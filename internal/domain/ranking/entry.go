// Package ranking содержит доменную модель рейтинга стримеров:
// записи лидерборда, сигналы вовлечённости и чистый скоринговый
// пайплайн (агрегация подытогов, композитный счёт, плотные ранги).
// Весь скоринг детерминирован: один и тот же набор сигналов при одном
// и том же конфиге всегда даёт один и тот же результат.
package ranking

import (
	"fmt"
	"strings"
	"time"

	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию стримера в рейтинге сезона.
// Ранги плотные: после пересчёта занят каждый номер от 1 до N,
// разделённых позиций нет.
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop10 возвращает true для первой десятки.
func (r Rank) IsTop10() bool {
	return r >= 1 && r <= 10
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// Subtotals - четыре подытога композитного счёта одного стримера.
// Вычисляются агрегатором из сырых сигналов; каждый подытог
// неотрицателен по построению.
type Subtotals struct {
	// Gift - подытог подарков: гашение китов, затем decay.
	Gift float64

	// Battle - подытог батлов: cap, турнирный буст, бонус за победу, decay.
	Battle float64

	// UniqueSupporters - количество различных саппортеров за сезон.
	UniqueSupporters int

	// Momentum - взвешенная по свежести активность скользящего окна.
	Momentum float64
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry - запись стримера в рейтинге сезона.
// Пересоздаётся целиком на каждом проходе пересчёта; после заморозки
// сезона становится неизменяемой.
type Entry struct {
	// SeasonID - сезон записи.
	SeasonID string

	// CreatorID - стример.
	CreatorID string

	// Subtotals - подытоги последнего пересчёта.
	Subtotals Subtotals

	// CompositeScore - итоговый взвешенный счёт (>= 0).
	CompositeScore float64

	// Tier - наградной тир по таблице сезона.
	Tier season.TierName

	// Rank - плотный ранг (0 до первого завершённого прохода).
	Rank Rank

	// LastRecalculatedAt - момент прохода, записавшего эту запись.
	LastRecalculatedAt time.Time
}

// NewEntry создаёт запись рейтинга с валидацией идентификаторов.
func NewEntry(seasonID, creatorID string) (*Entry, error) {
	if strings.TrimSpace(seasonID) == "" {
		return nil, fmt.Errorf("%w: season ID", shared.ErrEmptyValue)
	}
	if strings.TrimSpace(creatorID) == "" {
		return nil, fmt.Errorf("%w: creator ID", shared.ErrEmptyValue)
	}
	return &Entry{
		SeasonID:  seasonID,
		CreatorID: creatorID,
	}, nil
}

// ApplyScore записывает результат скоринга в запись.
// Ранг на этом этапе ещё неизвестен: он назначается отдельным
// финальным проходом после скоринга всех стримеров.
func (e *Entry) ApplyScore(subtotals Subtotals, composite float64, tier season.TierName, at time.Time) {
	e.Subtotals = subtotals
	e.CompositeScore = composite
	e.Tier = tier
	e.LastRecalculatedAt = at.UTC()
}

// String возвращает строковое представление для логирования.
func (e *Entry) String() string {
	return fmt.Sprintf("Entry{creator=%s score=%.2f tier=%s rank=%s}", e.CreatorID, e.CompositeScore, e.Tier, e.Rank)
}
