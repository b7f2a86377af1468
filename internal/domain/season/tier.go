package season

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD TIERS
// ══════════════════════════════════════════════════════════════════════════════

// TierName представляет имя наградного тира.
type TierName string

// Стандартные тиры сезона. Таблица конкретного сезона может
// использовать собственный набор имён.
const (
	TierBronze   TierName = "BRONZE"
	TierSilver   TierName = "SILVER"
	TierGold     TierName = "GOLD"
	TierPlatinum TierName = "PLATINUM"
	TierDiamond  TierName = "DIAMOND"
)

// String возвращает строковое представление тира.
func (t TierName) String() string {
	return string(t)
}

// Tier - один наградной диапазон: полуинтервал [MinScore, MaxScore)
// по композитному счёту. Верхний тир открыт сверху (MaxScore < 0).
type Tier struct {
	// Name - имя тира.
	Name TierName

	// MinScore - нижняя граница диапазона (включительно).
	MinScore float64

	// MaxScore - верхняя граница диапазона (исключительно).
	// Отрицательное значение означает "без верхней границы".
	MaxScore float64
}

// Unbounded возвращает true для открытого сверху тира.
func (t Tier) Unbounded() bool {
	return t.MaxScore < 0
}

// Contains проверяет попадание счёта в диапазон тира.
func (t Tier) Contains(score float64) bool {
	if score < t.MinScore {
		return false
	}
	return t.Unbounded() || score < t.MaxScore
}

// TierTable - упорядоченная по возрастанию таблица тиров сезона.
// Валидная таблица покрывает [0, +inf) без дыр и перекрытий, поэтому
// назначение тира тотально: любой неотрицательный счёт попадает
// ровно в один тир.
type TierTable struct {
	tiers []Tier
}

// NewTierTable строит таблицу из списка тиров с валидацией.
func NewTierTable(tiers []Tier) (TierTable, error) {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinScore < sorted[j].MinScore
	})

	tt := TierTable{tiers: sorted}
	if err := tt.Validate(); err != nil {
		return TierTable{}, err
	}
	return tt, nil
}

// DefaultTierTable возвращает таблицу тиров по умолчанию.
func DefaultTierTable() TierTable {
	tt, _ := NewTierTable([]Tier{
		{Name: TierBronze, MinScore: 0, MaxScore: 1000},
		{Name: TierSilver, MinScore: 1000, MaxScore: 5000},
		{Name: TierGold, MinScore: 5000, MaxScore: 20000},
		{Name: TierPlatinum, MinScore: 20000, MaxScore: 50000},
		{Name: TierDiamond, MinScore: 50000, MaxScore: -1},
	})
	return tt
}

// Validate проверяет инварианты таблицы: непустая, первый тир
// начинается с нуля, диапазоны смежны без дыр и перекрытий,
// последний тир открыт сверху.
func (tt TierTable) Validate() error {
	if len(tt.tiers) == 0 {
		return fmt.Errorf("%w: tier table is empty", shared.ErrInvalidTierBands)
	}
	if tt.tiers[0].MinScore != 0 {
		return fmt.Errorf("%w: lowest tier must start at 0, got %.2f", shared.ErrInvalidTierBands, tt.tiers[0].MinScore)
	}

	for i, tier := range tt.tiers {
		if strings.TrimSpace(string(tier.Name)) == "" {
			return fmt.Errorf("%w: tier %d has empty name", shared.ErrInvalidTierBands, i)
		}

		last := i == len(tt.tiers)-1
		if last {
			if !tier.Unbounded() {
				return fmt.Errorf("%w: top tier %q must be open-ended", shared.ErrInvalidTierBands, tier.Name)
			}
			continue
		}
		if tier.Unbounded() {
			return fmt.Errorf("%w: only the top tier may be open-ended, %q is not last", shared.ErrInvalidTierBands, tier.Name)
		}
		if tier.MaxScore <= tier.MinScore {
			return fmt.Errorf("%w: tier %q has empty range", shared.ErrInvalidTierBands, tier.Name)
		}
		if tt.tiers[i+1].MinScore != tier.MaxScore {
			return fmt.Errorf("%w: gap or overlap between %q and %q", shared.ErrInvalidTierBands, tier.Name, tt.tiers[i+1].Name)
		}
	}
	return nil
}

// Assign возвращает тир для композитного счёта.
// Отрицательный счёт невозможен по построению формулы; если он всё же
// пришёл, это ошибка данных, а не повод молча вернуть нижний тир.
func (tt TierTable) Assign(score float64) (TierName, error) {
	if score < 0 {
		return "", fmt.Errorf("%w: score %.2f is negative", shared.ErrScoreBelowBands, score)
	}
	for _, tier := range tt.tiers {
		if tier.Contains(score) {
			return tier.Name, nil
		}
	}
	// Недостижимо для валидной таблицы: она покрывает [0, +inf).
	return "", fmt.Errorf("%w: score %.2f matched no tier", shared.ErrScoreBelowBands, score)
}

// Tiers возвращает копию списка тиров (от нижнего к верхнему).
func (tt TierTable) Tiers() []Tier {
	out := make([]Tier, len(tt.tiers))
	copy(out, tt.tiers)
	return out
}

// Len возвращает количество тиров в таблице.
func (tt TierTable) Len() int {
	return len(tt.tiers)
}
