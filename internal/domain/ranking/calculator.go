package ranking

import (
	"github.com/lumen-live/season-ranking/internal/domain/season"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE SCORE
// ══════════════════════════════════════════════════════════════════════════════

// Calculator сворачивает подытоги в композитный счёт.
// Чистая взвешенная сумма; веса приходят из конфига сезона и
// провалидированы на этапе его конструирования.
type Calculator struct{}

// NewCalculator создаёт калькулятор.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Composite возвращает композитный счёт стримера.
// Результат прижимается к нулю снизу: отрицательный рейтинг не
// существует, какой бы ни была комбинация весов и подытогов.
func (c *Calculator) Composite(cfg season.Config, s Subtotals) float64 {
	score := cfg.Weights.Gift*s.Gift +
		cfg.Weights.Battle*s.Battle +
		cfg.Weights.Unique*float64(s.UniqueSupporters) +
		cfg.Weights.Momentum*s.Momentum

	if score < 0 {
		return 0
	}
	return score
}
