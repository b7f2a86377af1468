package ranking

import (
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK SEQUENCER
// ══════════════════════════════════════════════════════════════════════════════

// Sequencer назначает плотные ранги по тотальному порядку.
//
// Порядок сравнения:
//  1. композитный счёт, по убыванию;
//  2. различные саппортеры, по убыванию;
//  3. момент последнего пересчёта, по возрастанию (кто раньше
//     зафиксировал счёт, тот выше);
//  4. идентификатор стримера, по возрастанию.
//
// Последний критерий делает порядок тотальным, а ранги -
// детерминированными: два прохода по одним данным дают один и тот же
// рейтинг. Занят каждый номер от 1 до N, разделённых мест нет.
type Sequencer struct{}

// NewSequencer создаёт секвенсер.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Sequence сортирует записи на месте и проставляет ранги 1..N.
func (s *Sequencer) Sequence(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
	for i, e := range entries {
		e.Rank = Rank(i + 1)
	}
}

// Less возвращает true, если a стоит в рейтинге выше b.
func Less(a, b *Entry) bool {
	if a.CompositeScore != b.CompositeScore {
		return a.CompositeScore > b.CompositeScore
	}
	if a.Subtotals.UniqueSupporters != b.Subtotals.UniqueSupporters {
		return a.Subtotals.UniqueSupporters > b.Subtotals.UniqueSupporters
	}
	if !a.LastRecalculatedAt.Equal(b.LastRecalculatedAt) {
		return a.LastRecalculatedAt.Before(b.LastRecalculatedAt)
	}
	return a.CreatorID < b.CreatorID
}
