package ranking

import (
	"time"

	"github.com/lumen-live/season-ranking/internal/domain/season"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// Aggregator вычисляет подытоги стримера из сырых сигналов.
// Чистая функция от (контекст сезона, сигналы): ни состояния, ни I/O.
type Aggregator struct{}

// NewAggregator создаёт агрегатор.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AggregateResult - результат агрегации одного стримера.
type AggregateResult struct {
	Subtotals Subtotals

	// MalformedSignals - количество пропущенных повреждённых записей.
	// Повреждённая запись не роняет стримера и тем более проход:
	// она исключается из суммы и учитывается в статистике прохода.
	MalformedSignals int
}

// Aggregate вычисляет все четыре подытога стримера.
func (a *Aggregator) Aggregate(sctx season.Context, signals CreatorSignals) AggregateResult {
	var res AggregateResult

	gifts := make([]GiftRecord, 0, len(signals.Gifts))
	for _, g := range signals.Gifts {
		if !g.IsValid() {
			res.MalformedSignals++
			continue
		}
		gifts = append(gifts, g)
	}

	battles := make([]BattleRecord, 0, len(signals.Battles))
	for _, b := range signals.Battles {
		if !b.IsValid() {
			res.MalformedSignals++
			continue
		}
		if !b.Ranked {
			continue
		}
		battles = append(battles, b)
	}

	res.Subtotals = Subtotals{
		Gift:             a.giftSubtotal(sctx, gifts),
		Battle:           a.battleSubtotal(sctx, battles),
		UniqueSupporters: a.uniqueSupporters(gifts),
		Momentum:         a.momentum(sctx, gifts, battles),
	}
	return res
}

// giftSubtotal считает подытог подарков.
//
// Порядок операций несущий:
//  1. гашение китов - по суммарному вкладу каждого саппортера
//     относительно пула стримера, ДО суммирования;
//  2. временной decay - по каждому отдельному подарку.
//
// Гашение выражается масштабом dampened/raw на саппортера, чтобы
// каждый подарок сохранил собственный decay-фактор.
func (a *Aggregator) giftSubtotal(sctx season.Context, gifts []GiftRecord) float64 {
	if len(gifts) == 0 {
		return 0
	}

	perSupporter := make(map[string]float64)
	var pool float64
	for _, g := range gifts {
		perSupporter[g.SupporterID] += g.Amount
		pool += g.Amount
	}

	// Масштаб гашения на саппортера. При нулевом пуле гашение не
	// применяется (делить не на что, и гасить нечего).
	scale := make(map[string]float64, len(perSupporter))
	threshold := sctx.Config.WhaleThresholdShare * pool
	for supporter, total := range perSupporter {
		if pool <= 0 || total <= threshold {
			scale[supporter] = 1.0
			continue
		}
		dampened := threshold + (total-threshold)*sctx.Config.WhaleDiminishingMultiplier
		scale[supporter] = dampened / total
	}

	var subtotal float64
	for _, g := range gifts {
		age := sctx.Now.Sub(g.OccurredAt)
		subtotal += g.Amount * scale[g.SupporterID] * sctx.Config.DecayFactor(age)
	}
	return subtotal
}

// battleSubtotal считает подытог батлов.
//
// На каждый батл: cap сырых очков, затем турнирный множитель, затем
// бонус за победу по размерной категории, и весь вклад целиком
// умножается на decay-фактор батла.
func (a *Aggregator) battleSubtotal(sctx season.Context, battles []BattleRecord) float64 {
	var subtotal float64
	for _, b := range battles {
		contribution := b.RawScore
		if contribution > sctx.Config.BattleScoreCap {
			contribution = sctx.Config.BattleScoreCap
		}
		if b.Tournament {
			contribution *= sctx.Config.TournamentMultiplier
		}
		if b.Won {
			contribution += sctx.Config.WinBonus(season.BracketForTeamSize(b.TeamSize))
		}

		age := sctx.Now.Sub(b.OccurredAt)
		subtotal += contribution * sctx.Config.DecayFactor(age)
	}
	return subtotal
}

// uniqueSupporters считает различных саппортеров за весь сезон.
func (a *Aggregator) uniqueSupporters(gifts []GiftRecord) int {
	seen := make(map[string]struct{}, len(gifts))
	for _, g := range gifts {
		seen[g.SupporterID] = struct{}{}
	}
	return len(seen)
}

// momentum считает взвешенную по свежести активность momentum-окна.
// Событие - подарок (его ценность) или ranked-батл (его сырые очки с
// капом); вес события линейно падает от 1.0 сейчас до края окна.
func (a *Aggregator) momentum(sctx season.Context, gifts []GiftRecord, battles []BattleRecord) float64 {
	var momentum float64
	for _, g := range gifts {
		momentum += g.Amount * a.momentumWeight(sctx, g.OccurredAt)
	}
	for _, b := range battles {
		value := b.RawScore
		if value > sctx.Config.BattleScoreCap {
			value = sctx.Config.BattleScoreCap
		}
		momentum += value * a.momentumWeight(sctx, b.OccurredAt)
	}
	return momentum
}

func (a *Aggregator) momentumWeight(sctx season.Context, occurredAt time.Time) float64 {
	return sctx.Config.MomentumWeight(sctx.Now.Sub(occurredAt))
}
