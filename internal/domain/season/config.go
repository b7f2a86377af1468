// Package season содержит доменную модель сезона Lumen Season Ranking.
package season

import (
	"fmt"
	"math"
	"time"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEAM BRACKETS
// ══════════════════════════════════════════════════════════════════════════════

// TeamBracket представляет размерную категорию команды в батле.
// Бонус за победу зависит от категории: победа полным составом
// ценится выше, чем победа один на один.
type TeamBracket string

const (
	// BracketSolo - батл 1x1.
	BracketSolo TeamBracket = "solo"
	// BracketDuo - батл 2x2.
	BracketDuo TeamBracket = "duo"
	// BracketSquad - батл 3x3 или 4x4.
	BracketSquad TeamBracket = "squad"
	// BracketRaid - батл 5x5 и больше.
	BracketRaid TeamBracket = "raid"
)

// BracketForTeamSize возвращает категорию для размера команды.
func BracketForTeamSize(size int) TeamBracket {
	switch {
	case size <= 1:
		return BracketSolo
	case size == 2:
		return BracketDuo
	case size <= 4:
		return BracketSquad
	default:
		return BracketRaid
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SEASON CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// Weights - веса четырёх подытогов композитного счёта.
// По соглашению сумма весов равна 1.0; это проверяется при
// конструировании конфига, а не в формуле.
type Weights struct {
	Gift     float64
	Battle   float64
	Unique   float64
	Momentum float64
}

// Sum возвращает сумму весов.
func (w Weights) Sum() float64 {
	return w.Gift + w.Battle + w.Unique + w.Momentum
}

// weightSumTolerance - допустимое отклонение суммы весов от 1.0.
const weightSumTolerance = 0.001

// Config - серверная конфигурация скоринга одного сезона.
// Иммутабельна после активации сезона; единственное исключение -
// административный override, за которым обязан следовать полный пересчёт.
// Динамических нетипизированных словарей весов в системе нет намеренно:
// конфиг - это явный валидируемый value object.
type Config struct {
	// Weights - веса подытогов (сумма = 1.0).
	Weights Weights

	// WhaleThresholdShare - доля пула подарков одного саппортера,
	// выше которой включается гашение (например, 0.35 = 35%).
	WhaleThresholdShare float64

	// WhaleDiminishingMultiplier - множитель для излишка над порогом.
	WhaleDiminishingMultiplier float64

	// DecayWindow - возраст, на котором decay-фактор достигает пола.
	DecayWindow time.Duration

	// DecayFloor - нижняя граница decay-фактора. Строго больше нуля:
	// старая активность теряет влияние, но не исчезает полностью.
	DecayFloor float64

	// RecentWindow - окно свежести: вклад моложе этого возраста
	// получает буст выше 1.0.
	RecentWindow time.Duration

	// RecentBoost - множитель свежести (>= 1.0).
	RecentBoost float64

	// MomentumWindow - скользящее окно подытога momentum.
	MomentumWindow time.Duration

	// MomentumEdgeWeight - вес события на дальнем краю momentum-окна
	// относительно события "прямо сейчас" (0..1].
	MomentumEdgeWeight float64

	// BattleScoreCap - потолок вклада одного батла (до турнирного буста).
	BattleScoreCap float64

	// TournamentMultiplier - множитель турнирных батлов (>= 1.0).
	TournamentMultiplier float64

	// WinBonuses - бонус за победу по размерной категории команды.
	WinBonuses map[TeamBracket]float64
}

// DefaultConfig возвращает конфигурацию сезона по умолчанию.
// Значения подобраны продюсерской командой; сезон может их переопределить.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Gift:     0.5,
			Battle:   0.3,
			Unique:   0.1,
			Momentum: 0.1,
		},
		WhaleThresholdShare:        0.35,
		WhaleDiminishingMultiplier: 0.5,
		DecayWindow:                30 * 24 * time.Hour,
		DecayFloor:                 0.1,
		RecentWindow:               48 * time.Hour,
		RecentBoost:                1.2,
		MomentumWindow:             7 * 24 * time.Hour,
		MomentumEdgeWeight:         0.3,
		BattleScoreCap:             10000,
		TournamentMultiplier:       1.5,
		WinBonuses: map[TeamBracket]float64{
			BracketSolo:  100,
			BracketDuo:   150,
			BracketSquad: 250,
			BracketRaid:  400,
		},
	}
}

// Validate проверяет инварианты конфигурации.
// Невалидный конфиг - фатальная ошибка конфигурации для всего прохода,
// а не ситуация, которую формула должна молча переживать.
func (c Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %.4f, want 1.0", shared.ErrInvalidSeasonConfig, c.Weights.Sum())
	}
	if c.Weights.Gift < 0 || c.Weights.Battle < 0 || c.Weights.Unique < 0 || c.Weights.Momentum < 0 {
		return fmt.Errorf("%w: weights must be non-negative", shared.ErrInvalidSeasonConfig)
	}
	if c.WhaleThresholdShare <= 0 || c.WhaleThresholdShare > 1 {
		return fmt.Errorf("%w: whale threshold share must be in (0, 1]", shared.ErrInvalidSeasonConfig)
	}
	if c.WhaleDiminishingMultiplier < 0 || c.WhaleDiminishingMultiplier > 1 {
		return fmt.Errorf("%w: whale diminishing multiplier must be in [0, 1]", shared.ErrInvalidSeasonConfig)
	}
	if c.DecayWindow <= 0 {
		return fmt.Errorf("%w: decay window must be positive", shared.ErrInvalidSeasonConfig)
	}
	if c.DecayFloor <= 0 || c.DecayFloor >= 1 {
		return fmt.Errorf("%w: decay floor must be in (0, 1)", shared.ErrInvalidSeasonConfig)
	}
	if c.RecentWindow < 0 || c.RecentWindow >= c.DecayWindow {
		return fmt.Errorf("%w: recent window must be shorter than decay window", shared.ErrInvalidSeasonConfig)
	}
	if c.RecentBoost < 1.0 {
		return fmt.Errorf("%w: recent boost must be >= 1.0", shared.ErrInvalidSeasonConfig)
	}
	if c.MomentumWindow <= 0 {
		return fmt.Errorf("%w: momentum window must be positive", shared.ErrInvalidSeasonConfig)
	}
	if c.MomentumEdgeWeight <= 0 || c.MomentumEdgeWeight > 1 {
		return fmt.Errorf("%w: momentum edge weight must be in (0, 1]", shared.ErrInvalidSeasonConfig)
	}
	if c.BattleScoreCap <= 0 {
		return fmt.Errorf("%w: battle score cap must be positive", shared.ErrInvalidSeasonConfig)
	}
	if c.TournamentMultiplier < 1.0 {
		return fmt.Errorf("%w: tournament multiplier must be >= 1.0", shared.ErrInvalidSeasonConfig)
	}
	for bracket, bonus := range c.WinBonuses {
		if bonus < 0 {
			return fmt.Errorf("%w: win bonus for bracket %q is negative", shared.ErrInvalidSeasonConfig, bracket)
		}
	}
	return nil
}

// WinBonus возвращает бонус за победу для размерной категории.
func (c Config) WinBonus(bracket TeamBracket) float64 {
	return c.WinBonuses[bracket]
}

// ══════════════════════════════════════════════════════════════════════════════
// TIME DECAY
// ══════════════════════════════════════════════════════════════════════════════

// DecayFactor возвращает временной множитель вклада с данным возрастом.
//
// Кривая:
//   - возраст внутри RecentWindow: RecentBoost (> 1.0, награда за свежесть);
//   - дальше: геометрическое затухание с полупериодом DecayWindow/4,
//     стартующее от 1.0 на границе окна свежести;
//   - возраст >= DecayWindow: ровно DecayFloor. Никогда не ноль.
//
// Функция монотонно не возрастает вне окна свежести и никогда не
// опускается ниже пола - оба свойства являются несущими для рейтинга.
func (c Config) DecayFactor(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	if age <= c.RecentWindow {
		return c.RecentBoost
	}
	if age >= c.DecayWindow {
		return c.DecayFloor
	}

	halfLife := c.DecayWindow / 4
	decayed := math.Pow(0.5, float64(age-c.RecentWindow)/float64(halfLife))
	if decayed < c.DecayFloor {
		return c.DecayFloor
	}
	return decayed
}

// MomentumWeight возвращает вес события momentum-окна по его возрасту.
// Линейная интерполяция: событие "прямо сейчас" весит 1.0, событие на
// краю окна - MomentumEdgeWeight, событие старше окна - 0.
func (c Config) MomentumWeight(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	if age >= c.MomentumWindow {
		return 0
	}

	ageRatio := float64(age) / float64(c.MomentumWindow)
	return 1.0 - ageRatio*(1.0-c.MomentumEdgeWeight)
}
