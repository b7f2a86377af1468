// Package season содержит доменную модель сезона Lumen Season Ranking.
// Сезон - это соревновательный период, в рамках которого накапливаются
// сигналы вовлечённости стримеров и пересчитывается рейтинг.
// Инвариант всей системы: в любой момент времени активен не более
// одного сезона, и завершённый сезон необратим.
package season

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-live/season-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Status представляет стадию жизненного цикла сезона.
type Status string

const (
	// StatusPending - сезон создан, но ещё не стартовал.
	StatusPending Status = "PENDING"
	// StatusActive - сезон идёт, сигналы накапливаются, рейтинг пересчитывается.
	StatusActive Status = "ACTIVE"
	// StatusEnded - сезон завершён, финальный рейтинг заморожен. Необратимо.
	StatusEnded Status = "ENDED"
)

// IsValid проверяет, что статус известен системе.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusEnded:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода между статусами.
// ENDED - терминальный статус: из него переходов нет.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusActive
	case StatusActive:
		return target == StatusEnded
	default:
		return false
	}
}

// String возвращает строковое представление статуса.
func (s Status) String() string {
	return string(s)
}

// ParseStatus разбирает строку в Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown season status %q", shared.ErrInvalidInput, raw)
	}
	return s, nil
}

// Number представляет порядковый номер сезона (начиная с 1).
type Number int

// IsValid проверяет, что номер положительный.
func (n Number) IsValid() bool {
	return n > 0
}

// String возвращает строковое представление номера.
func (n Number) String() string {
	return fmt.Sprintf("S%d", int(n))
}

// ══════════════════════════════════════════════════════════════════════════════
// SEASON ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Season представляет один соревновательный период.
// Создаётся менеджером жизненного цикла, завершается ровно один раз.
type Season struct {
	// ID - уникальный идентификатор сезона (UUID).
	ID string

	// Number - порядковый номер сезона.
	Number Number

	// Label - человекочитаемое название ("Season 7: Aurora").
	Label string

	// StartsAt - момент начала сезона.
	StartsAt time.Time

	// EndsAt - запланированный момент окончания сезона.
	EndsAt time.Time

	// Status - текущая стадия жизненного цикла.
	Status Status

	// Config - серверные веса и пороги скоринга этого сезона.
	Config Config

	// Tiers - таблица наградных диапазонов этого сезона.
	Tiers TierTable

	// EndedAt - фактический момент заморозки (nil, пока сезон не завершён).
	EndedAt *time.Time

	// CreatedAt / UpdatedAt - служебные отметки времени.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New создаёт новый активный сезон с валидацией всех инвариантов.
// Конфигурация и таблица тиров валидируются на этапе конструирования:
// невалидный сезон не должен существовать в принципе.
func New(number Number, label string, startsAt time.Time, duration time.Duration, cfg Config, tiers TierTable) (*Season, error) {
	if !number.IsValid() {
		return nil, fmt.Errorf("%w: season number must be positive", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(label) == "" {
		return nil, fmt.Errorf("%w: season label", shared.ErrEmptyValue)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: season duration must be positive", shared.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := tiers.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Season{
		ID:        uuid.New().String(),
		Number:    number,
		Label:     label,
		StartsAt:  startsAt.UTC(),
		EndsAt:    startsAt.UTC().Add(duration),
		Status:    StatusActive,
		Config:    cfg,
		Tiers:     tiers,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsActive возвращает true, если сезон идёт прямо сейчас.
func (s *Season) IsActive() bool {
	return s.Status == StatusActive
}

// HasEnded возвращает true, если сезон заморожен.
func (s *Season) HasEnded() bool {
	return s.Status == StatusEnded
}

// End переводит сезон в терминальный статус ENDED.
// Вызывается ровно один раз, только после записи финальных рангов.
func (s *Season) End(at time.Time) error {
	if !s.Status.CanTransitionTo(StatusEnded) {
		if s.Status == StatusEnded {
			return shared.ErrSeasonAlreadyEnded
		}
		return shared.ErrSeasonNotActive
	}

	endedAt := at.UTC()
	s.Status = StatusEnded
	s.EndedAt = &endedAt
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// OverrideConfig заменяет конфигурацию активного сезона.
// Единственный легальный способ изменить конфиг после старта; вызывающая
// сторона обязана запустить полный пересчёт сразу после замены.
func (s *Season) OverrideConfig(cfg Config) error {
	if s.Status != StatusActive {
		return shared.ErrSeasonNotActive
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.Config = cfg
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Remaining возвращает оставшееся время сезона (0, если срок вышел).
func (s *Season) Remaining(now time.Time) time.Duration {
	if !s.IsActive() {
		return 0
	}
	left := s.EndsAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Contains проверяет, попадает ли момент времени в границы сезона.
func (s *Season) Contains(t time.Time) bool {
	return !t.Before(s.StartsAt) && t.Before(s.EndsAt)
}

// String возвращает строковое представление для логирования.
func (s *Season) String() string {
	return fmt.Sprintf("Season{%s %q status=%s}", s.Number, s.Label, s.Status)
}

// ══════════════════════════════════════════════════════════════════════════════
// SEASON CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// Context - явно передаваемый контекст активного сезона.
// Резолвится один раз на проход пересчёта или на запрос и передаётся
// во все компоненты пайплайна. Глобального мутабельного "текущего
// сезона" в системе нет намеренно.
type Context struct {
	// SeasonID - идентификатор сезона.
	SeasonID string

	// Number - порядковый номер.
	Number Number

	// Config - конфигурация на момент резолва.
	Config Config

	// Tiers - таблица тиров на момент резолва.
	Tiers TierTable

	// Now - момент резолва; все вычисления decay в одном проходе
	// используют одну и ту же точку отсчёта.
	Now time.Time
}

// NewContext строит контекст пересчёта из активного сезона.
// Несуществующий или неактивный сезон - фатальная предпосылка для
// всего пайплайна, а не ошибка уровня отдельного стримера.
func NewContext(s *Season, now time.Time) (Context, error) {
	if s == nil {
		return Context{}, shared.ErrSeasonNotFound
	}
	if !s.IsActive() {
		return Context{}, shared.ErrSeasonNotActive
	}

	return Context{
		SeasonID: s.ID,
		Number:   s.Number,
		Config:   s.Config,
		Tiers:    s.Tiers,
		Now:      now.UTC(),
	}, nil
}
