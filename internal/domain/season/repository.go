package season

import (
	"context"
	"time"
)

// SeasonRepository - порт хранилища сезонов.
// Реализация живёт в инфраструктурном слое (PostgreSQL).
type SeasonRepository interface {
	// Create сохраняет новый сезон. Возвращает ErrActiveSeasonExists,
	// если активный сезон уже есть: инвариант единственности активного
	// сезона обеспечивается на уровне хранилища.
	Create(ctx context.Context, s *Season) error

	// Update сохраняет изменения существующего сезона.
	Update(ctx context.Context, s *Season) error

	// GetByID возвращает сезон по идентификатору.
	GetByID(ctx context.Context, id string) (*Season, error)

	// GetActive возвращает единственный активный сезон.
	// Возвращает ErrNoActiveSeason, если такого нет.
	GetActive(ctx context.Context) (*Season, error)

	// GetByNumber возвращает сезон по порядковому номеру.
	GetByNumber(ctx context.Context, number Number) (*Season, error)

	// List возвращает все сезоны от новых к старым.
	List(ctx context.Context) ([]*Season, error)
}

// RewardRepository - порт неизменяемого журнала сезонных наград.
type RewardRepository interface {
	// GrantBatch записывает награды одним батчем. Повторная запись для
	// пары (сезон, стример) возвращает ErrRewardAlreadyExists.
	GrantBatch(ctx context.Context, rewards []*SeasonalReward) error

	// GetBySeason возвращает все награды сезона (по возрастанию ранга).
	GetBySeason(ctx context.Context, seasonID string) ([]*SeasonalReward, error)

	// GetByCreator возвращает историю наград стримера по сезонам.
	GetByCreator(ctx context.Context, creatorID string) ([]*SeasonalReward, error)
}

// RecalcLock - порт межпроцессной блокировки пересчёта.
// Гарантирует: не более одного прохода пересчёта на сезон одновременно.
type RecalcLock interface {
	// Acquire захватывает блокировку сезона на срок ttl.
	// Возвращает ErrRecalcInFlight, если живая блокировка уже есть;
	// протухшую блокировку упавшего процесса можно перехватить.
	Acquire(ctx context.Context, seasonID, holderID string, ttl time.Duration) error

	// Release снимает блокировку, если её держит holderID.
	Release(ctx context.Context, seasonID, holderID string) error
}
