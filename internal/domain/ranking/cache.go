package ranking

import (
	"context"
	"time"
)

// Cache - порт горячей проекции лидерборда (Redis).
// Проекция производна от записей в основном хранилище и может быть
// потеряна без ущерба: следующий проход пересчёта восстановит её.
type Cache interface {
	// Replace атомарно заменяет проекцию сезона отранжированными записями.
	Replace(ctx context.Context, seasonID string, entries []*Entry, ttl time.Duration) error

	// GetTop возвращает первые limit записей проекции (nil при промахе).
	GetTop(ctx context.Context, seasonID string, limit int) ([]*Entry, error)

	// GetCreator возвращает запись стримера из проекции (nil при промахе).
	GetCreator(ctx context.Context, seasonID, creatorID string) (*Entry, error)

	// Invalidate сбрасывает проекцию сезона.
	Invalidate(ctx context.Context, seasonID string) error
}
