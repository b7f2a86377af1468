package ranking

import (
	"context"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT SIGNALS
// ══════════════════════════════════════════════════════════════════════════════

// GiftRecord - один зафиксированный подарок стримеру.
// Сырой сигнал: пишется трактом приёма платежей, читается пересчётом.
type GiftRecord struct {
	// SeasonID - сезон, в котором сделан подарок.
	SeasonID string

	// CreatorID - стример-получатель.
	CreatorID string

	// SupporterID - саппортер-отправитель.
	SupporterID string

	// Amount - ценность подарка в очках (> 0).
	Amount float64

	// OccurredAt - момент подарка.
	OccurredAt time.Time
}

// IsValid проверяет целостность записи. Повреждённые записи пересчёт
// пропускает с логом, не роняя проход целиком.
func (g GiftRecord) IsValid() bool {
	return strings.TrimSpace(g.CreatorID) != "" &&
		strings.TrimSpace(g.SupporterID) != "" &&
		g.Amount > 0 &&
		!g.OccurredAt.IsZero()
}

// BattleRecord - участие стримера в одном завершённом батле.
// В рейтинг попадают только ranked-батлы: тренировочные исключаются
// на уровне чтения сигналов.
type BattleRecord struct {
	// SeasonID - сезон батла.
	SeasonID string

	// CreatorID - стример-участник.
	CreatorID string

	// BattleID - идентификатор батла.
	BattleID string

	// RawScore - сырые очки стримера в батле (>= 0).
	RawScore float64

	// Won - победила ли команда стримера.
	Won bool

	// TeamSize - размер команды стримера.
	TeamSize int

	// Tournament - батл в рамках турнира.
	Tournament bool

	// Ranked - батл учитывается в рейтинге.
	Ranked bool

	// OccurredAt - момент завершения батла.
	OccurredAt time.Time
}

// IsValid проверяет целостность записи.
func (b BattleRecord) IsValid() bool {
	return strings.TrimSpace(b.CreatorID) != "" &&
		strings.TrimSpace(b.BattleID) != "" &&
		b.RawScore >= 0 &&
		b.TeamSize >= 1 &&
		!b.OccurredAt.IsZero()
}

// CreatorSignals - все сигналы одного стримера за сезон.
// Единица работы скорингового пайплайна.
type CreatorSignals struct {
	CreatorID string
	Gifts     []GiftRecord
	Battles   []BattleRecord
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// SignalStore - порт чтения сырых сигналов вовлечённости.
// Пересчёт читает сигналы чанками стримеров; запись сигналов - зона
// ответственности трактов приёма (платежи, батлы), не этого модуля.
type SignalStore interface {
	// ListCreatorIDs возвращает отсортированный список всех стримеров,
	// у которых есть хотя бы один сигнал в сезоне.
	ListCreatorIDs(ctx context.Context, seasonID string) ([]string, error)

	// GetSignalsForCreators возвращает сигналы чанка стримеров.
	// Ranked-фильтр батлов применяется здесь, на чтении.
	GetSignalsForCreators(ctx context.Context, seasonID string, creatorIDs []string) ([]CreatorSignals, error)
}

// EntryRepository - порт хранилища записей рейтинга.
type EntryRepository interface {
	// UpsertBatch идемпотентно записывает чанк пересчитанных записей.
	UpsertBatch(ctx context.Context, entries []*Entry) error

	// UpdateRanks записывает плотные ранги финального прохода.
	UpdateRanks(ctx context.Context, seasonID string, ranked []*Entry) error

	// GetBySeason возвращает все записи сезона, упорядоченные по рангу.
	GetBySeason(ctx context.Context, seasonID string) ([]*Entry, error)

	// GetByCreator возвращает запись стримера в сезоне.
	GetByCreator(ctx context.Context, seasonID, creatorID string) (*Entry, error)

	// GetTop возвращает первые limit записей сезона по рангу.
	GetTop(ctx context.Context, seasonID string, limit int) ([]*Entry, error)
}
