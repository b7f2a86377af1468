package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lumen-live/season-ranking/internal/domain/ranking"
	"github.com/lumen-live/season-ranking/internal/domain/season"
	"github.com/lumen-live/season-ranking/internal/domain/shared"
	"github.com/lumen-live/season-ranking/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE SEASON COMMAND
// Full scoring pass over a season: read signals in chunks of creators,
// score each creator, upsert entries, then assign dense ranks in a
// single final pass. Safe to re-run: a completed pass over the same
// signals produces the same result.
// ══════════════════════════════════════════════════════════════════════════════

// RecalculateSeasonCommand triggers a recalculation pass.
type RecalculateSeasonCommand struct {
	// SeasonID is the target season (empty = the active season).
	SeasonID string

	// TriggeredByJob marks passes started by the scheduler.
	TriggeredByJob bool
}

// RecalculateConfig tunes the pass.
type RecalculateConfig struct {
	// ChunkSize is the number of creators scored per chunk.
	ChunkSize int

	// Parallelism is the number of chunks processed concurrently.
	Parallelism int

	// LockTTL bounds how long a crashed pass keeps the season locked.
	LockTTL time.Duration

	// WriteRetries is the number of attempts per chunk write.
	WriteRetries int

	// CacheTTL is the TTL of the refreshed leaderboard projection.
	CacheTTL time.Duration
}

// DefaultRecalculateConfig returns sensible defaults.
func DefaultRecalculateConfig() RecalculateConfig {
	return RecalculateConfig{
		ChunkSize:    200,
		Parallelism:  4,
		LockTTL:      30 * time.Minute,
		WriteRetries: 3,
		CacheTTL:     10 * time.Minute,
	}
}

// RecalculateSeasonResult contains the statistics of a completed pass.
type RecalculateSeasonResult struct {
	RunID            string
	SeasonID         string
	StartedAt        time.Time
	CompletedAt      time.Time
	Duration         time.Duration
	CreatorsTotal    int
	CreatorsFailed   int
	ChunksTotal      int
	ChunksFailed     int
	MalformedSignals int
	TriggeredByJob   bool
}

// RecalculateSeasonHandler orchestrates recalculation passes.
type RecalculateSeasonHandler struct {
	seasonRepo  season.SeasonRepository
	signalStore ranking.SignalStore
	entryRepo   ranking.EntryRepository
	cache       ranking.Cache
	lock        season.RecalcLock
	publisher   shared.EventPublisher
	logger      *slog.Logger
	config      RecalculateConfig

	lastRun atomic.Value // *RecalculateSeasonResult
}

// NewRecalculateSeasonHandler creates a new handler.
func NewRecalculateSeasonHandler(
	seasonRepo season.SeasonRepository,
	signalStore ranking.SignalStore,
	entryRepo ranking.EntryRepository,
	cache ranking.Cache,
	lock season.RecalcLock,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config RecalculateConfig,
) *RecalculateSeasonHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultRecalculateConfig().ChunkSize
	}
	if config.Parallelism <= 0 {
		config.Parallelism = DefaultRecalculateConfig().Parallelism
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultRecalculateConfig().LockTTL
	}

	return &RecalculateSeasonHandler{
		seasonRepo:  seasonRepo,
		signalStore: signalStore,
		entryRepo:   entryRepo,
		cache:       cache,
		lock:        lock,
		publisher:   publisher,
		logger:      logger,
		config:      config,
	}
}

// LastRun returns the statistics of the most recent completed pass
// in this process, or nil if none has completed yet.
func (h *RecalculateSeasonHandler) LastRun() *RecalculateSeasonResult {
	if v := h.lastRun.Load(); v != nil {
		return v.(*RecalculateSeasonResult)
	}
	return nil
}

// Handle runs a full recalculation pass.
func (h *RecalculateSeasonHandler) Handle(ctx context.Context, cmd RecalculateSeasonCommand) (*RecalculateSeasonResult, error) {
	s, err := h.resolveSeason(ctx, cmd.SeasonID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sctx, err := season.NewContext(s, now)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := h.logger.With("season_id", s.ID, "run_id", runID)

	// One pass per season at a time, across processes. A stale lock
	// left by a crashed worker is reclaimed after its TTL.
	if err := h.lock.Acquire(ctx, s.ID, runID, h.config.LockTTL); err != nil {
		return nil, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.lock.Release(releaseCtx, s.ID, runID); err != nil {
			log.Warn("failed to release recalc lock", "error", err)
		}
	}()

	log.Info("starting recalculation pass", "triggered_by_job", cmd.TriggeredByJob)

	creatorIDs, err := h.signalStore.ListCreatorIDs(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("recalculate: list creators: %w", err)
	}

	result := &RecalculateSeasonResult{
		RunID:          runID,
		SeasonID:       s.ID,
		StartedAt:      now,
		CreatorsTotal:  len(creatorIDs),
		TriggeredByJob: cmd.TriggeredByJob,
	}

	if err := h.scoreChunks(ctx, sctx, creatorIDs, result, log); err != nil {
		return nil, err
	}

	// The ranking pass is deliberately single-threaded: dense ranks are
	// a property of the whole season, not of any chunk.
	ranked, err := h.rankingPass(ctx, s.ID, log)
	if err != nil {
		return nil, err
	}

	h.refreshCache(ctx, s.ID, ranked, log)

	result.CompletedAt = time.Now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	h.lastRun.Store(result)

	if h.publisher != nil {
		event := shared.NewRecalculationCompletedEvent(
			s.ID, runID,
			result.CreatorsTotal, result.CreatorsFailed,
			result.ChunksTotal, result.ChunksFailed,
			result.Duration, cmd.TriggeredByJob,
		)
		if err := h.publisher.Publish(event); err != nil {
			log.Warn("failed to publish recalculation_completed", "error", err)
		}
	}

	log.Info("recalculation pass completed",
		"duration", result.Duration,
		"creators_total", result.CreatorsTotal,
		"creators_failed", result.CreatorsFailed,
		"chunks_failed", result.ChunksFailed,
		"malformed_signals", result.MalformedSignals,
	)
	return result, nil
}

func (h *RecalculateSeasonHandler) resolveSeason(ctx context.Context, seasonID string) (*season.Season, error) {
	if seasonID == "" {
		s, err := h.seasonRepo.GetActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("recalculate: resolve active season: %w", err)
		}
		return s, nil
	}
	s, err := h.seasonRepo.GetByID(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("recalculate: load season: %w", err)
	}
	return s, nil
}

// scoreChunks scores all creators in bounded-parallel chunks.
// A failed chunk is recorded and skipped: its creators keep their
// previous stored scores and the pass carries on. Only context
// cancellation aborts the whole pass.
func (h *RecalculateSeasonHandler) scoreChunks(ctx context.Context, sctx season.Context, creatorIDs []string, result *RecalculateSeasonResult, log *slog.Logger) error {
	chunks := chunkStrings(creatorIDs, h.config.ChunkSize)
	result.ChunksTotal = len(chunks)

	aggregator := ranking.NewAggregator()
	calculator := ranking.NewCalculator()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Parallelism)

	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			malformed, err := h.scoreChunk(gctx, sctx, aggregator, calculator, chunk)

			mu.Lock()
			defer mu.Unlock()
			result.MalformedSignals += malformed
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				result.ChunksFailed++
				result.CreatorsFailed += len(chunk)
				log.Error("chunk failed, continuing pass", "chunk", i, "size", len(chunk), "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRecalcInterrupted, err)
	}
	return nil
}

func (h *RecalculateSeasonHandler) scoreChunk(ctx context.Context, sctx season.Context, aggregator *ranking.Aggregator, calculator *ranking.Calculator, creatorIDs []string) (int, error) {
	signals, err := h.signalStore.GetSignalsForCreators(ctx, sctx.SeasonID, creatorIDs)
	if err != nil {
		return 0, fmt.Errorf("read signals: %w", err)
	}

	var malformed int
	entries := make([]*ranking.Entry, 0, len(signals))
	for _, cs := range signals {
		entry, err := ranking.NewEntry(sctx.SeasonID, cs.CreatorID)
		if err != nil {
			malformed++
			continue
		}

		res := aggregator.Aggregate(sctx, cs)
		malformed += res.MalformedSignals

		composite := calculator.Composite(sctx.Config, res.Subtotals)
		tier, err := sctx.Tiers.Assign(composite)
		if err != nil {
			return malformed, fmt.Errorf("assign tier for %s: %w", cs.CreatorID, err)
		}

		entry.ApplyScore(res.Subtotals, composite, tier, sctx.Now)
		entries = append(entries, entry)
	}

	// Transient write failures get a few retried attempts before the
	// chunk is declared failed.
	err = retry.Do(ctx, func(ctx context.Context) error {
		return h.entryRepo.UpsertBatch(ctx, entries)
	},
		retry.WithMaxAttempts(h.config.WriteRetries),
		retry.WithInitialDelay(100*time.Millisecond),
	)
	if err != nil {
		return malformed, fmt.Errorf("write chunk: %w", err)
	}
	return malformed, nil
}

// rankingPass loads every stored entry of the season, orders the full
// field and writes dense ranks 1..N back.
func (h *RecalculateSeasonHandler) rankingPass(ctx context.Context, seasonID string, log *slog.Logger) ([]*ranking.Entry, error) {
	entries, err := h.entryRepo.GetBySeason(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("recalculate: load entries for ranking: %w", err)
	}

	oldRanks := make(map[string]ranking.Rank, len(entries))
	for _, e := range entries {
		oldRanks[e.CreatorID] = e.Rank
	}

	ranking.NewSequencer().Sequence(entries)

	if err := h.entryRepo.UpdateRanks(ctx, seasonID, entries); err != nil {
		return nil, fmt.Errorf("recalculate: write ranks: %w", err)
	}

	if h.publisher != nil {
		for _, e := range entries {
			old := oldRanks[e.CreatorID]
			if old == 0 || old == e.Rank {
				continue
			}
			if err := h.publisher.Publish(shared.NewRankChangedEvent(e.CreatorID, seasonID, int(old), int(e.Rank))); err != nil {
				log.Warn("failed to publish rank_changed", "creator_id", e.CreatorID, "error", err)
				break
			}
		}
	}
	return entries, nil
}

// refreshCache rebuilds the hot leaderboard projection. Failures are
// logged and swallowed: the projection is derived state.
func (h *RecalculateSeasonHandler) refreshCache(ctx context.Context, seasonID string, entries []*ranking.Entry, log *slog.Logger) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Replace(ctx, seasonID, entries, h.config.CacheTTL); err != nil {
		log.Warn("failed to refresh leaderboard cache", "error", err)
	}
}

// chunkStrings splits ids into chunks of at most size elements.
func chunkStrings(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
