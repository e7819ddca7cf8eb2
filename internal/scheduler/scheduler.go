package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Flowgraph/internal/domain"
)

// Store — хранилище контрольных точек.
type Store interface {
	SaveHistory(ctx context.Context, h domain.StateHistory) error
}

// Source возвращает текущие истории документов.
type Source func(ctx context.Context) ([]domain.StateHistory, error)

// Config — конфигурация Checkpointer.
type Config struct {
	Store    Store
	Source   Source
	Schedule string // cron-выражение (default: DefaultSchedule)
	Logger   *slog.Logger
}

// TickResult — итог одного тика.
type TickResult struct {
	Saved   int
	Skipped int
	Failed  int
}

// Checkpointer — периодическое сохранение истории графа.
type Checkpointer struct {
	store    Store
	source   Source
	schedule string
	logger   *slog.Logger

	mu        sync.Mutex
	revisions map[uuid.UUID]string

	cron *cron.Cron
}

// New создаёт Checkpointer. Возвращает ошибку для невалидного расписания.
func New(cfg Config) (*Checkpointer, error) {
	if cfg.Store == nil || cfg.Source == nil {
		return nil, fmt.Errorf("checkpointer: store and source are required")
	}

	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if err := ValidateCronExpr(schedule); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Checkpointer{
		store:     cfg.Store,
		source:    cfg.Source,
		schedule:  schedule,
		logger:    logger.With("component", "checkpointer"),
		revisions: make(map[uuid.UUID]string),
	}, nil
}

// Tick сохраняет изменившиеся истории.
//
// Ошибка сохранения одного документа логируется, остальные продолжают
// сохраняться; документ будет повторён на следующем тике.
func (c *Checkpointer) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult

	histories, err := c.source(ctx)
	if err != nil {
		return res, fmt.Errorf("collect histories: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, h := range histories {
		rev := h.Revision()
		if c.revisions[h.DocumentID] == rev {
			res.Skipped++
			continue
		}

		if err := c.store.SaveHistory(ctx, h); err != nil {
			c.logger.Error("failed to save checkpoint",
				"document_id", h.DocumentID,
				"error", err,
			)
			res.Failed++
			continue
		}

		c.revisions[h.DocumentID] = rev
		res.Saved++
	}

	if res.Saved > 0 || res.Failed > 0 {
		c.logger.Info("checkpoint tick completed",
			"documents", len(histories),
			"saved", res.Saved,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}
	return res, nil
}

// Start запускает тики по расписанию.
func (c *Checkpointer) Start(ctx context.Context) error {
	c.cron = cron.New(cron.WithParser(cronParser))
	_, err := c.cron.AddFunc(c.schedule, func() {
		if _, err := c.Tick(ctx); err != nil {
			c.logger.Error("checkpoint tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule checkpoints: %w", err)
	}

	c.cron.Start()
	c.logger.Info("checkpointer started", "schedule", c.schedule)
	return nil
}

// Stop останавливает расписание и ждёт завершения текущего тика.
func (c *Checkpointer) Stop() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
	c.logger.Info("checkpointer stopped")
}
