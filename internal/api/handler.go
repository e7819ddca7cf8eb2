package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/eval"
	"github.com/shaiso/Flowgraph/internal/graph"
	"github.com/shaiso/Flowgraph/internal/repo"
)

// Session — открытая сессия редактирования.
type Session interface {
	LastPass() (eval.PassResult, bool)
	StateRows(ctx context.Context) ([]graph.StateRow, error)
}

// CheckpointStore — чтение контрольных точек истории.
type CheckpointStore interface {
	GetHistory(ctx context.Context, documentID uuid.UUID) (*domain.StateHistory, error)
	ListHistories(ctx context.Context, limit int) ([]repo.HistorySummary, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	session     Session
	checkpoints CheckpointStore
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Session     Session
	Checkpoints CheckpointStore // nil — контрольные точки отключены
	Logger      *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		session:     cfg.Session,
		checkpoints: cfg.Checkpoints,
		logger:      logger,
	}
}
