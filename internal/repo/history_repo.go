package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Flowgraph/internal/domain"
)

// HistorySummary — краткая информация о контрольной точке документа.
type HistorySummary struct {
	DocumentID   uuid.UUID `json:"document_id"`
	NumStates    int       `json:"num_states"`
	CurrentIndex int       `json:"current_index"`
	SavedIndex   int       `json:"saved_index"`
	CheckpointAt time.Time `json:"checkpoint_at"`
}

// HistoryRepo — репозиторий контрольных точек истории графа.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// SaveHistory заменяет контрольную точку документа целиком.
//
// Заголовок и состояния пишутся в одной транзакции, поэтому читатель
// никогда не видит историю наполовину.
func (r *HistoryRepo) SaveHistory(ctx context.Context, h domain.StateHistory) error {
	if err := validateHistory(h); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO graph_histories (document_id, current_index, saved_index, num_states, checkpoint_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id) DO UPDATE
		SET current_index = EXCLUDED.current_index,
		    saved_index   = EXCLUDED.saved_index,
		    num_states    = EXCLUDED.num_states,
		    checkpoint_at = EXCLUDED.checkpoint_at
	`, h.DocumentID, h.CurrentIndex, h.SavedIndex, len(h.States), h.CheckpointAt)
	batch.Queue(`DELETE FROM graph_states WHERE document_id = $1`, h.DocumentID)

	for i, state := range h.States {
		extraJSON, err := marshalExtra(state.Extra)
		if err != nil {
			return fmt.Errorf("state %d: %w", i, err)
		}
		batch.Queue(`
			INSERT INTO graph_states (document_id, idx, icon_name, description, dump, extra, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, h.DocumentID, i, state.IconName, state.Description, state.Dump, extraJSON, state.CreatedAt)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("save history %s: %w", h.DocumentID, err)
	}
	return nil
}

// GetHistory возвращает последнюю контрольную точку документа.
func (r *HistoryRepo) GetHistory(ctx context.Context, documentID uuid.UUID) (*domain.StateHistory, error) {
	h := domain.StateHistory{DocumentID: documentID}

	var numStates int
	err := r.pool.QueryRow(ctx, `
		SELECT current_index, saved_index, num_states, checkpoint_at
		FROM graph_histories
		WHERE document_id = $1
	`, documentID).Scan(&h.CurrentIndex, &h.SavedIndex, &numStates, &h.CheckpointAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get history: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT icon_name, description, dump, extra, created_at
		FROM graph_states
		WHERE document_id = $1
		ORDER BY idx
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	h.States = make([]domain.GraphState, 0, numStates)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		h.States = append(h.States, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}

	return &h, nil
}

// ListHistories возвращает контрольные точки, новые первыми.
func (r *HistoryRepo) ListHistories(ctx context.Context, limit int) ([]HistorySummary, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT document_id, num_states, current_index, saved_index, checkpoint_at
		FROM graph_histories
		ORDER BY checkpoint_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list histories: %w", err)
	}
	defer rows.Close()

	var out []HistorySummary
	for rows.Next() {
		var s HistorySummary
		if err := rows.Scan(&s.DocumentID, &s.NumStates, &s.CurrentIndex, &s.SavedIndex, &s.CheckpointAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate histories: %w", err)
	}
	return out, nil
}

// DeleteHistory удаляет контрольную точку документа.
func (r *HistoryRepo) DeleteHistory(ctx context.Context, documentID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM graph_histories WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanState(row pgx.Row) (domain.GraphState, error) {
	var (
		state     domain.GraphState
		extraJSON []byte
	)
	if err := row.Scan(&state.IconName, &state.Description, &state.Dump, &extraJSON, &state.CreatedAt); err != nil {
		return domain.GraphState{}, fmt.Errorf("scan state: %w", err)
	}
	if extraJSON != nil {
		if err := json.Unmarshal(extraJSON, &state.Extra); err != nil {
			return domain.GraphState{}, fmt.Errorf("unmarshal extra: %w", err)
		}
	}
	return state, nil
}

// marshalExtra возвращает nil для пустых данных (NULL в БД).
func marshalExtra(extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("marshal extra: %w", err)
	}
	return data, nil
}

func validateHistory(h domain.StateHistory) error {
	if h.DocumentID == uuid.Nil {
		return fmt.Errorf("%w: empty document id", ErrInvalidState)
	}
	n := len(h.States)
	if h.CurrentIndex < -1 || h.CurrentIndex >= n {
		return fmt.Errorf("%w: current index %d of %d states", ErrInvalidState, h.CurrentIndex, n)
	}
	if h.SavedIndex < -1 || h.SavedIndex >= n {
		return fmt.Errorf("%w: saved index %d of %d states", ErrInvalidState, h.SavedIndex, n)
	}
	return nil
}
