package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// ListStates возвращает историю состояний сессии, новые первыми.
// GET /api/v1/states
func (h *Handler) ListStates(w http.ResponseWriter, r *http.Request) {
	rows, err := h.session.StateRows(r.Context())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	result := make([]StateRowResponse, len(rows))
	for i, row := range rows {
		result[i] = StateRowFromGraph(row)
	}

	List(w, result, len(result))
}

// ListCheckpoints возвращает сохранённые контрольные точки.
// GET /api/v1/checkpoints?limit=N
func (h *Handler) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if h.checkpoints == nil {
		Unavailable(w, "checkpoints are disabled")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	histories, err := h.checkpoints.ListHistories(r.Context(), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, histories, len(histories))
}

// GetCheckpoint возвращает контрольную точку документа.
// GET /api/v1/checkpoints/{id}
func (h *Handler) GetCheckpoint(w http.ResponseWriter, r *http.Request) {
	if h.checkpoints == nil {
		Unavailable(w, "checkpoints are disabled")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid document id")
		return
	}

	history, err := h.checkpoints.GetHistory(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "checkpoint not found") {
		return
	}

	Success(w, CheckpointFromDomain(*history))
}
