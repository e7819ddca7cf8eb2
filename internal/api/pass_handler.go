package api

import (
	"net/http"
	"strconv"
)

// GetPass возвращает отчёт последнего прохода вычисления.
// GET /api/v1/pass?trace=true
func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	res, ok := h.session.LastPass()
	if !ok {
		NotFound(w, "no evaluation pass yet")
		return
	}

	withTrace, _ := strconv.ParseBool(r.URL.Query().Get("trace"))
	Success(w, NewPassReport(res, withTrace))
}
