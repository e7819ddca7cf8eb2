package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	mux.Handle("GET /api/v1/pass", chain(http.HandlerFunc(h.GetPass)))
	mux.Handle("GET /api/v1/states", chain(http.HandlerFunc(h.ListStates)))
	mux.Handle("GET /api/v1/checkpoints", chain(http.HandlerFunc(h.ListCheckpoints)))
	mux.Handle("GET /api/v1/checkpoints/{id}", chain(http.HandlerFunc(h.GetCheckpoint)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
}
