package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"feasibility-engine/internal/obfuscation"
	"feasibility-engine/internal/rquest"
	"feasibility-engine/internal/storage"
	"feasibility-engine/internal/upstream"
)

const maxQueryBytes = 10 << 20

// Solver runs a raw query document.
type Solver interface {
	Execute(ctx context.Context, raw []byte, filters obfuscation.Filters) (rquest.Result, error)
}

// Pool is the part of the warehouse the ops API reports on.
type Pool interface {
	Ping(ctx context.Context) error
	Stats() storage.PoolStats
}

// StatusSource reports the poller state. It is nil when polling is disabled.
type StatusSource interface {
	Status() upstream.Status
}

type QueryHandler struct {
	solver  Solver
	pool    Pool
	poller  StatusSource
	filters obfuscation.Filters
}

func NewQueryHandler(solver Solver, pool Pool, poller StatusSource, filters obfuscation.Filters) *QueryHandler {
	return &QueryHandler{solver: solver, pool: pool, poller: poller, filters: filters}
}

type errorBody struct {
	Error string `json:"error"`
}

type statusBody struct {
	Pool   storage.PoolStats `json:"pool"`
	Poller *upstream.Status  `json:"poller,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Query solves the posted query document with the configured filters.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxQueryBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read body"})
		return
	}

	res, err := h.solver.Execute(r.Context(), raw, h.filters)
	switch {
	case errors.Is(err, rquest.ErrUnsupportedQuery):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("uuid", res.UUID).Str("status", string(res.Status)).Msg("query solved")
	writeJSON(w, http.StatusOK, res)
}

func (h *QueryHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Ping(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("warehouse ping failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("warehouse unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *QueryHandler) Status(w http.ResponseWriter, _ *http.Request) {
	body := statusBody{Pool: h.pool.Stats()}
	if h.poller != nil {
		st := h.poller.Status()
		body.Poller = &st
	}
	writeJSON(w, http.StatusOK, body)
}
