package upstream

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"feasibility-engine/internal/obfuscation"
)

// Handler solves a job with the configured disclosure filters and reports
// the result back.
type Handler struct {
	solver  Solver
	sink    ResultSink
	filters obfuscation.Filters
}

func NewHandler(solver Solver, sink ResultSink, filters obfuscation.Filters) *Handler {
	return &Handler{solver: solver, sink: sink, filters: filters}
}

// Handle runs one job. Documents that cannot be parsed or are not supported
// produce no result, so nothing is sent for them.
func (h *Handler) Handle(ctx context.Context, raw []byte) error {
	res, err := h.solver.Execute(ctx, raw, h.filters)
	if err != nil {
		return fmt.Errorf("job rejected: %w", err)
	}
	log.Info().Str("uuid", res.UUID).Str("collection", res.CollectionID).
		Str("status", string(res.Status)).Int64("count", res.Count).Msg("job solved")

	if err := h.sink.SendResult(ctx, res); err != nil {
		return fmt.Errorf("send result %s: %w", res.UUID, err)
	}
	return nil
}
