// Package upstream talks to the task API that hands out feasibility jobs
// and collects their results.
package upstream

//go:generate mockgen -source=upstream.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feasibility-engine/internal/obfuscation"
	"feasibility-engine/internal/rquest"
)

// TaskSource yields the next queued job document, if any.
type TaskSource interface {
	NextJob(ctx context.Context) ([]byte, bool, error)
}

// ResultSink delivers a finished result.
type ResultSink interface {
	SendResult(ctx context.Context, res rquest.Result) error
}

// Solver turns a job document into a result.
type Solver interface {
	Execute(ctx context.Context, raw []byte, filters obfuscation.Filters) (rquest.Result, error)
}

// JobHandler processes one job document.
type JobHandler interface {
	Handle(ctx context.Context, raw []byte) error
}
