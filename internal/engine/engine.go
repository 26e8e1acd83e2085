package engine

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"feasibility-engine/internal/obfuscation"
	"feasibility-engine/internal/observability"
	"feasibility-engine/internal/rquest"
	"feasibility-engine/internal/storage"
)

const distributionDescription = "Result of code.distribution analysis"

// QueryEngine solves feasibility queries against one warehouse. Solves are
// independent: each checks out a single connection and releases it before returning.
type QueryEngine struct {
	wh   storage.Warehouse
	wake storage.RetryPolicy
	now  func() time.Time
}

type Option func(*QueryEngine)

// WithClock sets the clock relative time windows are computed from.
func WithClock(now func() time.Time) Option {
	return func(e *QueryEngine) { e.now = now }
}

// WithWakeRetry retries a solve whose error matches p, for databases that
// suspend when idle.
func WithWakeRetry(p storage.RetryPolicy) Option {
	return func(e *QueryEngine) { e.wake = p }
}

func NewEngine(wh storage.Warehouse, opts ...Option) *QueryEngine {
	e := &QueryEngine{wh: wh, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute classifies and solves a raw query document. Malformed and
// unsupported documents are returned as errors and produce no result;
// failures while solving produce an error-status result instead.
func (e *QueryEngine) Execute(ctx context.Context, raw []byte, filters obfuscation.Filters) (rquest.Result, error) {
	q, err := rquest.ParseQuery(raw)
	if err != nil {
		if errors.Is(err, rquest.ErrUnsupportedQuery) {
			log.Error().Err(err).Msg("unsupported query")
		} else {
			log.Error().Err(err).Msg("invalid query")
		}
		return rquest.Result{}, err
	}
	return e.Solve(ctx, q, filters), nil
}

// Solve dispatches on the query kind.
func (e *QueryEngine) Solve(ctx context.Context, q rquest.Query, filters obfuscation.Filters) rquest.Result {
	switch q := q.(type) {
	case nil:
		log.Error().Msg("nil query")
		return errorResult("", "", rquest.DefaultProtocolVersion)
	case rquest.AvailabilityQuery:
		return e.SolveAvailability(ctx, q, filters)
	case rquest.DistributionQuery:
		return e.SolveDistribution(ctx, q, filters)
	}
	log.Error().Str("uuid", q.QueryUUID()).Msgf("unknown query type %T", q)
	return errorResult(q.QueryUUID(), q.CollectionID(), rquest.DefaultProtocolVersion)
}

func (e *QueryEngine) SolveAvailability(ctx context.Context, q rquest.AvailabilityQuery, filters obfuscation.Filters) rquest.Result {
	started := time.Now()
	filters = slices.Clone(filters)
	logger := log.With().Str("uuid", q.UUID).Str("collection", q.Collection).Logger()

	var count int64
	err := e.withConn(ctx, func(ctx context.Context, conn storage.Conn) error {
		var err error
		count, err = countCohort(ctx, conn, e.wh.Dialect(), e.now(), q.Cohort, filters)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("availability query failed")
		observability.ObserveSolve("availability", string(rquest.StatusError), started)
		return errorResult(q.UUID, q.Collection, q.ProtocolVersion)
	}

	logger.Info().Int64("count", count).Msg("solved availability query")
	observability.ObserveSolve("availability", string(rquest.StatusOK), started)
	return rquest.Result{
		Status:          rquest.StatusOK,
		ProtocolVersion: q.ProtocolVersion,
		UUID:            q.UUID,
		CollectionID:    q.Collection,
		Count:           count,
	}
}

func (e *QueryEngine) SolveDistribution(ctx context.Context, q rquest.DistributionQuery, filters obfuscation.Filters) rquest.Result {
	started := time.Now()
	filters = slices.Clone(filters)
	logger := log.With().Str("uuid", q.UUID).Str("collection", q.Collection).Str("code", string(q.Code)).Logger()

	var tbl *table
	err := e.withConn(ctx, func(ctx context.Context, conn storage.Conn) error {
		var err error
		tbl, err = distributionTable(ctx, conn, e.wh.Dialect(), q, filters)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("distribution query failed")
		observability.ObserveSolve("distribution", string(rquest.StatusError), started)
		return errorResult(q.UUID, q.Collection, rquest.DefaultProtocolVersion)
	}

	logger.Info().Int("rows", tbl.len()).Msg("solved distribution query")
	observability.ObserveSolve("distribution", string(rquest.StatusOK), started)
	return rquest.Result{
		Status:          rquest.StatusOK,
		ProtocolVersion: rquest.DefaultProtocolVersion,
		UUID:            q.UUID,
		CollectionID:    q.Collection,
		Count:           int64(tbl.len()),
		DatasetsCount:   1,
		Files:           []rquest.File{rquest.NewFile(q.Code.FileName(), distributionDescription, tbl.TSV())},
	}
}

// withConn runs fn on one checked-out connection, retrying the whole
// checkout while the database wakes up.
func (e *QueryEngine) withConn(ctx context.Context, fn func(context.Context, storage.Conn) error) error {
	return storage.Retry(ctx, e.wake, func(ctx context.Context) error {
		conn, err := e.wh.Acquire(ctx)
		if err != nil {
			return err
		}
		defer conn.Release()
		return fn(ctx, conn)
	})
}

func errorResult(uuid, collection, version string) rquest.Result {
	return rquest.Result{
		Status:          rquest.StatusError,
		ProtocolVersion: version,
		UUID:            uuid,
		CollectionID:    collection,
	}
}
