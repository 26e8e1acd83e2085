package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// RetryPolicy retries an operation whose error satisfies Match, up to
// Retries extra attempts, waiting Delay between them.
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
	Match   func(error) bool
}

// Retry runs op, retrying per p. It is meant for waking a suspended
// database, whose first connection fails with a well-known code.
func Retry(ctx context.Context, p RetryPolicy, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil || attempt >= p.Retries || p.Match == nil || !p.Match(err) {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", p.Delay).
			Msg("database not ready, retrying")

		t := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

// MatchErrorCode matches a postgres SQLSTATE equal to code, or any error
// whose message carries it (Azure SQL reports 40613 this way).
func MatchErrorCode(code string) func(error) bool {
	return func(err error) bool {
		if err == nil || code == "" {
			return false
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == code {
			return true
		}
		return strings.Contains(err.Error(), code)
	}
}
