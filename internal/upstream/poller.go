package upstream

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"feasibility-engine/internal/cache"
	"feasibility-engine/internal/config"
)

// Status is a point-in-time view of the poller for the ops API.
type Status struct {
	Running   bool      `json:"running"`
	Polls     int64     `json:"polls"`
	Jobs      int64     `json:"jobs"`
	Failures  int64     `json:"failures"`
	LastPoll  time.Time `json:"last_poll,omitzero"`
	LastJob   time.Time `json:"last_job,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	Backoff   string    `json:"backoff,omitempty"`
}

type PollerConfig struct {
	Interval       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func PollerConfigFrom(cfg config.Config) PollerConfig {
	return PollerConfig{
		Interval:       cfg.PollingInterval(),
		InitialBackoff: cfg.InitialBackoff(),
		MaxBackoff:     cfg.MaxBackoff(),
	}
}

// Poller pulls jobs from a TaskSource and hands them to a JobHandler one at
// a time until its context ends.
type Poller struct {
	source  TaskSource
	handler JobHandler
	cfg     PollerConfig
	status  cache.Snapshot[Status]
	sleep   func(ctx context.Context, d time.Duration) bool
}

func NewPoller(source TaskSource, handler JobHandler, cfg PollerConfig) *Poller {
	p := &Poller{source: source, handler: handler, cfg: cfg, sleep: sleep}
	p.status.Store(Status{})
	return p
}

func (p *Poller) Status() Status {
	st, _ := p.status.Load()
	return st
}

// Run polls until ctx is cancelled. Fetch failures back off exponentially
// from InitialBackoff up to MaxBackoff; a successful fetch resets the backoff.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Dur("interval", p.cfg.Interval).Msg("polling for tasks")
	p.status.Update(func(s Status) Status {
		s.Running = true
		return s
	})
	defer p.status.Update(func(s Status) Status {
		s.Running = false
		s.Backoff = ""
		return s
	})

	backoff := p.cfg.InitialBackoff
	for ctx.Err() == nil {
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Dur("retry_in", backoff).Msg("task api poll failed")
			p.status.Update(func(s Status) Status {
				s.LastError = err.Error()
				s.Backoff = backoff.String()
				return s
			})
			if !p.sleep(ctx, backoff) {
				break
			}
			backoff = min(backoff*2, p.cfg.MaxBackoff)
		} else if backoff != p.cfg.InitialBackoff {
			backoff = p.cfg.InitialBackoff
			p.status.Update(func(s Status) Status {
				s.Backoff = ""
				return s
			})
		}

		if !p.sleep(ctx, p.cfg.Interval) {
			break
		}
	}
	log.Info().Msg("poller stopped")
	return nil
}

// poll fetches and handles at most one job. Only fetch failures are
// returned; a job that fails to run is logged and counted.
func (p *Poller) poll(ctx context.Context) error {
	raw, ok, err := p.source.NextJob(ctx)
	p.status.Update(func(s Status) Status {
		s.Polls++
		s.LastPoll = time.Now()
		return s
	})
	if err != nil {
		return err
	}
	if !ok {
		log.Debug().Msg("no task found")
		return nil
	}

	log.Info().Msg("task received, resolving")
	herr := p.handler.Handle(ctx, raw)
	p.status.Update(func(s Status) Status {
		s.Jobs++
		s.LastJob = time.Now()
		if herr != nil {
			s.Failures++
			s.LastError = herr.Error()
		}
		return s
	})
	if herr != nil {
		log.Error().Err(herr).Msg("task failed")
	}
	return nil
}

// sleep waits d, returning false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
