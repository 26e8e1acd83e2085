package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"feasibility-engine/internal/upstream/mocks"
)

var testPollerConfig = PollerConfig{
	Interval:       10 * time.Second,
	InitialBackoff: time.Second,
	MaxBackoff:     3 * time.Second,
}

// recordSleeps replaces real waiting with a log of requested durations.
func recordSleeps(p *Poller) *[]time.Duration {
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) bool {
		slept = append(slept, d)
		return ctx.Err() == nil
	}
	return &slept
}

func TestPoller_BacksOffOnFetchErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockTaskSource(ctrl)
	handler := mocks.NewMockJobHandler(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	down := errors.New("connection refused")
	gomock.InOrder(
		source.EXPECT().NextJob(gomock.Any()).Return(nil, false, down).Times(4),
		source.EXPECT().NextJob(gomock.Any()).Return(nil, false, nil),
		source.EXPECT().NextJob(gomock.Any()).Return(nil, false, down),
		source.EXPECT().NextJob(gomock.Any()).DoAndReturn(func(context.Context) ([]byte, bool, error) {
			cancel()
			return nil, false, context.Canceled
		}),
	)
	handler.EXPECT().Handle(gomock.Any(), gomock.Any()).Times(0)

	p := NewPoller(source, handler, testPollerConfig)
	slept := recordSleeps(p)

	require.NoError(t, p.Run(ctx))
	interval := testPollerConfig.Interval
	assert.Equal(t, []time.Duration{
		time.Second, interval,
		2 * time.Second, interval,
		3 * time.Second, interval,
		3 * time.Second, interval,
		interval,
		time.Second, interval,
	}, *slept)

	st := p.Status()
	assert.False(t, st.Running)
	assert.Equal(t, int64(7), st.Polls)
	assert.Equal(t, "connection refused", st.LastError)
}

func TestPoller_HandlesJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockTaskSource(ctrl)
	handler := mocks.NewMockJobHandler(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job1, job2 := []byte(`{"uuid":"1"}`), []byte(`{"uuid":"2"}`)
	gomock.InOrder(
		source.EXPECT().NextJob(gomock.Any()).Return(job1, true, nil),
		handler.EXPECT().Handle(gomock.Any(), job1).Return(nil),
		source.EXPECT().NextJob(gomock.Any()).Return(job2, true, nil),
		handler.EXPECT().Handle(gomock.Any(), job2).DoAndReturn(func(context.Context, []byte) error {
			cancel()
			return errors.New("job rejected")
		}),
	)

	p := NewPoller(source, handler, testPollerConfig)
	slept := recordSleeps(p)

	require.NoError(t, p.Run(ctx))
	// a failed job does not trigger backoff
	assert.Equal(t, []time.Duration{testPollerConfig.Interval, testPollerConfig.Interval}, *slept)

	st := p.Status()
	assert.Equal(t, int64(2), st.Polls)
	assert.Equal(t, int64(2), st.Jobs)
	assert.Equal(t, int64(1), st.Failures)
	assert.Equal(t, "job rejected", st.LastError)
	assert.False(t, st.LastJob.IsZero())
}

func TestPoller_StopsWhenCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockTaskSource(ctrl)
	handler := mocks.NewMockJobHandler(ctrl)
	source.EXPECT().NextJob(gomock.Any()).Return(nil, false, nil).AnyTimes()

	p := NewPoller(source, handler, PollerConfig{Interval: time.Millisecond, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.Status().Polls > 2 }, time.Second, time.Millisecond)
	assert.True(t, p.Status().Running)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	assert.False(t, p.Status().Running)
}
