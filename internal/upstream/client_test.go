package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feasibility-engine/internal/config"
	"feasibility-engine/internal/rquest"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	var cfg config.Config
	cfg.TaskAPI.BaseURL = ts.URL + "/api"
	cfg.TaskAPI.Username = "engine"
	cfg.TaskAPI.Password = "s3cret"
	cfg.TaskAPI.CollectionID = "RQ-CC-1"
	cfg.TaskAPI.Type = "a"
	cfg.TaskAPI.SendRetries = 4
	c, err := NewClient(cfg)
	require.NoError(t, err)
	c.sendDelay = time.Millisecond
	return c
}

func TestNewClient_RequiresBaseURLAndCollection(t *testing.T) {
	var cfg config.Config
	_, err := NewClient(cfg)
	assert.Error(t, err)

	cfg.TaskAPI.BaseURL = "http://task-api"
	_, err = NewClient(cfg)
	assert.Error(t, err)

	cfg.TaskAPI.CollectionID = "RQ-CC-1"
	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "task/nextjob/RQ-CC-1", c.nextJobPath)
}

func TestClient_NextJob(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantOK  bool
		wantErr bool
	}{
		{"job available", http.StatusOK, `{"uuid":"job-1"}`, true, false},
		{"nothing queued", http.StatusNoContent, "", false, false},
		{"unauthorized", http.StatusUnauthorized, "denied", false, true},
		{"server error", http.StatusBadGateway, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/task/nextjob/RQ-CC-1.a", r.URL.Path)
				user, pass, ok := r.BasicAuth()
				assert.True(t, ok)
				assert.Equal(t, "engine", user)
				assert.Equal(t, "s3cret", pass)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			raw, ok, err := c.NextJob(context.Background())
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.status, se.Code)
				return
			}
			require.NoError(t, err)
			if tt.wantOK {
				assert.JSONEq(t, tt.body, string(raw))
			}
		})
	}
}

func TestClient_NextJob_TransportError(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	c.base.Host = "127.0.0.1:1"

	_, ok, err := c.NextJob(context.Background())
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestClient_SendResult(t *testing.T) {
	res := rquest.Result{
		Status:          rquest.StatusOK,
		ProtocolVersion: "v2",
		UUID:            "job-1",
		CollectionID:    "RQ-CC-1",
		Count:           40,
	}

	tests := []struct {
		name         string
		statuses     []int
		wantAttempts int32
		wantErr      bool
	}{
		{"accepted", []int{http.StatusOK}, 1, false},
		{"retries server errors", []int{http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusOK}, 3, false},
		{"client error is final", []int{http.StatusBadRequest}, 1, false},
		{"gives up", []int{500, 500, 500, 500, 500}, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				n := attempts.Add(1)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/task/result/job-1/RQ-CC-1", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var got map[string]any
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				assert.Equal(t, "job-1", got["uuid"])
				assert.Equal(t, "ok", got["status"])

				w.WriteHeader(tt.statuses[n-1])
			})

			err := c.SendResult(context.Background(), res)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSendFailed)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts.Load())
		})
	}
}

func TestClient_SendResult_StopsOnCancel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.sendDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.SendResult(ctx, rquest.Result{UUID: "job-1", CollectionID: "RQ-CC-1"})
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
