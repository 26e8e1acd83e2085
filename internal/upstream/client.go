package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"feasibility-engine/internal/config"
	"feasibility-engine/internal/observability"
	"feasibility-engine/internal/rquest"
)

// ErrSendFailed is returned once every attempt to deliver a result failed.
var ErrSendFailed = errors.New("failed to send result")

// StatusError is a task API response with an unexpected status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("task api responded %d: %s", e.Code, e.Body)
}

// Client is a basic-auth client for the task API.
type Client struct {
	base        *url.URL
	username    string
	password    string
	nextJobPath string
	sendRetries int
	sendDelay   time.Duration
	http        *http.Client
}

func NewClient(cfg config.Config) (*Client, error) {
	t := cfg.TaskAPI
	if t.BaseURL == "" {
		return nil, fmt.Errorf("task api base url is required")
	}
	if t.CollectionID == "" {
		return nil, fmt.Errorf("task api collection id is required")
	}
	base, err := url.Parse(t.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse task api base url: %w", err)
	}

	job := t.CollectionID
	if t.Type != "" {
		job += "." + t.Type
	}
	return &Client{
		base:        base,
		username:    t.Username,
		password:    t.Password,
		nextJobPath: "task/nextjob/" + job,
		sendRetries: t.SendRetries,
		sendDelay:   cfg.SendRetryDelay(),
		http:        &http.Client{Timeout: cfg.RequestTimeout()},
	}, nil
}

// NextJob fetches the next job. ok is false when the API has nothing queued.
func (c *Client) NextJob(ctx context.Context) ([]byte, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.nextJobPath, nil)
	if err != nil {
		observability.UpstreamErrors.WithLabelValues("next_job").Inc()
		return nil, false, fmt.Errorf("poll task api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.UpstreamErrors.WithLabelValues("next_job").Inc()
		return nil, false, fmt.Errorf("read job: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, false, nil
	case resp.StatusCode == http.StatusOK:
		return body, true, nil
	case resp.StatusCode >= 400:
		observability.UpstreamErrors.WithLabelValues("next_job").Inc()
		return nil, false, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	log.Info().Int("status", resp.StatusCode).Msg("unexpected task api status")
	return nil, false, nil
}

// SendResult posts res to task/result/<uuid>/<collection>. Transport errors
// and 5xx responses are retried; any 2xx or 4xx response ends the attempts.
func (c *Client) SendResult(ctx context.Context, res rquest.Result) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	path := "task/result/" + res.UUID + "/" + res.CollectionID

	attempts := max(c.sendRetries, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.do(ctx, http.MethodPost, path, body)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				log.Info().Str("uuid", res.UUID).Msg("task resolved")
				return nil
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				log.Warn().Str("uuid", res.UUID).Int("status", resp.StatusCode).Msg("task api rejected result")
				return nil
			}
			err = &StatusError{Code: resp.StatusCode}
		}

		observability.UpstreamErrors.WithLabelValues("send_result").Inc()
		log.Warn().Err(err).Str("uuid", res.UUID).Int("attempt", attempt).Msg("failed to send result")
		if attempt == attempts {
			break
		}
		t := time.NewTimer(c.sendDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(ErrSendFailed, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrSendFailed, attempts)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	u := c.base.JoinPath(path)

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	log.Debug().Str("method", method).Str("url", u.String()).Msg("task api request")
	return c.http.Do(req)
}
