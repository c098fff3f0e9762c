package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// flakySource fails with err until it has been called failures times.
type flakySource struct {
	failures int
	err      error
	calls    int
}

func (s *flakySource) Fetch(context.Context) ([]byte, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, s.err
	}
	return []byte("ok"), nil
}

func (s *flakySource) String() string { return "flaky" }

func TestRetryBackoff(t *testing.T) {
	p := &RetryPolicy{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 100 * time.Millisecond},
		{attempt: 2, want: 200 * time.Millisecond},
		{attempt: 3, want: 400 * time.Millisecond},
		{attempt: 5, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.attempt), func(t *testing.T) {
			got := p.backoff(tt.attempt)
			assert.InDelta(t, float64(tt.want), float64(got), float64(tt.want)*backoffJitter+1)
		})
	}

	assert.Zero(t, p.backoff(0))
	assert.InDelta(t, float64(defaultInitialBackoff), float64((&RetryPolicy{}).backoff(1)), float64(defaultInitialBackoff)*backoffJitter+1)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "http 503", err: &StatusError{Code: 503, Status: "503 Service Unavailable"}, want: true},
		{name: "http 429", err: &StatusError{Code: 429, Status: "429 Too Many Requests"}, want: true},
		{name: "http 404", err: &StatusError{Code: 404, Status: "404 Not Found"}, want: false},
		{name: "connect unavailable", err: connect.NewError(connect.CodeUnavailable, errors.New("down")), want: true},
		{name: "connect not found", err: connect.NewError(connect.CodeNotFound, errors.New("nope")), want: false},
		{name: "grpc unavailable", err: status.Error(codes.Unavailable, "down"), want: true},
		{name: "grpc wrapped", err: fmt.Errorf("failed to list services: %w", status.Error(codes.DeadlineExceeded, "slow")), want: true},
		{name: "grpc unimplemented", err: status.Error(codes.Unimplemented, "no reflection"), want: false},
		{name: "network", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, want: true},
		{name: "missing file", err: fs.ErrNotExist, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("syntax error"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestFetchWithRetry(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	transient := &StatusError{Code: 502, Status: "502 Bad Gateway"}

	t.Run("recovers", func(t *testing.T) {
		src := &flakySource{failures: 2, err: transient}
		var retries []int
		data, err := fetchWithRetry(context.Background(), src, policy, func(attempt int, _ time.Duration, _ error) {
			retries = append(retries, attempt)
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("ok"), data)
		assert.Equal(t, 3, src.calls)
		assert.Equal(t, []int{1, 2}, retries)
	})

	t.Run("gives up", func(t *testing.T) {
		src := &flakySource{failures: 5, err: transient}
		_, err := fetchWithRetry(context.Background(), src, policy, nil)
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 3, src.calls)
	})

	t.Run("permanent error", func(t *testing.T) {
		src := &flakySource{failures: 5, err: fs.ErrNotExist}
		_, err := fetchWithRetry(context.Background(), src, policy, nil)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Equal(t, 1, src.calls)
	})

	t.Run("no policy", func(t *testing.T) {
		src := &flakySource{failures: 1, err: transient}
		_, err := fetchWithRetry(context.Background(), src, nil, nil)
		assert.Error(t, err)
		assert.Equal(t, 1, src.calls)
	})

	t.Run("context ends during backoff", func(t *testing.T) {
		slow := &RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
		src := &flakySource{failures: 5, err: transient}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := fetchWithRetry(ctx, src, slow, nil)
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 1, src.calls)
	})
}

func TestLoadRetriesTransientHTTPFailures(t *testing.T) {
	data := compileBytes(t)
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Retry = &RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	l := newLoader(t, cfg)

	s, err := l.Load(context.Background(), srv.URL+"/inventory.pb")
	require.NoError(t, err)
	_, ok := s.LookupType(".inventory.v1.Item")
	assert.True(t, ok)
	assert.Equal(t, int32(3), requests.Load())
}

func TestNewRejectsInvalidRetryPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retry = &RetryPolicy{MaxAttempts: 50}
	_, err := New(cfg)
	assert.Error(t, err)

	cfg.Retry = DefaultRetryPolicy()
	_, err = New(cfg)
	assert.NoError(t, err)
}
