package loader

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Default retry configuration constants
const (
	defaultMaxAttempts       = 3
	defaultInitialBackoff    = 100 * time.Millisecond
	defaultMaxBackoff        = 10 * time.Second
	defaultBackoffMultiplier = 2.0
	backoffJitter            = 0.2
)

// RetryPolicy controls how often a failed fetch is retried. Only transient failures are
// retried: unavailable or timed-out reflection servers, HTTP 429 and 5xx responses, and
// network errors.
type RetryPolicy struct {
	// MaxAttempts counts the first attempt. Values below 2 disable retries.
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0,lte=10"`
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"gte=0"`
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration `yaml:"max_backoff" validate:"gte=0"`
	// BackoffMultiplier grows the delay after each retry.
	BackoffMultiplier float64 `yaml:"backoff_multiplier" validate:"gte=0"`
}

// DefaultRetryPolicy returns three attempts with exponential backoff starting at 100ms.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       defaultMaxAttempts,
		InitialBackoff:    defaultInitialBackoff,
		MaxBackoff:        defaultMaxBackoff,
		BackoffMultiplier: defaultBackoffMultiplier,
	}
}

// StatusError is returned by HTTPSource for responses outside 2xx.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string { return "unexpected status " + e.Status }

// backoff returns the delay before retry number attempt (1-based), with ±20% jitter.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := p.InitialBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	multiplier := p.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = defaultBackoffMultiplier
	}

	backoff := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitterRange := backoff * backoffJitter
	maxJitter := int64(2 * jitterRange)
	if maxJitter <= 0 {
		return time.Duration(backoff)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
	if err != nil {
		return time.Duration(backoff)
	}
	return time.Duration(backoff + float64(n.Int64()) - jitterRange)
}

// fetchWithRetry calls src.Fetch until it succeeds, fails permanently, runs out of attempts
// or ctx ends.
func fetchWithRetry(ctx context.Context, src Source, policy *RetryPolicy, onRetry func(attempt int, wait time.Duration, err error)) ([]byte, error) {
	attempts := 1
	if policy != nil && policy.MaxAttempts > 1 {
		attempts = policy.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		data, err := src.Fetch(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if attempt == attempts || !isRetryable(err) || ctx.Err() != nil {
			break
		}

		wait := policy.backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// isRetryable reports whether err is a transient failure.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		switch connectErr.Code() {
		case connect.CodeUnavailable, connect.CodeDeadlineExceeded, connect.CodeResourceExhausted, connect.CodeAborted:
			return true
		default:
			return false
		}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
