package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// HTTP/2 configuration constants
const (
	defaultMaxConcurrentStreams = 100
	defaultMaxReadFrameSize     = 16 * 1024         // 16KB
	defaultIdleTimeout          = 120 * time.Second // 2 minutes
	defaultReadHeaderTimeout    = 10 * time.Second  // Slowloris mitigation
)

// NewServer creates an HTTP server that accepts HTTP/1.1 and cleartext HTTP/2 (h2c), which
// reflection clients need for their bidirectional stream.
func NewServer(addr string, handler http.Handler) *http.Server {
	h2s := &http2.Server{
		MaxConcurrentStreams: defaultMaxConcurrentStreams,
		MaxReadFrameSize:     defaultMaxReadFrameSize,
		IdleTimeout:          defaultIdleTimeout,
	}

	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(handler, h2s),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
}

// Serve runs server on lis until ctx is done, then shuts it down, waiting at most
// gracefulTimeout for in-flight requests.
func Serve(ctx context.Context, server *http.Server, lis net.Listener, gracefulTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
