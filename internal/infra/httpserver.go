package infra

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServer owns the listening http.Server for cmd/api.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer applies the configured timeouts to the handler. Synchronous
// generation requests can outlive the write timeout, so the write timeout is
// widened to the worst-case poll duration when SYNC_GENERATION is on.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	writeTimeout := cfg.HTTPWriteTimeout
	if cfg.Generation.Sync {
		worst := cfg.Platform.InitialDelay + time.Duration(cfg.Platform.MaxAttempts)*cfg.Platform.PollInterval + time.Minute
		if worst > writeTimeout {
			writeTimeout = worst
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv}
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
