package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jaylordlagud2022/affiliate-portal/internal/logging"
)

// Server is the lifecycle of an echo server (or anything shaped like one).
type Server interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// ServerService adapts a Server to suture.Service.
type ServerService struct {
	name            string
	addr            string
	server          Server
	shutdownTimeout time.Duration
}

// NewServerService wraps server listening on addr.
func NewServerService(name, addr string, server Server, shutdownTimeout time.Duration) *ServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &ServerService{
		name:            name,
		addr:            addr,
		server:          server,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve runs the server until ctx is canceled, then shuts it down.
// http.ErrServerClosed is treated as a clean stop.
func (s *ServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logging.Info().Str("service", s.name).Str("addr", s.addr).Msg("server started")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s failed: %w", s.name, err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown failed: %w", s.name, err)
		}
		<-errCh
		logging.Info().Str("service", s.name).Msg("server stopped")
		return ctx.Err()
	}
}

// String names the service in supervisor events.
func (s *ServerService) String() string {
	return s.name
}
