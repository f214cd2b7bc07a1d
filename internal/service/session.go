package service

import (
	"context"
	"fmt"

	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
	"github.com/jaylordlagud2022/affiliate-portal/internal/hub"
	"github.com/jaylordlagud2022/affiliate-portal/internal/logging"
	"github.com/jaylordlagud2022/affiliate-portal/internal/metrics"
)

// Connect attaches a freshly accepted connection. It has no identity until
// it registers.
func (s *Service) Connect(conn *hub.Connection) {
	s.hub.Attach(conn)
	metrics.ConnectionsActive.Inc()
}

// Register binds an identity to the connection. Identity is caller-asserted
// and is not verified. The first registration of an email creates its
// conversation history.
func (s *Service) Register(ctx context.Context, connID, email, name, avatar string) (domain.Identity, error) {
	identity := domain.NewIdentity(email, name, avatar)

	firstSeen, err := s.hub.Register(connID, identity)
	if err != nil {
		return domain.Identity{}, err
	}
	if firstSeen {
		if err := s.store.Ensure(ctx, identity.Email); err != nil {
			return domain.Identity{}, fmt.Errorf("failed to create conversation: %w", err)
		}
	}

	metrics.Registrations.Inc()
	logging.Info().
		Str("conn_id", connID).
		Str("email", identity.Email).
		Str("name", identity.DisplayName).
		Bool("first_seen", firstSeen).
		Msg("identity registered")
	return identity, nil
}

// Disconnect drops the connection from the directory. History is kept.
func (s *Service) Disconnect(connID string) {
	if s.hub.Unregister(connID) {
		metrics.ConnectionsActive.Dec()
		logging.Info().Str("conn_id", connID).Msg("connection closed")
	}
}
