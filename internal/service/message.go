package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
	"github.com/jaylordlagud2022/affiliate-portal/internal/hub"
	"github.com/jaylordlagud2022/affiliate-portal/internal/logging"
	"github.com/jaylordlagud2022/affiliate-portal/internal/metrics"
	"github.com/jaylordlagud2022/affiliate-portal/internal/protocol"
)

// RouteResult describes what happened to a routed message after it was recorded.
type RouteResult struct {
	Delivered bool   `json:"delivered"`
	Outcome   string `json:"outcome"`
}

// Route records a message from one participant to another and forwards it
// to the receiver's live connection when there is one. Delivery is
// best-effort: an offline receiver is not an error, and nothing is queued.
func (s *Service) Route(ctx context.Context, from, to, body string) (*domain.ChatMessage, RouteResult, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	switch {
	case from == "":
		return nil, RouteResult{}, domain.ErrSenderRequired
	case to == "":
		return nil, RouteResult{}, domain.ErrReceiverRequired
	case body == "":
		return nil, RouteResult{}, domain.ErrBodyRequired
	}

	sender, ok := s.hub.FindIdentityByEmail(from)
	if !ok {
		sender = domain.NewIdentity(from, "", "")
	}

	msg := domain.NewChatMessage(sender, to, body, s.now())

	if err := s.store.Append(ctx, to, msg); err != nil {
		return nil, RouteResult{}, fmt.Errorf("failed to record message for receiver: %w", err)
	}
	if err := s.store.Append(ctx, from, msg); err != nil {
		return nil, RouteResult{}, fmt.Errorf("failed to record message for sender: %w", err)
	}
	metrics.MessagesRouted.Inc()

	result := s.deliver(msg)
	metrics.DeliveriesTotal.WithLabelValues(result.Outcome).Inc()

	logging.Debug().
		Str("message_id", msg.ID).
		Str("from", from).
		Str("to", to).
		Str("outcome", result.Outcome).
		Msg("message routed")
	return &msg, result, nil
}

func (s *Service) deliver(msg domain.ChatMessage) RouteResult {
	conn, ok := s.hub.FindConnectionByEmail(msg.ReceiverEmail)
	if !ok {
		return RouteResult{Outcome: metrics.DeliveryOffline}
	}

	data, err := protocol.Encode(protocol.NewReceiveMessage(msg))
	if err != nil {
		logging.Error().Err(err).Str("message_id", msg.ID).Msg("failed to encode receive_message")
		return RouteResult{Outcome: metrics.DeliveryDropped}
	}

	switch err := s.hub.Deliver(conn, data); {
	case err == nil:
		return RouteResult{Delivered: true, Outcome: metrics.DeliveryDelivered}
	case errors.Is(err, hub.ErrBufferFull):
		// A receiver that cannot keep up is disconnected.
		logging.Warn().Str("conn_id", conn.ID).Str("email", msg.ReceiverEmail).Msg("send buffer full, closing connection")
		s.Disconnect(conn.ID)
		return RouteResult{Outcome: metrics.DeliveryDropped}
	default:
		return RouteResult{Outcome: metrics.DeliveryOffline}
	}
}

// History returns email's recorded messages. It never returns nil on success.
func (s *Service) History(ctx context.Context, email string, limit int, before string) ([]domain.ChatMessage, error) {
	messages, err := s.store.History(ctx, strings.TrimSpace(email), limit, before)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return messages, nil
}

// Stats is a point-in-time view of the relay.
type Stats struct {
	Connections  int `json:"connections"`
	Online       int `json:"online"`
	Identities   int `json:"identities"`
	Participants int `json:"participants"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	participants, err := s.store.Participants(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count participants: %w", err)
	}
	return Stats{
		Connections:  s.hub.ConnectionCount(),
		Online:       s.hub.OnlineCount(),
		Identities:   s.hub.IdentityCount(),
		Participants: participants,
	}, nil
}
