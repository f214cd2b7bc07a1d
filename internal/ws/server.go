// Package ws provides WebSocket server functionality for chat clients.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/jaylordlagud2022/affiliate-portal/internal/config"
	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
	"github.com/jaylordlagud2022/affiliate-portal/internal/hub"
	"github.com/jaylordlagud2022/affiliate-portal/internal/logging"
	"github.com/jaylordlagud2022/affiliate-portal/internal/metrics"
	"github.com/jaylordlagud2022/affiliate-portal/internal/protocol"
	"github.com/jaylordlagud2022/affiliate-portal/internal/service"
)

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	svc      *service.Service
	upgrader websocket.Upgrader
	ctx      context.Context
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, svc *service.Service) *Server {
	return &Server{
		cfg: cfg,
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.OriginAllowed(r.Header.Get("Origin"))
			},
		},
		ctx: context.Background(),
	}
}

// RegisterRoutes mounts the upgrade endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logging.Warn().Err(err).Str("remote_addr", c.RealIP()).Msg("failed to upgrade websocket")
		return nil
	}

	conn := s.svc.Hub().NewConnection(ws)
	s.svc.Connect(conn)
	logging.Info().Str("conn_id", conn.ID).Str("remote_addr", c.RealIP()).Msg("connection opened")

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads frames from one connection and handles them in order.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.svc.Disconnect(conn.ID)
		conn.Close()
	}()

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
	}

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("conn_id", conn.ID).Msg("websocket read error")
			}
			return
		}

		if limiter != nil && !limiter.Allow() {
			s.sendError(conn, "", protocol.ErrorCodeRateLimited, "too many events")
			continue
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes queued frames and keepalive pings to the connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Debug().Err(err).Str("conn_id", conn.ID).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming frames to the matching handler.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	base, err := protocol.Decode(data)
	if err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeRegister:
		s.handleRegister(conn, data)
	case protocol.TypeSendMessage:
		s.handleSendMessage(conn, data)
	default:
		s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleRegister binds the connection to the identity in the frame.
func (s *Server) handleRegister(conn *hub.Connection, data []byte) {
	var msg protocol.RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid register message")
		return
	}

	identity, err := s.svc.Register(s.ctx, conn.ID, msg.Email, msg.Name, msg.Avatar)
	if err != nil {
		s.sendError(conn, msg.RequestID, errorCode(err), err.Error())
		return
	}

	s.send(conn, protocol.NewRegisterAck(identity, msg.RequestID))
}

// handleSendMessage routes a chat message. The sender gets nothing back on
// success.
func (s *Server) handleSendMessage(conn *hub.Connection, data []byte) {
	var msg protocol.SendMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid send_message message")
		return
	}

	if _, _, err := s.svc.Route(s.ctx, msg.From, msg.To, msg.Message); err != nil {
		s.sendError(conn, msg.RequestID, errorCode(err), err.Error())
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmailRequired),
		errors.Is(err, domain.ErrSenderRequired),
		errors.Is(err, domain.ErrReceiverRequired),
		errors.Is(err, domain.ErrBodyRequired):
		return protocol.ErrorCodeMissingField
	default:
		return protocol.ErrorCodeInternalError
	}
}

// sendError sends an error frame to a connection.
func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	metrics.RejectedEvents.WithLabelValues(code).Inc()
	s.send(conn, protocol.NewError(code, message, requestID))
}

func (s *Server) send(conn *hub.Connection, v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		logging.Error().Err(err).Str("conn_id", conn.ID).Msg("failed to encode frame")
		return
	}
	if err := s.svc.Hub().Deliver(conn, data); err != nil {
		logging.Debug().Err(err).Str("conn_id", conn.ID).Msg("frame not queued")
	}
}
