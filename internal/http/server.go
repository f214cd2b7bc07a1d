// Package http provides the internal HTTP server for the relay.
package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
	"github.com/jaylordlagud2022/affiliate-portal/internal/logging"
	"github.com/jaylordlagud2022/affiliate-portal/internal/metrics"
	"github.com/jaylordlagud2022/affiliate-portal/internal/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Server is the internal HTTP server for the relay.
type Server struct {
	echo *echo.Echo
	svc  *service.Service
}

// NewServer creates a new internal HTTP server.
func NewServer(svc *service.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(requestLogger)

	s := &Server{
		echo: e,
		svc:  svc,
	}

	// Register routes
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/v1/conversations/:email/messages", s.handleHistory)
	e.POST("/internal/send", s.handleInternalSend)

	return s
}

// Handler returns the router, for tests and for mounting elsewhere.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		status := c.Response().Status
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).Inc()
		logging.Debug().
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", status).
			Msg("request completed")
		return nil
	}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c echo.Context) error {
	stats, err := s.svc.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"connections":  stats.Connections,
		"online":       stats.Online,
		"identities":   stats.Identities,
		"participants": stats.Participants,
	})
}

// HistoryResponse is the body of GET /v1/conversations/:email/messages.
type HistoryResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
	HasMore  bool                 `json:"has_more"`
}

// handleHistory returns a participant's recorded messages, newest page first.
func (s *Server) handleHistory(c echo.Context) error {
	// The router matches on the raw path, so encoded emails arrive escaped.
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid email"})
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email is required"})
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = min(n, maxHistoryLimit)
	}

	// One extra row tells us whether an older page exists.
	messages, err := s.svc.History(c.Request().Context(), email, limit+1, c.QueryParam("before"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[1:]
	}
	return c.JSON(http.StatusOK, HistoryResponse{Messages: messages, HasMore: hasMore})
}

// SendRequest represents the request body for POST /internal/send.
type SendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// SendResponse represents the response for POST /internal/send.
type SendResponse struct {
	OK        bool                `json:"ok"`
	Delivered bool                `json:"delivered"`
	Message   *domain.ChatMessage `json:"message"`
}

// handleInternalSend routes a message on behalf of a server-side caller.
func (s *Server) handleInternalSend(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	msg, res, err := s.svc.Route(c.Request().Context(), req.From, req.To, req.Message)
	if err != nil {
		if isValidationError(err) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		logging.Error().Err(err).Msg("internal send failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to route message"})
	}

	return c.JSON(http.StatusOK, SendResponse{OK: true, Delivered: res.Delivered, Message: msg})
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrSenderRequired) ||
		errors.Is(err, domain.ErrReceiverRequired) ||
		errors.Is(err, domain.ErrBodyRequired)
}
