package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaylordlagud2022/affiliate-portal/internal/hub"
	"github.com/jaylordlagud2022/affiliate-portal/internal/service"
	"github.com/jaylordlagud2022/affiliate-portal/internal/store"
)

func newTestServer(t *testing.T) (*Server, *service.Service) {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })
	svc := service.New(hub.NewHub(8), st)
	return NewServer(svc), svc
}

func TestHealth(t *testing.T) {
	s, svc := newTestServer(t)
	conn := svc.Hub().NewConnection(nil)
	svc.Connect(conn)
	_, err := svc.Register(context.Background(), conn.ID, "alice@example.com", "Alice", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["connections"])
	assert.EqualValues(t, 1, body["participants"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_connections_active")
}

func TestInternalSend(t *testing.T) {
	s, svc := newTestServer(t)
	bob := svc.Hub().NewConnection(nil)
	svc.Connect(bob)
	_, err := svc.Register(context.Background(), bob.ID, "bob@example.com", "Bob", "")
	require.NoError(t, err)

	body := `{"from":"alice@example.com","to":"bob@example.com","message":"hello from the portal"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/send", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.Delivered)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "hello from the portal", resp.Message.Body)
	assert.Len(t, bob.Send, 1)
}

func TestInternalSendValidation(t *testing.T) {
	s, _ := newTestServer(t)

	for _, body := range []string{
		`{"to":"bob@example.com","message":"hi"}`,
		`{"from":"alice@example.com","message":"hi"}`,
		`{"from":"alice@example.com","to":"bob@example.com"}`,
		`{not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/internal/send", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHistoryPagination(t *testing.T) {
	e := echo.New()
	s, svc := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := svc.Route(ctx, "alice@example.com", "bob@example.com", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	get := func(query string) HistoryResponse {
		req := httptest.NewRequest(http.MethodGet, "/v1/conversations/bob@example.com/messages"+query, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("email")
		c.SetParamValues("bob@example.com")

		if err := s.handleHistory(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp HistoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	page := get("?limit=2")
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "m3", page.Messages[0].Body)
	assert.Equal(t, "m4", page.Messages[1].Body)

	page = get("?limit=2&before=" + page.Messages[0].ID)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "m1", page.Messages[0].Body)

	page = get("?limit=2&before=" + page.Messages[0].ID)
	require.Len(t, page.Messages, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, "m0", page.Messages[0].Body)

	all := get("")
	assert.Len(t, all.Messages, 5)
	assert.False(t, all.HasMore)
}

func TestHistoryUnknownEmailIsEmpty(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/nobody@example.com/messages", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[],"has_more":false}`, rec.Body.String())
}

func TestHistoryEncodedEmail(t *testing.T) {
	s, svc := newTestServer(t)
	_, _, err := svc.Route(context.Background(), "alice@example.com", "bob+x@example.com", "hi bob")
	require.NoError(t, err)

	for _, path := range []string{
		"/v1/conversations/bob%2Bx%40example.com/messages",
		"/v1/conversations/bob+x@example.com/messages",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, path)
		var resp HistoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 1, path)
		assert.Equal(t, "hi bob", resp.Messages[0].Body)
		assert.Equal(t, "bob+x@example.com", resp.Messages[0].ReceiverEmail)
	}
}

func TestHistoryBadEscape(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/x/messages", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("email")
	c.SetParamValues("bob%ZZ")

	require.NoError(t, s.handleHistory(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryBadLimit(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/bob@example.com/messages?limit=zero", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
