package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/mentor-queue/internal/api/http/handlers"
	"github.com/spec-kit/mentor-queue/internal/auth"
	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/observability"
	"github.com/spec-kit/mentor-queue/internal/repository/memory"
	"github.com/spec-kit/mentor-queue/internal/service"
	"github.com/spec-kit/mentor-queue/internal/session"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

const frontendURL = "http://frontend.test"

// tokenResolver maps provider tokens straight to identities.
type tokenResolver map[string]domain.Identity

func (r tokenResolver) Resolve(_ context.Context, token string) (*domain.Identity, error) {
	identity, ok := r[token]
	if !ok {
		return nil, apperrors.NewUnauthenticated("invalid session", nil)
	}
	return &identity, nil
}

var identities = tokenResolver{
	"low":      {SubjectID: "low-1", DisplayName: "Lou", Privilege: 1},
	"hacker":   {SubjectID: "hacker-1", DisplayName: "Hana", Email: "hana@example.com", Privilege: 1},
	"mentor-a": {SubjectID: "mentor-a", DisplayName: "Ada", Email: "ada@example.com", Privilege: 2},
	"mentor-b": {SubjectID: "mentor-b", DisplayName: "Bea", Email: "bea@example.com", Privilege: 2},
	"admin":    {SubjectID: "admin-1", DisplayName: "Root", Email: "root@example.com", Privilege: 3},
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	app   *fiber.App
	store *memory.Store
}

func newTestServer(t *testing.T, minAccess int, checks ...handlers.HealthCheck) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	st := memory.NewStore()
	sessions := session.NewMemoryStore(time.Hour)
	metrics := observability.NewMetrics()

	mw := auth.NewAuthMiddleware(auth.AuthMiddlewareDependencies{
		Resolver: identities,
		Sessions: sessions,
		Users:    st.Users(),
		Config:   auth.MiddlewareConfig{MinAccess: minAccess, MinAdmin: 3, LoginURL: "http://auth.test/login"},
		Logger:   logger,
	})
	queue := service.NewQueueService(service.QueueDependencies{
		TicketRepo:  st.Tickets(),
		UserRepo:    st.Users(),
		HistoryRepo: st.History(),
		Logger:      logger,
	})
	admin := service.NewAdminService(service.AdminDependencies{
		TicketRepo:  st.Tickets(),
		UserRepo:    st.Users(),
		HistoryRepo: st.History(),
		Metrics:     metrics,
		Logger:      logger,
	})
	accounts := service.NewAccountService(service.AccountDependencies{
		UserRepo: st.Users(),
		Logger:   logger,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, MiddlewareConfig{Timeout: time.Second, AllowOrigin: frontendURL})
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("mentor-queue", "test", checks...),
		Queue:  handlers.NewQueueHandler(queue),
		Admin:  handlers.NewAdminHandler(admin),
		Auth: handlers.NewAuthHandler(handlers.AuthHandlerDependencies{
			Middleware: mw,
			Sessions:   sessions,
			Accounts:   accounts,
			URLs: handlers.AuthURLs{
				FrontendURL: frontendURL,
				BackendURL:  "http://api.test",
				LoginURL:    "http://auth.test/login",
			},
			Logger: logger,
		}),
		AuthMiddleware: mw,
		MinAdmin:       3,
	})
	return &testServer{app: app, store: st}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*stdhttp.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.AddCookie(&stdhttp.Cookie{Name: auth.SessionCookie, Value: token})
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, payload
}

func errorCode(t *testing.T, payload []byte) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	return body.Error.Code
}

func TestQueueRejectsPrivilegeBelowMinimum(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, payload := srv.do(t, fiber.MethodGet, "/queue/get", "low", nil)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(t, payload))
}

func TestQueueRequiresLogin(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, payload := srv.do(t, fiber.MethodGet, "/queue/get", "", nil)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeUnauthenticated, errorCode(t, payload))
}

func TestCreateAndListRoundTrip(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, payload := srv.do(t, fiber.MethodPost, "/queue/create", "mentor-a", map[string]any{
		"question": "Why does my parser loop?",
		"content":  "It **never** ends",
		"location": "Table 12",
		"tags":     []string{"go", "parsing"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(payload))

	resp, payload = srv.do(t, fiber.MethodGet, "/queue/get", "mentor-a", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var tickets []map[string]any
	require.NoError(t, json.Unmarshal(payload, &tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, "Table 12", tickets[0]["location"])
	assert.Equal(t, []any{"go", "parsing"}, tickets[0]["tags"])
	assert.Equal(t, "Ada", tickets[0]["creator"])
	assert.Contains(t, tickets[0]["content_html"], "<strong>never</strong>")
}

func TestCreateKeepsMarkupCharacters(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, payload := srv.do(t, fiber.MethodPost, "/queue/create", "mentor-a", map[string]any{
		"question": "Why does std::vector<int> not compile?",
		"content":  "see `main.cpp`",
		"location": "Room <B>12",
		"tags":     []string{"wifi", "<iostream>", "c++"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(payload))

	resp, payload = srv.do(t, fiber.MethodGet, "/queue/get", "mentor-a", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(payload), "<iostream>")

	var tickets []map[string]any
	require.NoError(t, json.Unmarshal(payload, &tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, "Why does std::vector<int> not compile?", tickets[0]["question"])
	assert.Equal(t, "Room <B>12", tickets[0]["location"])
	assert.Equal(t, []any{"wifi", "<iostream>", "c++"}, tickets[0]["tags"])
}

func TestCreateRequiresFields(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, payload := srv.do(t, fiber.MethodPost, "/queue/create", "mentor-a", map[string]any{
		"question": "Only a question",
	})

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, payload))
}

func TestSecondClaimIsRejected(t *testing.T) {
	srv := newTestServer(t, 2)
	resp, _ := srv.do(t, fiber.MethodPost, "/queue/create", "mentor-a", map[string]any{
		"question": "q", "content": "c", "location": "l",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, _ = srv.do(t, fiber.MethodPost, "/queue/claim", "mentor-a", map[string]any{"id": "1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, payload := srv.do(t, fiber.MethodPost, "/queue/claim", "mentor-b", map[string]any{"id": 1})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeAlreadyClaimed, errorCode(t, payload))

	resp, payload = srv.do(t, fiber.MethodGet, "/queue/claimed", "mentor-a", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"claimed":1}`, string(payload))

	stored, err := srv.store.Tickets().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "mentor-a", *stored.ClaimantID)
}

func TestHackerCannotClaim(t *testing.T) {
	srv := newTestServer(t, 1)
	resp, _ := srv.do(t, fiber.MethodPost, "/queue/create", "hacker", map[string]any{
		"question": "q", "content": "c", "location": "l",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, payload := srv.do(t, fiber.MethodPost, "/queue/claim", "hacker", map[string]any{"id": 1})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(t, payload))

	var body struct {
		Error struct {
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Contains(t, body.Error.Message, "mentor, admin")
	assert.Equal(t, "hacker", body.Error.Details["current_role"])
}

func TestResolveAndFeedbackFlow(t *testing.T) {
	srv := newTestServer(t, 1)
	srv.do(t, fiber.MethodPost, "/queue/create", "hacker", map[string]any{
		"question": "q", "content": "c", "location": "l",
	})
	resp, _ := srv.do(t, fiber.MethodPost, "/queue/claim", "mentor-a", map[string]any{"id": 1})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, payload := srv.do(t, fiber.MethodPost, "/queue/resolve", "mentor-a", map[string]any{"id": 1})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Ticket resolved! Awaiting user feedback"}`, string(payload))

	resp, payload = srv.do(t, fiber.MethodPost, "/queue/feedback", "hacker", map[string]any{
		"id": 1, "rating": 4.5, "review": "clear explanation",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(payload))

	resp, payload = srv.do(t, fiber.MethodPost, "/queue/feedback", "hacker", map[string]any{"id": 1, "rating": 3})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeFeedbackGiven, errorCode(t, payload))

	resp, payload = srv.do(t, fiber.MethodGet, "/queue/ranking", "mentor-a", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var ranking []map[string]any
	require.NoError(t, json.Unmarshal(payload, &ranking))
	require.Len(t, ranking, 1)
	assert.Equal(t, "Ada", ranking[0]["name"])
	assert.EqualValues(t, 1, ranking[0]["num_resolved_tickets"])
}

func TestUnknownTicketIsNotFound(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, payload := srv.do(t, fiber.MethodPost, "/queue/claim", "mentor-a", map[string]any{"id": 99})

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(t, payload))
}

func TestAdminRoutesRequireAdminPrivilege(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, _ := srv.do(t, fiber.MethodGet, "/admin/ticketdata", "mentor-a", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, payload := srv.do(t, fiber.MethodGet, "/admin/ticketdata", "admin", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"total":0,"averageRating":0,"averageTime":0}`, string(payload))
}

func TestWhoAmILoggedOut(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, payload := srv.do(t, fiber.MethodGet, "/auth/whoami", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"loggedIn":false}`, string(payload))

	resp, payload = srv.do(t, fiber.MethodGet, "/auth/whoami", "low", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"loggedIn":false,"error":"Insufficient permissions"}`, string(payload))
}

func TestWhoAmILoggedIn(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, payload := srv.do(t, fiber.MethodGet, "/auth/whoami", "mentor-a", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, true, body["loggedIn"])
	assert.Equal(t, "mentor", body["role"])
}

func TestLoginRedirectsToProvider(t *testing.T) {
	srv := newTestServer(t, 2)

	resp, _ := srv.do(t, fiber.MethodGet, "/auth/login?return_url=https://evil.test/", "", nil)

	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	location := resp.Header.Get(fiber.HeaderLocation)
	assert.True(t, strings.HasPrefix(location, "http://auth.test/login?returnTo="))
	assert.NotContains(t, location, "evil.test")
}

func TestHealthReadiness(t *testing.T) {
	srv := newTestServer(t, 2, handlers.HealthCheck{Name: "store", Pinger: memory.NewStore()})
	resp, _ := srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	srv = newTestServer(t, 2, handlers.HealthCheck{Name: "postgres", Pinger: failingPinger{}})
	resp, payload := srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, apperrors.CodeUnavailable, errorCode(t, payload))
}
