package http

import (
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/final-year-project/doubtfire-api/internal/api/http/handlers"
	"github.com/final-year-project/doubtfire-api/internal/auth"
	"github.com/final-year-project/doubtfire-api/internal/authz"
	"github.com/final-year-project/doubtfire-api/internal/clock"
	"github.com/final-year-project/doubtfire-api/internal/config"
	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/internal/events"
	"github.com/final-year-project/doubtfire-api/internal/observability"
	"github.com/final-year-project/doubtfire-api/internal/persistence"
	"github.com/final-year-project/doubtfire-api/internal/repository"
	"github.com/final-year-project/doubtfire-api/internal/service"
)

var epoch = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	app    *fiber.App
	store  *repository.MemoryStore
	clock  *clock.Manual
	tokens *auth.TokenManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	manual := clock.NewManual(epoch)
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	gate, err := authz.NewGate(metrics, logger)
	require.NoError(t, err)

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store.Tickets(),
		ProjectRepo: store.Projects(),
		HistoryRepo: store.TicketHistory(),
		Dispatcher:  dispatcher,
		Clock:       manual,
	})
	sessions := service.NewSessionService(service.SessionDependencies{
		SessionRepo: store.Sessions(),
		UserRepo:    store.Users(),
		Dispatcher:  dispatcher,
		Clock:       manual,
	})
	stats := service.NewStatsService(service.StatsDependencies{
		TicketRepo: store.Tickets(),
		Sessions:   sessions,
		Clock:      manual,
		Config: config.StatsConfig{
			DataPointLimit:         30,
			DefaultIntervalSeconds: 30,
			DashboardWindowMinutes: 180,
			DashboardBucketSeconds: 60,
		},
		Metrics: metrics,
	})

	tokens := auth.NewTokenManager("test-secret", 60)
	app := NewApp("helpdesk-test", logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-test", "test", &persistence.Postgres{}, nil),
		Tickets:        handlers.NewTicketsHandler(tickets, gate),
		Sessions:       handlers.NewSessionsHandler(sessions, gate, manual),
		Stats:          handlers.NewStatsHandler(stats, gate),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
		Metrics:        metrics.Handler(),
	})

	h := &harness{t: t, app: app, store: store, clock: manual, tokens: tokens}
	h.user(1, domain.RoleStudent)
	h.user(2, domain.RoleStudent)
	h.user(10, domain.RoleTutor)
	h.user(11, domain.RoleTutor)
	h.user(20, domain.RoleConvenor)
	store.PutProject(domain.Project{ID: 101, UserID: 1, UnitID: 1})
	store.PutProject(domain.Project{ID: 102, UserID: 2, UnitID: 1})
	store.PutTask(domain.Task{ID: 1001, ProjectID: 101, TaskDefinitionID: 7})
	return h
}

func (h *harness) user(id int64, role domain.Role) {
	h.store.PutUser(domain.User{ID: id, Username: string(role) + string(rune('0'+id%10)), Role: role})
}

type apiResponse struct {
	status int
	header map[string]string
	body   map[string]any
}

func (r apiResponse) data() map[string]any {
	data, _ := r.body["data"].(map[string]any)
	return data
}

func (r apiResponse) list() []any {
	list, _ := r.body["data"].([]any)
	return list
}

func (h *harness) do(method, path string, asUser int64, body string) apiResponse {
	h.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if asUser != 0 {
		// The role claim is ignored; the stored user role is authoritative.
		token, _, err := h.tokens.GenerateToken(asUser, domain.RoleStudent)
		require.NoError(h.t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	out := apiResponse{status: resp.StatusCode, header: map[string]string{}}
	for key := range resp.Header {
		out.header[key] = resp.Header.Get(key)
	}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(h.t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func TestHelpdeskRequiresAuthentication(t *testing.T) {
	h := newHarness(t)

	resp := h.do(fiber.MethodGet, "/helpdesk/tickets", 0, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	assert.Equal(t, "UNAUTHORIZED", resp.body["code"])
	assert.Equal(t, "missing authorization header", resp.body["error"])

	resp = h.do(fiber.MethodGet, "/helpdesk/tickets", 99, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
}

func TestUnknownRouteUsesErrorFormat(t *testing.T) {
	h := newHarness(t)
	resp := h.do(fiber.MethodGet, "/nope", 0, "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.Equal(t, "NOT_FOUND", resp.body["code"])
	assert.NotEmpty(t, resp.header["X-Request-Id"])
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)

	resp := h.do(fiber.MethodPost, "/helpdesk/tickets", 1, `{"project_id":101,"task_definition_id":7,"description":"stuck on 2.1P"}`)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	ticket := resp.data()
	assert.Equal(t, "open", ticket["state"])
	assert.Equal(t, float64(1001), ticket["task_id"])
	assert.Equal(t, false, ticket["is_closed"])
	id := int64(ticket["id"].(float64))
	path := "/helpdesk/tickets/" + itoa(id)

	resp = h.do(fiber.MethodPost, "/helpdesk/tickets", 1, `{"project_id":101}`)
	assert.Equal(t, fiber.StatusConflict, resp.status)
	assert.Equal(t, "DUPLICATE_OPEN_TICKET", resp.body["code"])

	resp = h.do(fiber.MethodGet, path, 2, "")
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	assert.Equal(t, "NOT_AUTHORIZED", resp.body["code"])

	resp = h.do(fiber.MethodGet, path, 10, "")
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = h.do(fiber.MethodDelete, path+"?resolve=true", 1, "")
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	h.clock.Advance(12 * time.Minute)
	resp = h.do(fiber.MethodDelete, path+"?resolve=true", 10, "")
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	assert.Equal(t, "resolved", resp.data()["state"])
	assert.Equal(t, 12.0, resp.data()["minutes_to_resolve"])

	resp = h.do(fiber.MethodGet, path+"/history", 10, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	require.Len(t, resp.list(), 1)
	entry := resp.list()[0].(map[string]any)
	assert.Equal(t, "open", entry["old_state"])
	assert.Equal(t, "resolved", entry["new_state"])
	assert.Equal(t, float64(10), entry["actor_id"])
}

func TestStudentClosesOwnTicket(t *testing.T) {
	h := newHarness(t)

	resp := h.do(fiber.MethodPost, "/helpdesk/tickets", 2, `{"project_id":102}`)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	path := "/helpdesk/tickets/" + itoa(int64(resp.data()["id"].(float64)))

	resp = h.do(fiber.MethodDelete, path, 2, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "closed", resp.data()["state"])
	assert.Nil(t, resp.data()["resolved_at"])
	assert.Nil(t, resp.data()["minutes_to_resolve"])
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t)

	resp := h.do(fiber.MethodPost, "/helpdesk/tickets", 1, `{"description":"no project"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "VALIDATION_FAILED", resp.body["code"])
	details, _ := resp.body["details"].(map[string]any)
	assert.Equal(t, "is required", details["project_id"])

	resp = h.do(fiber.MethodPost, "/helpdesk/tickets", 1, `{"project_id":101,"task_definition_id":99}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "INVALID_REFERENCE", resp.body["code"])

	resp = h.do(fiber.MethodPost, "/helpdesk/tickets", 1, `{"project_id":102}`)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = h.do(fiber.MethodPost, "/helpdesk/tickets", 1, `{"project_id":999}`)
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	resp = h.do(fiber.MethodGet, "/helpdesk/tickets/abc", 10, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
}

func TestListTicketsAuthorization(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, fiber.StatusCreated, h.do(fiber.MethodPost, "/helpdesk/tickets", 1, `{"project_id":101}`).status)
	require.Equal(t, fiber.StatusCreated, h.do(fiber.MethodPost, "/helpdesk/tickets", 2, `{"project_id":102}`).status)

	resp := h.do(fiber.MethodGet, "/helpdesk/tickets", 1, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	require.Len(t, resp.list(), 1)
	assert.Equal(t, float64(1), resp.list()[0].(map[string]any)["user_id"])

	resp = h.do(fiber.MethodGet, "/helpdesk/tickets?user_id=2", 1, "")
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = h.do(fiber.MethodGet, "/helpdesk/tickets?filter=unresolved", 10, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.list(), 2)

	resp = h.do(fiber.MethodGet, "/helpdesk/tickets?filter=pending", 10, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
}

func TestSessionsOverHTTP(t *testing.T) {
	h := newHarness(t)
	clockOff := `{"clock_off_time":"2024-03-04T12:00:00Z"}`

	resp := h.do(fiber.MethodPost, "/helpdesk/sessions", 10, clockOff)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	assert.Equal(t, true, resp.data()["clocked_on"])
	sessionPath := "/helpdesk/sessions/" + itoa(int64(resp.data()["id"].(float64)))

	resp = h.do(fiber.MethodPost, "/helpdesk/sessions", 10, clockOff)
	assert.Equal(t, fiber.StatusConflict, resp.status)
	assert.Equal(t, "ALREADY_ON_DUTY", resp.body["code"])

	resp = h.do(fiber.MethodPost, "/helpdesk/sessions", 1, clockOff)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = h.do(fiber.MethodPost, "/helpdesk/sessions", 10, `{"clock_off_time":"2024-03-04T12:00:00Z","user_id":11}`)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = h.do(fiber.MethodPost, "/helpdesk/sessions", 20, `{"clock_off_time":"2024-03-04T12:00:00Z","user_id":11}`)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	assert.Equal(t, float64(11), resp.data()["user_id"])

	resp = h.do(fiber.MethodPost, "/helpdesk/sessions", 20, `{"clock_off_time":"2024-03-04T08:00:00Z"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = h.do(fiber.MethodGet, "/helpdesk/sessions/tutors", 1, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.list(), 2)

	resp = h.do(fiber.MethodDelete, sessionPath, 11, "")
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	h.clock.Advance(time.Hour)
	resp = h.do(fiber.MethodDelete, sessionPath, 10, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, false, resp.data()["clocked_on"])

	resp = h.do(fiber.MethodGet, "/helpdesk/sessions?is_active=true", 10, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	require.Len(t, resp.list(), 1)
	assert.Equal(t, float64(11), resp.list()[0].(map[string]any)["user_id"])

	resp = h.do(fiber.MethodGet, "/helpdesk/sessions", 1, "")
	assert.Equal(t, fiber.StatusForbidden, resp.status)
}

func TestStatsOverHTTP(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, fiber.StatusCreated,
		h.do(fiber.MethodPost, "/helpdesk/sessions", 10, `{"clock_off_time":"2024-03-04T09:05:00Z"}`).status)
	require.Equal(t, fiber.StatusCreated, h.do(fiber.MethodPost, "/helpdesk/tickets", 1, `{"project_id":101}`).status)
	h.clock.Advance(10 * time.Minute)
	require.Equal(t, fiber.StatusOK, h.do(fiber.MethodDelete, "/helpdesk/tickets/1?resolve=true", 10, "").status)
	require.Equal(t, fiber.StatusCreated, h.do(fiber.MethodPost, "/helpdesk/tickets", 2, `{"project_id":102}`).status)

	resp := h.do(fiber.MethodGet, "/helpdesk/stats/tickets", 1, "")
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = h.do(fiber.MethodGet, "/helpdesk/stats/tickets", 10, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, float64(1), resp.data()["resolved_count"])
	assert.Equal(t, float64(1), resp.data()["number_unresolved"])
	assert.Equal(t, 10.0, resp.data()["average_resolve_time_in_mins"])
	assert.Equal(t, 10.0, resp.data()["average_wait_time_in_mins"])

	resp = h.do(fiber.MethodGet, "/helpdesk/stats/tickets?from=yesterday", 10, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = h.do(fiber.MethodGet, "/helpdesk/stats/dashgraph", 10, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.data()["unresolved"], 180)

	report := "/helpdesk/stats?from=2024-03-04T09:00:00Z&to=2024-03-04T09:20:00Z&interval=60"
	resp = h.do(fiber.MethodGet, report, 10, "")
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	assert.NotNil(t, resp.data()["graph_data"])
	assert.NotNil(t, resp.data()["tickets"])
	assert.NotContains(t, resp.data(), "sessions")

	resp = h.do(fiber.MethodGet, report, 20, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	require.Contains(t, resp.data(), "sessions")
	sessions := resp.data()["sessions"].(map[string]any)
	assert.Equal(t, map[string]any{"average_duration_hours": 0.08, "count": float64(1)}, sessions["10"])

	resp = h.do(fiber.MethodGet, "/helpdesk/stats?from=2024-03-04T00:00:00Z&to=2024-03-04T09:00:00Z&interval=60", 10, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "INTERVAL_TOO_SMALL", resp.body["code"])
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp := h.do(fiber.MethodGet, "/health/ready", 0, "")
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "ready", resp.body["status"])

	h.do(fiber.MethodGet, "/health/live", 0, "")
	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	metricsResp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	raw, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `helpdesk_http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
