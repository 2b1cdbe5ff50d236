package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/final-year-project/doubtfire-api/internal/clock"
	"github.com/final-year-project/doubtfire-api/internal/config"
	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/internal/events"
	"github.com/final-year-project/doubtfire-api/internal/observability"
	"github.com/final-year-project/doubtfire-api/internal/repository"
)

var epoch = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handler(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store    *repository.MemoryStore
	clock    *clock.Manual
	tickets  *TicketService
	sessions *SessionService
	stats    *StatsService
	metrics  *observability.Metrics
	events   *recordedEvents
}

func statsConfig() config.StatsConfig {
	return config.StatsConfig{
		DataPointLimit:         30,
		DefaultIntervalSeconds: 30,
		DashboardWindowMinutes: 180,
		DashboardBucketSeconds: 60,
		CacheTTLSeconds:        120,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	manual := clock.NewManual(epoch)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	recorded := &recordedEvents{}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, recorded.handler)
	}
	metrics := observability.NewMetrics()

	sessions := NewSessionService(SessionDependencies{
		SessionRepo: store.Sessions(),
		UserRepo:    store.Users(),
		Dispatcher:  dispatcher,
		Clock:       manual,
		Metrics:     metrics,
	})
	f := &fixture{
		store: store,
		clock: manual,
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:  store.Tickets(),
			ProjectRepo: store.Projects(),
			HistoryRepo: store.TicketHistory(),
			Dispatcher:  dispatcher,
			Clock:       manual,
			Metrics:     metrics,
		}),
		sessions: sessions,
		stats: NewStatsService(StatsDependencies{
			TicketRepo: store.Tickets(),
			Sessions:   sessions,
			Clock:      manual,
			Config:     statsConfig(),
			Metrics:    metrics,
		}),
		metrics: metrics,
		events:  recorded,
	}
	return f
}

// addStudent registers a student with one project (id = 100+userID) and one task.
func (f *fixture) addStudent(userID int64) *domain.Project {
	f.store.PutUser(domain.User{ID: userID, Username: "student" + string(rune('0'+userID%10)), Role: domain.RoleStudent})
	project := domain.Project{ID: 100 + userID, UserID: userID, UnitID: 1}
	f.store.PutProject(project)
	f.store.PutTask(domain.Task{ID: 1000 + userID, ProjectID: project.ID, TaskDefinitionID: 7})
	return &project
}

func (f *fixture) addStaff(userID int64, role domain.Role) *domain.User {
	user := domain.User{ID: userID, Username: "staff" + string(rune('0'+userID%10)), Role: role}
	f.store.PutUser(user)
	return &user
}
