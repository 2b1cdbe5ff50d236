package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/final-year-project/doubtfire-api/internal/config"
	"github.com/final-year-project/doubtfire-api/internal/events"
	"github.com/final-year-project/doubtfire-api/internal/observability"
)

type capturePublisher struct {
	published []events.Event
	err       error
}

func (p *capturePublisher) Publish(_ context.Context, event events.Event) error {
	p.published = append(p.published, event)
	return p.err
}

func TestNotificationServiceForwardsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.New(core))
	publisher := &capturePublisher{}
	metrics := observability.NewMetrics()

	n := NewNotificationService(dispatcher, publisher, metrics, zap.New(core), config.NotificationConfig{LogEvents: true})
	n.RegisterHandlers()

	ctx := context.Background()
	ticketID := int64(4)
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "a", Type: events.EventTicketCreated, TicketID: &ticketID}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "b", Type: events.EventSessionClockedOn}))

	require.Len(t, publisher.published, 2)
	assert.Equal(t, events.EventTicketCreated, publisher.published[0].Type)
	assert.Equal(t, 2, logs.FilterMessage("helpdesk event").Len())

	count, err := testutil.GatherAndCount(metrics.Registry(), "helpdesk_ticket_events_total", "helpdesk_session_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	publisher.err = errors.New("broker down")
	assert.ErrorContains(t, dispatcher.Publish(ctx, events.Event{ID: "c", Type: events.EventTicketClosed}), "broker down")
	assert.Equal(t, 1, logs.FilterMessage("event handler failed").Len())
}

func TestNotificationServiceWithoutPublisher(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	n := NewNotificationService(dispatcher, nil, observability.NewMetrics(), zap.NewNop(), config.NotificationConfig{})
	n.RegisterHandlers()
	assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketResolved}))
}

func TestTicketWriteSucceedsAndCountsFailedForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.addStudent(1)

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	publisher := &capturePublisher{err: errors.New("broker down")}
	NewNotificationService(dispatcher, publisher, f.metrics, zap.NewNop(), config.NotificationConfig{}).RegisterHandlers()
	tickets := NewTicketService(TicketDependencies{
		TicketRepo:  f.store.Tickets(),
		ProjectRepo: f.store.Projects(),
		HistoryRepo: f.store.TicketHistory(),
		Dispatcher:  dispatcher,
		Clock:       f.clock,
		Metrics:     f.metrics,
	})

	ticket, err := tickets.Create(ctx, project.UserID, project, TicketCreateInput{Description: "need help"})
	require.NoError(t, err)
	require.Len(t, publisher.published, 1)

	_, err = tickets.Close(ctx, project.UserID, ticket)
	require.NoError(t, err)

	expected := `
# HELP helpdesk_event_delivery_failures_total Domain events with at least one failed handler or broker forward, by type
# TYPE helpdesk_event_delivery_failures_total counter
helpdesk_event_delivery_failures_total{event="ticket_closed"} 1
helpdesk_event_delivery_failures_total{event="ticket_created"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected), "helpdesk_event_delivery_failures_total"))
}
