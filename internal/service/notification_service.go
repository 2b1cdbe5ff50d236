package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/final-year-project/doubtfire-api/internal/config"
	"github.com/final-year-project/doubtfire-api/internal/events"
	"github.com/final-year-project/doubtfire-api/internal/observability"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  events.Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. publisher may be nil when no
// broker is configured.
func NewNotificationService(dispatcher events.Dispatcher, publisher events.Publisher, metrics *observability.Metrics, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	if strings.HasPrefix(string(event.Type), "ticket_") {
		n.metrics.RecordTicketEvent(string(event.Type))
	} else {
		n.metrics.RecordSessionEvent(string(event.Type))
	}

	if n.cfg.LogEvents {
		fields := []zap.Field{
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Any("payload", event.Payload),
		}
		if event.TicketID != nil {
			fields = append(fields, zap.Int64("ticket_id", *event.TicketID))
		}
		if event.SessionID != nil {
			fields = append(fields, zap.Int64("session_id", *event.SessionID))
		}
		n.logger.Info("helpdesk event", fields...)
	}

	if n.publisher == nil {
		return nil
	}
	return n.publisher.Publish(ctx, event)
}
