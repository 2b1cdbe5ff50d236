package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/final-year-project/doubtfire-api/internal/events"
	"github.com/final-year-project/doubtfire-api/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartStatsInvalidation drops the cached dashboard series whenever a ticket
// event changes the numbers behind it.
func StartStatsInvalidation(dispatcher events.Dispatcher, stats *service.StatsService, logger *zap.Logger) {
	if dispatcher == nil || stats == nil {
		return
	}
	for _, eventType := range events.TicketEventTypes {
		dispatcher.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			if err := stats.InvalidateDashboard(ctx); err != nil {
				return err
			}
			logger.Debug("dashboard cache invalidated", zap.String("event_type", string(event.Type)))
			return nil
		})
	}
}
