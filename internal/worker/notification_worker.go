package worker

import (
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

// StartNotificationWorker registers notification handlers and, when configured, the Kafka
// exporter on the dispatcher.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, exporter *events.KafkaExporter) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if exporter != nil && dispatcher != nil {
		exporter.Register(dispatcher)
	}
}
