package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

const defaultWebhookTimeout = 5 * time.Second

// notifyChannel is a bit set of outbound channels for one event type.
type notifyChannel uint8

const (
	channelEmail notifyChannel = 1 << iota
	channelWebhook
)

// notificationRoutes decides which channels hear about each ticket event.
var notificationRoutes = []struct {
	eventType events.EventType
	channels  notifyChannel
}{
	{events.EventTicketCreated, channelEmail | channelWebhook},
	{events.EventTicketStatusChanged, channelEmail | channelWebhook},
	{events.EventTicketAssigned, channelWebhook},
	{events.EventTicketCommentAdded, channelEmail},
}

// NotificationService fans committed ticket events out to email and webhook channels.
// Email is recorded in the log only; webhooks are POSTed as JSON.
type NotificationService struct {
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	emailFrom      string
	webhookURL     string
	webhookTimeout time.Duration
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:     dispatcher,
		logger:         logger,
		emailFrom:      strings.TrimSpace(cfg.EmailFrom),
		webhookURL:     strings.TrimSpace(cfg.WebhookURL),
		webhookTimeout: defaultWebhookTimeout,
	}
}

// RegisterHandlers subscribes the service to every routed event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, route := range notificationRoutes {
		channels := route.channels
		n.dispatcher.Subscribe(route.eventType, func(ctx context.Context, event events.Event) error {
			return n.notify(ctx, event, channels)
		})
	}
}

func (n *NotificationService) notify(ctx context.Context, event events.Event, channels notifyChannel) error {
	n.logger.Info("ticket notification", eventFields(event)...)

	var errs []error
	if channels&channelEmail != 0 && n.emailFrom != "" {
		n.logger.Info("email notification",
			zap.String("from", n.emailFrom),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_key", event.TicketKey))
	}
	if channels&channelWebhook != 0 && n.webhookURL != "" {
		if err := n.postWebhook(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// postWebhook delivers event as JSON. The request timeout never outlives ctx's deadline.
func (n *NotificationService) postWebhook(ctx context.Context, event events.Event) error {
	timeout := n.webhookTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("webhook %s: %w", event.Type, context.DeadlineExceeded)
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(n.webhookURL).
		JSON(event).
		Set("X-Helpdesk-Event", string(event.Type)).
		Timeout(timeout)
	status, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook %s: %w", event.Type, errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook %s: unexpected status %d", event.Type, status)
	}
	n.logger.Debug("webhook delivered", zap.String("event_type", string(event.Type)), zap.Int("status", status))
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("ticket_key", event.TicketKey),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload),
	}
}
