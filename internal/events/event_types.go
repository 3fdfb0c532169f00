package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
)

// AllEventTypes lists every type the ticket service publishes.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketCommentAdded,
	EventTicketStatusChanged,
	EventTicketAssigned,
}

var typeByAuditType = map[domain.TicketEventType]EventType{
	domain.EventTicketCreated:   EventTicketCreated,
	domain.EventCommentAdded:    EventTicketCommentAdded,
	domain.EventStatusChanged:   EventTicketStatusChanged,
	domain.EventAssignedChanged: EventTicketAssigned,
}

// Event represents a committed ticket change announced to subscribers.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	TicketID  string         `json:"ticket_id"`
	TicketKey string         `json:"ticket_key"`
	ActorID   string         `json:"actor_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// FromTicketEvent converts a stored audit entry into a published event.
func FromTicketEvent(entry domain.TicketEvent, ticketKey string) (Event, bool) {
	eventType, ok := typeByAuditType[entry.Type]
	if !ok {
		return Event{}, false
	}
	return Event{
		ID:        entry.ID,
		Type:      eventType,
		TicketID:  entry.TicketID,
		TicketKey: ticketKey,
		ActorID:   entry.ActorID,
		Timestamp: entry.CreatedAt,
		Payload:   entry.Metadata,
	}, true
}
