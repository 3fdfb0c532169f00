package domain

import "time"

// TicketEventType captures what changed in an audit entry.
type TicketEventType string

const (
	EventTicketCreated   TicketEventType = "TICKET_CREATED"
	EventCommentAdded    TicketEventType = "COMMENT_ADDED"
	EventStatusChanged   TicketEventType = "STATUS_CHANGED"
	EventAssignedChanged TicketEventType = "ASSIGNED_CHANGED"
)

// TicketEvent is an immutable audit trail entry. Exactly one is written per ticket mutation,
// in the same transaction as the mutation.
type TicketEvent struct {
	ID        string
	TicketID  string
	ActorID   string
	Type      TicketEventType
	Metadata  map[string]any
	CreatedAt time.Time
}
