package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. RequesterID never changes after creation.
type Ticket struct {
	ID           string
	Key          string
	Title        string
	Description  string
	Category     string
	Priority     TicketPriority
	Status       TicketStatus
	RequesterID  string
	AssignedToID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TicketView is a ticket with its requester and assignee resolved.
type TicketView struct {
	Ticket
	Requester  *UserSummary
	AssignedTo *UserSummary
}

// TicketDetail is the full read model returned by GetTicket.
type TicketDetail struct {
	TicketView
	Comments []CommentView
	Events   []TicketEvent
}

// TicketPage is one page of a filtered ticket listing.
type TicketPage struct {
	Items      []TicketView
	Page       int
	Limit      int
	Total      int
	TotalPages int
}
