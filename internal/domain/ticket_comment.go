package domain

import "time"

// TicketComment is an append-only note on a ticket.
type TicketComment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	TicketComment
	Author *UserSummary
}
