package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title" validate:"required,min=3"`
	Description string                `json:"description" validate:"required,min=5"`
	Category    string                `json:"category" validate:"required,min=2"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body" validate:"required"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
}

// AssignRequest payload. assignedToId must be present; an explicit null clears the assignment.
type AssignRequest struct {
	AssignedToID NullableString `json:"assignedToId" validate:"required"`
}

// NullableString tells a missing JSON key apart from an explicit null.
type NullableString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON is only called when the key is present, null included.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Present = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// TicketResponse is a ticket with requester and assignee resolved.
type TicketResponse struct {
	ID           string                `json:"id"`
	Key          string                `json:"key"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Category     string                `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	RequesterID  string                `json:"requesterId"`
	AssignedToID *string               `json:"assignedToId"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	Requester    *UserResponse         `json:"requester"`
	AssignedTo   *UserResponse         `json:"assignedTo"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Comments []CommentResponse `json:"comments"`
	Events   []EventResponse   `json:"events"`
}

// TicketPageResponse is one page of tickets.
type TicketPageResponse struct {
	Items      []TicketResponse `json:"items"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
}

// CommentResponse represents a comment with its author.
type CommentResponse struct {
	ID        string        `json:"id"`
	TicketID  string        `json:"ticketId"`
	AuthorID  string        `json:"authorId"`
	Body      string        `json:"body"`
	CreatedAt time.Time     `json:"createdAt"`
	Author    *UserResponse `json:"author"`
}

// EventResponse is one audit entry.
type EventResponse struct {
	ID        string                 `json:"id"`
	TicketID  string                 `json:"ticketId"`
	ActorID   string                 `json:"actorId"`
	Type      domain.TicketEventType `json:"type"`
	Metadata  map[string]any         `json:"metadata"`
	CreatedAt time.Time              `json:"createdAt"`
}

// NewTicketResponse maps a ticket view.
func NewTicketResponse(view *domain.TicketView) TicketResponse {
	return TicketResponse{
		ID:           view.ID,
		Key:          view.Key,
		Title:        view.Title,
		Description:  view.Description,
		Category:     view.Category,
		Priority:     view.Priority,
		Status:       view.Status,
		RequesterID:  view.RequesterID,
		AssignedToID: view.AssignedToID,
		CreatedAt:    view.CreatedAt,
		UpdatedAt:    view.UpdatedAt,
		Requester:    summaryResponse(view.Requester),
		AssignedTo:   summaryResponse(view.AssignedTo),
	}
}

// NewTicketDetailResponse maps the full read model.
func NewTicketDetailResponse(detail *domain.TicketDetail) TicketDetailResponse {
	comments := make([]CommentResponse, 0, len(detail.Comments))
	for i := range detail.Comments {
		comments = append(comments, NewCommentResponse(&detail.Comments[i]))
	}
	events := make([]EventResponse, 0, len(detail.Events))
	for _, e := range detail.Events {
		metadata := e.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		events = append(events, EventResponse{
			ID:        e.ID,
			TicketID:  e.TicketID,
			ActorID:   e.ActorID,
			Type:      e.Type,
			Metadata:  metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	return TicketDetailResponse{
		TicketResponse: NewTicketResponse(&detail.TicketView),
		Comments:       comments,
		Events:         events,
	}
}

// NewTicketPageResponse maps a listing page.
func NewTicketPageResponse(page *domain.TicketPage) TicketPageResponse {
	items := make([]TicketResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, NewTicketResponse(&page.Items[i]))
	}
	return TicketPageResponse{
		Items:      items,
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
}

// NewCommentResponse maps a comment view.
func NewCommentResponse(view *domain.CommentView) CommentResponse {
	return CommentResponse{
		ID:        view.ID,
		TicketID:  view.TicketID,
		AuthorID:  view.AuthorID,
		Body:      view.Body,
		CreatedAt: view.CreatedAt,
		Author:    summaryResponse(view.Author),
	}
}
