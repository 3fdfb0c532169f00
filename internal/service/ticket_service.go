package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	lifecycle
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// TicketListQuery describes listing filters. Blank strings and nil pointers are unset.
type TicketListQuery struct {
	Status   string
	Priority string
	Category string
	Query    string
	Page     *int
	Limit    *int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{lifecycle: newLifecycle(deps.Store, deps.Dispatcher, deps.Logger)}
}

// CreateTicket opens a ticket for the caller and records TICKET_CREATED.
func (s *TicketService) CreateTicket(ctx context.Context, caller domain.Identity, input TicketCreateInput) (*domain.TicketView, error) {
	if !domain.Can(caller.Role, domain.ActionCreateTicket) {
		return nil, apperrors.NewForbidden("not allowed to create tickets")
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Key:         generateTicketKey(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Priority:    input.Priority,
		Status:      domain.TicketStatusOpen,
		RequesterID: caller.ID,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if err := validateTicket(ticket); err != nil {
		return nil, err
	}

	var created domain.TicketEvent
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		var err error
		created, err = appendEvent(ctx, repos, ticket.ID, caller.ID, domain.EventTicketCreated, map[string]any{
			"title": ticket.Title,
		})
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("ticket_key", ticket.Key))
	s.publish(ctx, created, ticket.Key)
	return s.view(ctx, ticket)
}

func validateTicket(ticket *domain.Ticket) error {
	details := map[string]any{}
	if len([]rune(ticket.Title)) < 3 {
		details["title"] = "must be at least 3 characters"
	}
	if len([]rune(ticket.Description)) < 5 {
		details["description"] = "must be at least 5 characters"
	}
	if len([]rune(ticket.Category)) < 2 {
		details["category"] = "must be at least 2 characters"
	}
	if !ticket.Priority.Valid() {
		details["priority"] = "must be one of LOW, MEDIUM, HIGH, URGENT"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details)
	}
	return nil
}

// ListTickets returns one page of tickets visible to the caller, most recently updated first.
func (s *TicketService) ListTickets(ctx context.Context, caller domain.Identity, query TicketListQuery) (*domain.TicketPage, error) {
	filter, err := buildFilter(caller, query)
	if err != nil {
		return nil, err
	}
	pagination := NormalizePagination(query.Page, query.Limit)
	filter.Limit = pagination.Limit
	filter.Offset = pagination.Offset()

	repos := s.store.Repositories()
	total, err := repos.Tickets.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	tickets, err := repos.Tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	items, err := views(ctx, repos.Users, tickets)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return &domain.TicketPage{
		Items:      items,
		Page:       pagination.Page,
		Limit:      pagination.Limit,
		Total:      total,
		TotalPages: TotalPages(total, pagination.Limit),
	}, nil
}

func buildFilter(caller domain.Identity, query TicketListQuery) (repository.TicketFilter, error) {
	var filter repository.TicketFilter
	if !domain.Can(caller.Role, domain.ActionListAll) {
		requesterID := caller.ID
		filter.RequesterID = &requesterID
	}

	details := map[string]any{}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := domain.TicketStatus(strings.ToUpper(raw))
		if status.Valid() {
			filter.Status = &status
		} else {
			details["status"] = "must be one of OPEN, IN_PROGRESS, RESOLVED, CLOSED"
		}
	}
	if raw := strings.TrimSpace(query.Priority); raw != "" {
		priority := domain.TicketPriority(strings.ToUpper(raw))
		if priority.Valid() {
			filter.Priority = &priority
		} else {
			details["priority"] = "must be one of LOW, MEDIUM, HIGH, URGENT"
		}
	}
	if len(details) > 0 {
		return filter, apperrors.NewValidationError("invalid filter", details)
	}
	if category := strings.TrimSpace(query.Category); category != "" {
		filter.Category = &category
	}
	if term := strings.TrimSpace(query.Query); term != "" {
		filter.SearchTerm = &term
	}
	return filter, nil
}

// GetTicket returns the ticket with its people, comments and audit trail.
func (s *TicketService) GetTicket(ctx context.Context, caller domain.Identity, id string) (*domain.TicketDetail, error) {
	if err := validTicketID(id); err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	ticket, err := loadTicket(ctx, repos, id, false)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !domain.CanAccessTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	comments, err := repos.Comments.ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	audit, err := repos.Events.ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	view, err := s.view(ctx, ticket)
	if err != nil {
		return nil, err
	}
	withAuthors, err := commentViews(ctx, repos.Users, comments)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return &domain.TicketDetail{
		TicketView: *view,
		Comments:   withAuthors,
		Events:     audit,
	}, nil
}

func commentViews(ctx context.Context, users repository.UserRepository, comments []domain.TicketComment) ([]domain.CommentView, error) {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	summaries, err := users.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]domain.CommentView, 0, len(comments))
	for _, c := range comments {
		view := domain.CommentView{TicketComment: c}
		if s, ok := summaries[c.AuthorID]; ok {
			author := s
			view.Author = &author
		}
		result = append(result, view)
	}
	return result, nil
}

// AddComment appends a comment, records COMMENT_ADDED and bumps the ticket's updated time.
func (s *TicketService) AddComment(ctx context.Context, caller domain.Identity, id, body string) (*domain.CommentView, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewFieldError("body", "must not be empty")
	}
	if err := validTicketID(id); err != nil {
		return nil, err
	}

	comment := &domain.TicketComment{
		ID:       uuid.NewString(),
		TicketID: id,
		AuthorID: caller.ID,
		Body:     body,
	}
	var (
		ticketKey string
		added     domain.TicketEvent
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, id, false)
		if err != nil {
			return err
		}
		if !domain.CanCommentOnTicket(caller, ticket) {
			return apperrors.NewForbidden("access denied")
		}
		ticketKey = ticket.Key

		if err := repos.Comments.Create(ctx, comment); err != nil {
			return err
		}
		if err := repos.Tickets.Touch(ctx, id); err != nil {
			return err
		}
		added, err = appendEvent(ctx, repos, id, caller.ID, domain.EventCommentAdded, map[string]any{
			"length": len([]rune(body)),
		})
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.publish(ctx, added, ticketKey)

	view := &domain.CommentView{TicketComment: *comment}
	author, err := s.store.Repositories().Users.GetByID(ctx, caller.ID)
	if err == nil {
		summary := author.Summary()
		view.Author = &summary
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("load comment author", zap.Error(err))
	}
	return view, nil
}

// UpdateStatus moves a ticket to any status and records STATUS_CHANGED {from,to}.
func (s *TicketService) UpdateStatus(ctx context.Context, caller domain.Identity, id string, status domain.TicketStatus) (*domain.TicketView, error) {
	if !domain.Can(caller.Role, domain.ActionUpdateStatus) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	if !status.Valid() {
		return nil, apperrors.NewFieldError("status", "must be one of OPEN, IN_PROGRESS, RESOLVED, CLOSED")
	}
	if err := validTicketID(id); err != nil {
		return nil, err
	}

	var (
		ticket  *domain.Ticket
		changed domain.TicketEvent
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = loadTicket(ctx, repos, id, true)
		if err != nil {
			return err
		}
		from := ticket.Status
		ticket.Status = status
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		changed, err = appendEvent(ctx, repos, id, caller.ID, domain.EventStatusChanged, map[string]any{
			"from": string(from),
			"to":   string(status),
		})
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_id", id),
		zap.Any("from", changed.Metadata["from"]),
		zap.String("to", string(status)))
	s.publish(ctx, changed, ticket.Key)
	return s.view(ctx, ticket)
}
