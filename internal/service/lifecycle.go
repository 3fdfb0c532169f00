package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// lifecycle holds what the ticket and assignment services share: the store, the
// post-commit dispatcher and the audit helpers.
type lifecycle struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func newLifecycle(store repository.Store, dispatcher events.Dispatcher, logger *zap.Logger) lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return lifecycle{store: store, dispatcher: dispatcher, logger: logger}
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// validTicketID rejects ids that cannot exist so the store never sees malformed uuids.
func validTicketID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ticketNotFound(id)
	}
	return nil
}

func ticketNotFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
}

// loadTicket fetches a ticket, optionally locking it, and translates repository errors.
func loadTicket(ctx context.Context, repos repository.Repositories, id string, forUpdate bool) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if forUpdate {
		ticket, err = repos.Tickets.GetByIDForUpdate(ctx, id)
	} else {
		ticket, err = repos.Tickets.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ticketNotFound(id)
		}
		return nil, err
	}
	return ticket, nil
}

// appendEvent writes one audit entry inside the caller's transaction.
func appendEvent(ctx context.Context, repos repository.Repositories, ticketID, actorID string, eventType domain.TicketEventType, metadata map[string]any) (domain.TicketEvent, error) {
	event := domain.TicketEvent{
		ID:       uuid.NewString(),
		TicketID: ticketID,
		ActorID:  actorID,
		Type:     eventType,
		Metadata: metadata,
	}
	if err := repos.Events.Create(ctx, &event); err != nil {
		return domain.TicketEvent{}, err
	}
	return event, nil
}

// publish announces a committed audit entry. Failures are logged only.
func (l lifecycle) publish(ctx context.Context, entry domain.TicketEvent, ticketKey string) {
	if l.dispatcher == nil {
		return
	}
	event, ok := events.FromTicketEvent(entry, ticketKey)
	if !ok {
		return
	}
	if err := l.dispatcher.Publish(ctx, event); err != nil {
		l.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// mapStoreError converts anything that is not already a DomainError into an internal error.
func mapStoreError(err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewInternalError(err)
}

// views resolves requester and assignee summaries for tickets with one lookup.
func views(ctx context.Context, users repository.UserRepository, tickets []domain.Ticket) ([]domain.TicketView, error) {
	ids := make([]string, 0, len(tickets)*2)
	seen := map[string]struct{}{}
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, t := range tickets {
		add(t.RequesterID)
		if t.AssignedToID != nil {
			add(*t.AssignedToID)
		}
	}
	sort.Strings(ids)

	summaries, err := users.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]domain.TicketView, 0, len(tickets))
	for _, t := range tickets {
		view := domain.TicketView{Ticket: t}
		if s, ok := summaries[t.RequesterID]; ok {
			requester := s
			view.Requester = &requester
		}
		if t.AssignedToID != nil {
			if s, ok := summaries[*t.AssignedToID]; ok {
				assignee := s
				view.AssignedTo = &assignee
			}
		}
		result = append(result, view)
	}
	return result, nil
}

func (l lifecycle) view(ctx context.Context, ticket *domain.Ticket) (*domain.TicketView, error) {
	result, err := views(ctx, l.store.Repositories().Users, []domain.Ticket{*ticket})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &result[0], nil
}

func nullable(id *string) any {
	if id == nil {
		return nil
	}
	return *id
}
