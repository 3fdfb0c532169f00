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

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	lifecycle
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{lifecycle: newLifecycle(deps.Store, deps.Dispatcher, deps.Logger)}
}

// AssignTicket sets or clears the assignee and records ASSIGNED_CHANGED {from,to}.
// Any existing user is accepted as assignee.
func (s *AssignmentService) AssignTicket(ctx context.Context, caller domain.Identity, id string, assigneeID *string) (*domain.TicketView, error) {
	if !domain.Can(caller.Role, domain.ActionAssignTicket) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	if err := validTicketID(id); err != nil {
		return nil, err
	}
	if assigneeID != nil {
		trimmed := strings.TrimSpace(*assigneeID)
		if _, err := uuid.Parse(trimmed); err != nil {
			return nil, apperrors.NewFieldError("assignedToId", "must be an existing user id or null")
		}
		assigneeID = &trimmed
	}

	var (
		ticket   *domain.Ticket
		assignee *domain.User
		changed  domain.TicketEvent
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = loadTicket(ctx, repos, id, true)
		if err != nil {
			return err
		}
		if assigneeID != nil {
			assignee, err = repos.Users.GetByID(ctx, *assigneeID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewFieldError("assignedToId", "must be an existing user id or null")
			}
			if err != nil {
				return err
			}
		}

		from := nullable(ticket.AssignedToID)
		ticket.AssignedToID = assigneeID
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		changed, err = appendEvent(ctx, repos, id, caller.ID, domain.EventAssignedChanged, map[string]any{
			"from": from,
			"to":   nullable(assigneeID),
		})
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	if assignee != nil && assignee.Role == domain.RoleRequester {
		s.logger.Warn("ticket assigned to a requester",
			zap.String("ticket_id", id),
			zap.String("assignee_id", assignee.ID))
	}
	s.logger.Info("ticket assignment changed",
		zap.String("ticket_id", id),
		zap.Any("from", changed.Metadata["from"]),
		zap.Any("to", changed.Metadata["to"]))
	s.publish(ctx, changed, ticket.Key)
	return s.view(ctx, ticket)
}
