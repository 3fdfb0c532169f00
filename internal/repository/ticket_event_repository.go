package repository

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketEventRepository stores audit entries. There is no update or delete.
type TicketEventRepository interface {
	Create(ctx context.Context, event *domain.TicketEvent) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEvent, error)
}

type ticketEventRepository struct {
	db DBTX
}

// NewTicketEventRepository builds repository.
func NewTicketEventRepository(db DBTX) TicketEventRepository {
	return &ticketEventRepository{db: db}
}

func (r *ticketEventRepository) Create(ctx context.Context, event *domain.TicketEvent) error {
	const query = `
        INSERT INTO ticket_events (id, ticket_id, actor_id, type, metadata)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	err := r.db.QueryRow(ctx, query,
		event.ID,
		event.TicketID,
		event.ActorID,
		event.Type,
		metadata,
	).Scan(&event.CreatedAt)
	return mapError(err)
}

func (r *ticketEventRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEvent, error) {
	const query = `
        SELECT id, ticket_id, actor_id, type, metadata, created_at
        FROM ticket_events WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketEvent{}
	for rows.Next() {
		var event domain.TicketEvent
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.ActorID,
			&event.Type,
			&event.Metadata,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
