package service

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func TestCreateTicketDefaults(t *testing.T) {
	env := newTestEnv(t)
	requester := env.user(t, "req", domain.RoleRequester)

	view, err := env.tickets.CreateTicket(context.Background(), requester, TicketCreateInput{
		Title:       "Printer broken",
		Description: "It won't turn on",
		Category:    "Hardware",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, view.Status)
	assert.Equal(t, domain.TicketPriorityMedium, view.Priority)
	assert.Equal(t, requester.ID, view.RequesterID)
	require.NotNil(t, view.Requester)
	assert.Equal(t, requester.Email, view.Requester.Email)
	assert.Nil(t, view.AssignedTo)
	assert.Regexp(t, `^TCK-[0-9A-F]{8}$`, view.Key)

	audit := env.events(t, view.ID)
	require.Len(t, audit, 1)
	assert.Equal(t, domain.EventTicketCreated, audit[0].Type)
	assert.Equal(t, "Printer broken", audit[0].Metadata["title"])
	assert.Equal(t, requester.ID, audit[0].ActorID)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, env.dispatcher.types())
}

func TestCreateTicketValidation(t *testing.T) {
	env := newTestEnv(t)
	requester := env.user(t, "req", domain.RoleRequester)

	tests := []struct {
		name  string
		input TicketCreateInput
		field string
	}{
		{"short title", TicketCreateInput{Title: "ab", Description: "long enough", Category: "IT"}, "title"},
		{"short description", TicketCreateInput{Title: "abc", Description: "    four ", Category: "IT"}, "description"},
		{"short category", TicketCreateInput{Title: "abc", Description: "long enough", Category: " I "}, "category"},
		{"bad priority", TicketCreateInput{Title: "abc", Description: "long enough", Category: "IT", Priority: "ASAP"}, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tickets.CreateTicket(context.Background(), requester, tt.input)
			domainErr := apperrors.ToDomainError(err)
			require.NotNil(t, domainErr)
			assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
			assert.Contains(t, domainErr.Details, tt.field)
		})
	}

	total, err := env.store.Repositories().Tickets.Count(context.Background(), repository.TicketFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateTicketRollsBackWhenEventFails(t *testing.T) {
	memory := repository.NewMemoryStore()
	env := newTestEnvWithStore(t, memory, failingEventsStore{memory})
	requester := env.user(t, "req", domain.RoleRequester)

	_, err := env.tickets.CreateTicket(context.Background(), requester, TicketCreateInput{
		Title: "Printer broken", Description: "It won't turn on", Category: "Hardware",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INTERNAL_ERROR"))

	total, err := memory.Repositories().Tickets.Count(context.Background(), repository.TicketFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, env.dispatcher.types(), "nothing is published for a rolled back write")
}

func TestMutationsRollBackWhenEventFails(t *testing.T) {
	memory := repository.NewMemoryStore()
	good := newTestEnvWithStore(t, memory, memory)
	bad := newTestEnvWithStore(t, memory, failingEventsStore{memory})
	ctx := context.Background()
	requester := good.user(t, "req", domain.RoleRequester)
	agent := good.user(t, "agent", domain.RoleAgent)
	ticket := good.ticket(t, requester, "VPN down")

	_, err := bad.tickets.UpdateStatus(ctx, agent, ticket.ID, domain.TicketStatusClosed)
	require.Error(t, err)
	_, err = bad.assignments.AssignTicket(ctx, agent, ticket.ID, &agent.ID)
	require.Error(t, err)
	_, err = bad.tickets.AddComment(ctx, requester, ticket.ID, "hello")
	require.Error(t, err)

	detail, err := good.tickets.GetTicket(ctx, agent, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, detail.Status)
	assert.Nil(t, detail.AssignedToID)
	assert.Empty(t, detail.Comments)
	assert.Len(t, detail.Events, 1)
	assert.Equal(t, ticket.UpdatedAt, detail.UpdatedAt)
}

func TestListTicketsVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice", domain.RoleRequester)
	bob := env.user(t, "bob", domain.RoleRequester)
	agent := env.user(t, "agent", domain.RoleAgent)
	admin := env.user(t, "admin", domain.RoleAdmin)

	for i := 0; i < 3; i++ {
		env.ticket(t, alice, fmt.Sprintf("alice ticket %d", i))
	}
	for i := 0; i < 2; i++ {
		env.ticket(t, bob, fmt.Sprintf("bob ticket %d", i))
	}

	page, err := env.tickets.ListTickets(ctx, alice, TicketListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	for _, item := range page.Items {
		assert.Equal(t, alice.ID, item.RequesterID)
	}

	for _, caller := range []domain.Identity{agent, admin} {
		page, err = env.tickets.ListTickets(ctx, caller, TicketListQuery{})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		assert.Len(t, page.Items, 5)
	}
}

func TestListTicketsFiltersAndOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	requester := env.user(t, "req", domain.RoleRequester)
	agent := env.user(t, "agent", domain.RoleAgent)

	first := env.ticket(t, requester, "VPN disconnects")
	second := env.ticket(t, requester, "Printer jam")
	_, err := env.tickets.CreateTicket(ctx, requester, TicketCreateInput{
		Title: "Laptop", Description: "battery swollen, vpn client gone", Category: "Hardware", Priority: domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	page, err := env.tickets.ListTickets(ctx, agent, TicketListQuery{Query: "VPN"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total, "q matches title or description case-insensitively")

	page, err = env.tickets.ListTickets(ctx, agent, TicketListQuery{Priority: "urgent"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = env.tickets.UpdateStatus(ctx, agent, first.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)

	page, err = env.tickets.ListTickets(ctx, agent, TicketListQuery{Status: "IN_PROGRESS"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, first.ID, page.Items[0].ID)

	page, err = env.tickets.ListTickets(ctx, agent, TicketListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, first.ID, page.Items[0].ID, "most recently updated first")
	assert.Equal(t, second.ID, page.Items[2].ID)

	_, err = env.tickets.ListTickets(ctx, agent, TicketListQuery{Status: "DONE"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestListTicketsPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	requester := env.user(t, "req", domain.RoleRequester)
	for i := 0; i < 12; i++ {
		env.ticket(t, requester, fmt.Sprintf("ticket %02d", i))
	}

	tests := []struct {
		name       string
		page       *int
		limit      *int
		wantPage   int
		wantLimit  int
		wantItems  int
		totalPages int
	}{
		{"defaults", nil, nil, 1, 10, 10, 2},
		{"second page", intPtr(2), nil, 2, 10, 2, 2},
		{"limit below minimum", nil, intPtr(1), 1, 5, 5, 3},
		{"zero limit", nil, intPtr(0), 1, 5, 5, 3},
		{"limit above maximum", nil, intPtr(500), 1, 50, 12, 1},
		{"negative page", intPtr(-4), intPtr(5), 1, 5, 5, 3},
		{"page past the end", intPtr(9), intPtr(5), 9, 5, 0, 3},
		{"page too large to offset", intPtr(math.MaxInt), intPtr(10), math.MaxInt/10 + 1, 10, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := env.tickets.ListTickets(ctx, requester, TicketListQuery{Page: tt.page, Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Len(t, page.Items, tt.wantItems)
			assert.Equal(t, 12, page.Total)
			assert.Equal(t, tt.totalPages, page.TotalPages)
		})
	}
}

func TestGetTicketAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", domain.RoleRequester)
	stranger := env.user(t, "stranger", domain.RoleRequester)
	agent := env.user(t, "agent", domain.RoleAgent)
	ticket := env.ticket(t, owner, "Printer broken")

	_, err := env.tickets.GetTicket(ctx, stranger, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = env.tickets.GetTicket(ctx, agent, uuid.NewString())
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	_, err = env.tickets.GetTicket(ctx, agent, "not-a-uuid")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	for _, caller := range []domain.Identity{owner, agent} {
		detail, err := env.tickets.GetTicket(ctx, caller, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, detail.ID)
		assert.Len(t, detail.Events, 1)
	}
}

func TestAddComment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", domain.RoleRequester)
	stranger := env.user(t, "stranger", domain.RoleRequester)
	agent := env.user(t, "agent", domain.RoleAgent)
	ticket := env.ticket(t, owner, "Printer broken")

	comment, err := env.tickets.AddComment(ctx, owner, ticket.ID, "  still broken ")
	require.NoError(t, err)
	assert.Equal(t, "still broken", comment.Body)
	require.NotNil(t, comment.Author)
	assert.Equal(t, owner.ID, comment.Author.ID)

	_, err = env.tickets.AddComment(ctx, agent, ticket.ID, "on it")
	require.NoError(t, err)

	_, err = env.tickets.AddComment(ctx, stranger, ticket.ID, "me too")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	_, err = env.tickets.AddComment(ctx, owner, ticket.ID, "   ")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	_, err = env.tickets.AddComment(ctx, owner, uuid.NewString(), "hello")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	detail, err := env.tickets.GetTicket(ctx, owner, ticket.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 2)
	assert.Equal(t, "still broken", detail.Comments[0].Body)
	assert.Equal(t, agent.ID, detail.Comments[1].Author.ID)
	assert.True(t, detail.UpdatedAt.After(ticket.UpdatedAt))

	require.Len(t, detail.Events, 3)
	assert.Equal(t, domain.EventCommentAdded, detail.Events[1].Type)
	assert.Equal(t, 12, detail.Events[1].Metadata["length"])
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", domain.RoleRequester)
	agent := env.user(t, "agent", domain.RoleAgent)
	ticket := env.ticket(t, owner, "Printer broken")

	updated, err := env.tickets.UpdateStatus(ctx, agent, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	assert.Equal(t, owner.ID, updated.RequesterID)

	audit := env.events(t, ticket.ID)
	require.Len(t, audit, 2)
	assert.Equal(t, domain.EventStatusChanged, audit[1].Type)
	assert.Equal(t, map[string]any{"from": "OPEN", "to": "RESOLVED"}, audit[1].Metadata)

	// any status is reachable, including the current one
	_, err = env.tickets.UpdateStatus(ctx, agent, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	_, err = env.tickets.UpdateStatus(ctx, agent, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Len(t, env.events(t, ticket.ID), 4)

	_, err = env.tickets.UpdateStatus(ctx, owner, ticket.ID, domain.TicketStatusClosed)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "owners cannot change status")
	_, err = env.tickets.UpdateStatus(ctx, agent, ticket.ID, "DONE")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	_, err = env.tickets.UpdateStatus(ctx, agent, uuid.NewString(), domain.TicketStatusClosed)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	assert.Equal(t, []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketStatusChanged,
		events.EventTicketStatusChanged,
	}, env.dispatcher.types())
}

func TestAssignTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", domain.RoleRequester)
	agent := env.user(t, "agent", domain.RoleAgent)
	admin := env.user(t, "admin", domain.RoleAdmin)
	ticket := env.ticket(t, owner, "Printer broken")

	assigned, err := env.assignments.AssignTicket(ctx, admin, ticket.ID, &agent.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, agent.ID, assigned.AssignedTo.ID)

	cleared, err := env.assignments.AssignTicket(ctx, agent, ticket.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedToID)
	assert.Nil(t, cleared.AssignedTo)

	audit := env.events(t, ticket.ID)
	require.Len(t, audit, 3)
	assert.Equal(t, map[string]any{"from": nil, "to": agent.ID}, audit[1].Metadata)
	assert.Equal(t, map[string]any{"from": agent.ID, "to": nil}, audit[2].Metadata)

	// a requester is an acceptable assignee
	_, err = env.assignments.AssignTicket(ctx, agent, ticket.ID, &owner.ID)
	require.NoError(t, err)

	_, err = env.assignments.AssignTicket(ctx, owner, ticket.ID, &agent.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	_, err = env.assignments.AssignTicket(ctx, agent, ticket.ID, strPtr(uuid.NewString()))
	domainErr := apperrors.ToDomainError(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	assert.Contains(t, domainErr.Details, "assignedToId")
	_, err = env.assignments.AssignTicket(ctx, agent, ticket.ID, strPtr("nope"))
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	_, err = env.assignments.AssignTicket(ctx, agent, uuid.NewString(), nil)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	assert.Len(t, env.events(t, ticket.ID), 4, "failed calls append nothing")
}

func TestRequesterNeverChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", domain.RoleRequester)
	agent := env.user(t, "agent", domain.RoleAgent)
	ticket := env.ticket(t, owner, "Printer broken")

	_, err := env.tickets.AddComment(ctx, agent, ticket.ID, "looking")
	require.NoError(t, err)
	_, err = env.tickets.UpdateStatus(ctx, agent, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	_, err = env.assignments.AssignTicket(ctx, agent, ticket.ID, &agent.ID)
	require.NoError(t, err)

	detail, err := env.tickets.GetTicket(ctx, owner, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, detail.RequesterID)
	require.Len(t, detail.Events, 4)
	for _, e := range detail.Events {
		assert.Equal(t, ticket.ID, e.TicketID)
	}
}
