package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role    Role
		action  Action
		allowed bool
	}{
		{RoleRequester, ActionCreateTicket, true},
		{RoleRequester, ActionListAll, false},
		{RoleRequester, ActionReadAny, false},
		{RoleRequester, ActionUpdateStatus, false},
		{RoleRequester, ActionAssignTicket, false},
		{RoleRequester, ActionCommentAny, false},
		{RoleAgent, ActionCommentAny, true},
		{RoleAdmin, ActionCommentAny, true},
		{RoleAgent, ActionUpdateStatus, true},
		{RoleAgent, ActionAssignTicket, true},
		{RoleAgent, ActionListAll, true},
		{RoleAdmin, ActionUpdateStatus, true},
		{RoleAdmin, ActionReadAny, true},
		{Role("SUPERVISOR"), ActionCreateTicket, false},
		{Role(""), ActionReadAny, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.allowed, Can(tt.role, tt.action))
		})
	}
}

func TestCanAccessTicket(t *testing.T) {
	ticket := &Ticket{ID: "t1", RequesterID: "owner"}

	assert.True(t, CanAccessTicket(Identity{ID: "owner", Role: RoleRequester}, ticket))
	assert.False(t, CanAccessTicket(Identity{ID: "other", Role: RoleRequester}, ticket))
	assert.True(t, CanAccessTicket(Identity{ID: "agent", Role: RoleAgent}, ticket))
	assert.True(t, CanAccessTicket(Identity{ID: "admin", Role: RoleAdmin}, ticket))
	assert.False(t, CanAccessTicket(Identity{ID: "owner", Role: RoleRequester}, nil))
}

func TestCanCommentOnTicket(t *testing.T) {
	ticket := &Ticket{ID: "t1", RequesterID: "owner"}

	assert.True(t, CanCommentOnTicket(Identity{ID: "owner", Role: RoleRequester}, ticket))
	assert.False(t, CanCommentOnTicket(Identity{ID: "other", Role: RoleRequester}, ticket))
	assert.True(t, CanCommentOnTicket(Identity{ID: "agent", Role: RoleAgent}, ticket))
	assert.True(t, CanCommentOnTicket(Identity{ID: "admin", Role: RoleAdmin}, ticket))
	assert.False(t, CanCommentOnTicket(Identity{ID: "agent", Role: Role("GUEST")}, ticket))
	assert.False(t, CanCommentOnTicket(Identity{ID: "owner", Role: RoleRequester}, nil))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, TicketStatusResolved.Valid())
	assert.False(t, TicketStatus("PENDING").Valid())
	assert.True(t, TicketPriorityUrgent.Valid())
	assert.False(t, TicketPriority("low").Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("TEAM_LEAD").Valid())
}
