package domain

// Role enumerates the access level of a user.
type Role string

const (
	RoleRequester Role = "REQUESTER"
	RoleAgent     Role = "AGENT"
	RoleAdmin     Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// Action names a capability checked by the policy.
type Action string

const (
	ActionCreateTicket Action = "ticket:create"
	ActionListAll      Action = "ticket:list_all"
	ActionReadAny      Action = "ticket:read_any"
	ActionCommentAny   Action = "ticket:comment_any"
	ActionUpdateStatus Action = "ticket:update_status"
	ActionAssignTicket Action = "ticket:assign"
)

var rolePermissions = map[Role]map[Action]struct{}{
	RoleRequester: {
		ActionCreateTicket: {},
	},
	RoleAgent: {
		ActionCreateTicket: {},
		ActionListAll:      {},
		ActionReadAny:      {},
		ActionCommentAny:   {},
		ActionUpdateStatus: {},
		ActionAssignTicket: {},
	},
	RoleAdmin: {
		ActionCreateTicket: {},
		ActionListAll:      {},
		ActionReadAny:      {},
		ActionCommentAny:   {},
		ActionUpdateStatus: {},
		ActionAssignTicket: {},
	},
}

// Can is the single authorization decision point: it maps (role, action) to allow/deny.
// Unknown roles are denied everything.
func Can(role Role, action Action) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, allowed := perms[action]
	return allowed
}

// CanAccessTicket reports whether the caller may read the ticket.
func CanAccessTicket(caller Identity, ticket *Ticket) bool {
	return ownsOr(caller, ticket, ActionReadAny)
}

// CanCommentOnTicket reports whether the caller may add a comment to the ticket.
func CanCommentOnTicket(caller Identity, ticket *Ticket) bool {
	return ownsOr(caller, ticket, ActionCommentAny)
}

func ownsOr(caller Identity, ticket *Ticket, action Action) bool {
	if ticket == nil {
		return false
	}
	if ticket.RequesterID == caller.ID {
		return true
	}
	return Can(caller.Role, action)
}
