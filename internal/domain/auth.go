package domain

// Identity is the resolved caller attached to an authenticated request.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IdentityOf projects a user onto its public identity.
func IdentityOf(user *User) Identity {
	return Identity{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}
