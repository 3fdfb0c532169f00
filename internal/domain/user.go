package domain

import "time"

// User is an account that can log in; its role decides ticket visibility.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the public projection embedded in ticket responses.
type UserSummary struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// Summary returns the public projection of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
