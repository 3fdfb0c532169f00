package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public user shape.
type UserResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// MeResponse wraps the caller for GET /auth/me.
type MeResponse struct {
	User UserResponse `json:"user"`
}

// NewUserResponse maps an identity.
func NewUserResponse(identity domain.Identity) UserResponse {
	return UserResponse{ID: identity.ID, Name: identity.Name, Email: identity.Email, Role: identity.Role}
}

// NewAuthResponse maps a register or login result.
func NewAuthResponse(result *service.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      NewUserResponse(result.User),
	}
}

func summaryResponse(summary *domain.UserSummary) *UserResponse {
	if summary == nil {
		return nil
	}
	return &UserResponse{ID: summary.ID, Name: summary.Name, Email: summary.Email, Role: summary.Role}
}
