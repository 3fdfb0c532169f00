package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type stubResolver struct {
	identities map[string]domain.Identity
}

func (s stubResolver) Resolve(_ context.Context, token string) (*domain.Identity, error) {
	identity, ok := s.identities[token]
	if !ok {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	return &identity, nil
}

func newTestApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"code": domainErr.Code})
		},
	})
	resolver := stubResolver{identities: map[string]domain.Identity{
		"requester-token": {ID: "r1", Role: domain.RoleRequester},
		"agent-token":     {ID: "a1", Role: domain.RoleAgent},
	}}
	mw := NewAuthMiddleware(resolver)

	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return errors.New("identity missing")
		}
		return c.SendString(identity.ID)
	})
	app.Patch("/status", mw.Handle, RequireAction(domain.ActionUpdateStatus), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/open", RequireAuthenticated(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name   string
		method string
		path   string
		header string
		status int
	}{
		{"missing header", http.MethodGet, "/me", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/me", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", http.MethodGet, "/me", "Bearer ", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/me", "Bearer nope", http.StatusUnauthorized},
		{"valid token", http.MethodGet, "/me", "Bearer requester-token", http.StatusOK},
		{"lowercase scheme", http.MethodGet, "/me", "bearer agent-token", http.StatusOK},
		{"requester denied action", http.MethodPatch, "/status", "Bearer requester-token", http.StatusForbidden},
		{"agent allowed action", http.MethodPatch, "/status", "Bearer agent-token", http.StatusOK},
		{"no middleware no identity", http.MethodGet, "/open", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
