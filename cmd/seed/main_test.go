package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryStore().Repositories().Users

	created, err := seed(ctx, users, "demo1234", 4, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	created, err = seed(ctx, users, "other-password", 4, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	admin, err := users.GetByEmail(ctx, "admin@demo.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.NoError(t, auth.ComparePassword(admin.PasswordHash, "demo1234"))
}
