package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.published))
	for _, e := range d.published {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store       *repository.MemoryStore
	tokens      *auth.TokenManager
	dispatcher  *recordingDispatcher
	auth        *AuthService
	tickets     *TicketService
	assignments *AssignmentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	return newTestEnvWithStore(t, store, store)
}

// newTestEnvWithStore lets tests swap the store used by the lifecycle services.
func newTestEnvWithStore(t *testing.T, memory *repository.MemoryStore, lifecycleStore repository.Store) *testEnv {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	dispatcher := &recordingDispatcher{}
	return &testEnv{
		store:       memory,
		tokens:      tokens,
		dispatcher:  dispatcher,
		auth:        NewAuthService(AuthDependencies{Store: memory, Tokens: tokens, BcryptCost: 4}),
		tickets:     NewTicketService(TicketDependencies{Store: lifecycleStore, Dispatcher: dispatcher}),
		assignments: NewAssignmentService(AssignmentDependencies{Store: lifecycleStore, Dispatcher: dispatcher}),
	}
}

func (e *testEnv) user(t *testing.T, name string, role domain.Role) domain.Identity {
	t.Helper()
	hash, err := auth.HashPassword("secret1", 4)
	require.NoError(t, err)
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        NormalizeEmail(name + "@x.com"),
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, e.store.Repositories().Users.Create(context.Background(), user))
	return domain.IdentityOf(user)
}

func (e *testEnv) ticket(t *testing.T, caller domain.Identity, title string) *domain.TicketView {
	t.Helper()
	view, err := e.tickets.CreateTicket(context.Background(), caller, TicketCreateInput{
		Title:       title,
		Description: "details for " + title,
		Category:    "Hardware",
	})
	require.NoError(t, err)
	return view
}

func (e *testEnv) events(t *testing.T, ticketID string) []domain.TicketEvent {
	t.Helper()
	list, err := e.store.Repositories().Events.ListByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return list
}

// failingEventsStore wraps a store so event writes inside transactions fail.
type failingEventsStore struct {
	*repository.MemoryStore
}

type failingEvents struct {
	repository.TicketEventRepository
}

var errEventWrite = errors.New("event write failed")

func (failingEvents) Create(context.Context, *domain.TicketEvent) error {
	return errEventWrite
}

func (s failingEventsStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return s.MemoryStore.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		repos.Events = failingEvents{repos.Events}
		return fn(ctx, repos)
	})
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
