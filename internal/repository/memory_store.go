package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// MemoryStore is a process-local Store. All access is serialized by one mutex and a
// transaction holds it for its whole duration; rollback restores a snapshot.
type MemoryStore struct {
	mu       sync.Mutex
	last     time.Time
	users    map[string]domain.User
	tickets  map[string]domain.Ticket
	comments []domain.TicketComment
	events   []domain.TicketEvent
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		tickets: make(map[string]domain.Ticket),
	}
}

type memorySnapshot struct {
	users    map[string]domain.User
	tickets  map[string]domain.Ticket
	comments []domain.TicketComment
	events   []domain.TicketEvent
}

// Repositories returns repositories that lock per call.
func (s *MemoryStore) Repositories() Repositories {
	return s.repos(false)
}

// WithinTx runs fn under the store lock and restores the previous state if fn fails.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(ctx, s.repos(true))
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) repos(inTx bool) Repositories {
	m := &memoryRepos{store: s, inTx: inTx}
	return Repositories{
		Users:    memoryUsers{m},
		Tickets:  memoryTickets{m},
		Comments: memoryComments{m},
		Events:   memoryEvents{m},
	}
}

func (s *MemoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		users:    make(map[string]domain.User, len(s.users)),
		tickets:  make(map[string]domain.Ticket, len(s.tickets)),
		comments: append([]domain.TicketComment(nil), s.comments...),
		events:   append([]domain.TicketEvent(nil), s.events...),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.tickets {
		snap.tickets[k] = v
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.users = snap.users
	s.tickets = snap.tickets
	s.comments = snap.comments
	s.events = snap.events
}

// now returns strictly increasing timestamps so ordering by time is total.
func (s *MemoryStore) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

type memoryRepos struct {
	store *MemoryStore
	inTx  bool
}

func (m *memoryRepos) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.store.mu.Lock()
	return m.store.mu.Unlock
}

type memoryUsers struct{ *memoryRepos }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	defer r.lock()()
	s := r.store
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("%w: users_pkey", ErrDuplicate)
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: users_email_key", ErrDuplicate)
		}
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	defer r.lock()()
	user, ok := r.store.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	defer r.lock()()
	for _, user := range r.store.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) Summaries(_ context.Context, ids []string) (map[string]domain.UserSummary, error) {
	defer r.lock()()
	result := make(map[string]domain.UserSummary, len(ids))
	for _, id := range ids {
		if user, ok := r.store.users[id]; ok {
			result[id] = user.Summary()
		}
	}
	return result, nil
}

type memoryTickets struct{ *memoryRepos }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	defer r.lock()()
	s := r.store
	if _, exists := s.tickets[ticket.ID]; exists {
		return fmt.Errorf("%w: tickets_pkey", ErrDuplicate)
	}
	for _, existing := range s.tickets {
		if existing.Key == ticket.Key {
			return fmt.Errorf("%w: tickets_ticket_key_key", ErrDuplicate)
		}
	}
	if _, ok := s.users[ticket.RequesterID]; !ok {
		return fmt.Errorf("requester %s: %w", ticket.RequesterID, ErrNotFound)
	}
	now := s.now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	defer r.lock()()
	s := r.store
	stored, ok := s.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if ticket.AssignedToID != nil {
		if _, ok := s.users[*ticket.AssignedToID]; !ok {
			return fmt.Errorf("assignee %s: %w", *ticket.AssignedToID, ErrNotFound)
		}
	}
	stored.Status = ticket.Status
	stored.AssignedToID = copyString(ticket.AssignedToID)
	stored.UpdatedAt = s.now()
	ticket.UpdatedAt = stored.UpdatedAt
	s.tickets[ticket.ID] = stored
	return nil
}

func (r memoryTickets) Touch(_ context.Context, id string) error {
	defer r.lock()()
	s := r.store
	stored, ok := s.tickets[id]
	if !ok {
		return ErrNotFound
	}
	stored.UpdatedAt = s.now()
	s.tickets[id] = stored
	return nil
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	defer r.lock()()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := cloneTicket(ticket)
	return &found, nil
}

func (r memoryTickets) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	defer r.lock()()
	matched := r.matching(filter)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r memoryTickets) Count(_ context.Context, filter TicketFilter) (int, error) {
	defer r.lock()()
	return len(r.matching(filter)), nil
}

func (r memoryTickets) matching(filter TicketFilter) []domain.Ticket {
	var search string
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	result := []domain.Ticket{}
	for _, ticket := range r.store.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && ticket.Priority != *filter.Priority {
			continue
		}
		if filter.Category != nil && ticket.Category != *filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(ticket.Title), search) &&
			!strings.Contains(strings.ToLower(ticket.Description), search) {
			continue
		}
		result = append(result, cloneTicket(ticket))
	}
	return result
}

type memoryComments struct{ *memoryRepos }

func (r memoryComments) Create(_ context.Context, comment *domain.TicketComment) error {
	defer r.lock()()
	s := r.store
	if _, ok := s.tickets[comment.TicketID]; !ok {
		return fmt.Errorf("ticket %s: %w", comment.TicketID, ErrNotFound)
	}
	comment.CreatedAt = s.now()
	s.comments = append(s.comments, *comment)
	return nil
}

func (r memoryComments) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	defer r.lock()()
	result := []domain.TicketComment{}
	for _, comment := range r.store.comments {
		if comment.TicketID == ticketID {
			result = append(result, comment)
		}
	}
	return result, nil
}

type memoryEvents struct{ *memoryRepos }

func (r memoryEvents) Create(_ context.Context, event *domain.TicketEvent) error {
	defer r.lock()()
	s := r.store
	if _, ok := s.tickets[event.TicketID]; !ok {
		return fmt.Errorf("ticket %s: %w", event.TicketID, ErrNotFound)
	}
	event.CreatedAt = s.now()
	stored := *event
	stored.Metadata = cloneMetadata(event.Metadata)
	s.events = append(s.events, stored)
	return nil
}

func (r memoryEvents) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketEvent, error) {
	defer r.lock()()
	result := []domain.TicketEvent{}
	for _, event := range r.store.events {
		if event.TicketID == ticketID {
			event.Metadata = cloneMetadata(event.Metadata)
			result = append(result, event)
		}
	}
	return result, nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.AssignedToID = copyString(t.AssignedToID)
	return t
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
