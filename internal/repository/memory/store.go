// Package memory keeps the queue in process memory. It backs local
// development when no database is configured, and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/repository"
)

// Store holds users, tickets and history behind one mutex so every
// transition is atomic.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]*domain.Ticket
	users   map[string]*domain.User
	history []domain.TicketHistory
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		nextID:  1,
		tickets: map[int64]*domain.Ticket{},
		users:   map[string]*domain.User{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// PutUser inserts or replaces a full user row.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := cloneUser(&u)
	s.users[u.ID] = &copied
}

// Tickets exposes the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Users exposes the user repository view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// History exposes the ticket history repository view.
func (s *Store) History() repository.TicketHistoryRepository { return historyRepo{s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func cloneUser(u *domain.User) domain.User {
	c := *u
	c.Ratings = append([]float64(nil), u.Ratings...)
	c.Reviews = append([]string(nil), u.Reviews...)
	return c
}

// project copies a ticket and joins the creator's contact fields, as the
// SQL repository does.
func (s *Store) project(t *domain.Ticket) domain.Ticket {
	c := *t
	c.Tags = append([]string{}, t.Tags...)
	c.Images = append([]string{}, t.Images...)
	c.Creator = nil
	if t.CreatorID != nil {
		if u, ok := s.users[*t.CreatorID]; ok {
			c.Creator = &domain.UserContact{Discord: u.Discord, Phone: u.Phone, Preferred: u.Preferred}
		}
	}
	return c
}

type ticketRepo struct{ *Store }

func (s ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID
	s.nextID++
	t.Active = true
	t.Status = domain.StatusPtr(domain.TicketStatusUnclaimed)
	t.CreatedAt = s.now()
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Images == nil {
		t.Images = []string{}
	}
	stored := *t
	stored.Creator = nil
	s.tickets[t.ID] = &stored
	return nil
}

func (s ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	c := s.project(t)
	return &c, nil
}

func (s ticketRepo) list(keep func(*domain.Ticket) bool, newestFirst bool) []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Ticket{}
	for _, t := range s.tickets {
		if keep(t) {
			out = append(out, s.project(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s ticketRepo) ListOpen(context.Context) ([]domain.Ticket, error) {
	return s.list(func(t *domain.Ticket) bool {
		return !t.HasStatus(domain.TicketStatusAwaitingFeedback)
	}, false), nil
}

func (s ticketRepo) ListAll(context.Context) ([]domain.Ticket, error) {
	return s.list(func(*domain.Ticket) bool { return true }, true), nil
}

func (s ticketRepo) Claim(_ context.Context, id int64, mentorID, mentorName string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	if t.HasStatus(domain.TicketStatusAwaitingFeedback) {
		return nil, domain.ErrAlreadyResolved
	}
	if t.ClaimantID != nil {
		return nil, domain.ErrAlreadyClaimed
	}
	now := s.now()
	t.ClaimantID = &mentorID
	t.ClaimantName = &mentorName
	t.ClaimedAt = &now
	t.Active = false
	t.Status = domain.StatusPtr(domain.TicketStatusClaimed)
	if u, ok := s.users[mentorID]; ok {
		claimed := id
		u.ClaimedTicketID = &claimed
	}
	c := s.project(t)
	return &c, nil
}

func (s ticketRepo) Unclaim(_ context.Context, id int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	if t.ClaimantID == nil {
		return nil, domain.ErrNotClaimed
	}
	if u, ok := s.users[*t.ClaimantID]; ok && u.ClaimedTicketID != nil && *u.ClaimedTicketID == id {
		u.ClaimedTicketID = nil
	}
	t.ClaimantID = nil
	t.ClaimantName = nil
	t.ClaimedAt = nil
	t.Active = true
	t.Status = domain.StatusPtr(domain.TicketStatusUnclaimed)
	c := s.project(t)
	return &c, nil
}

func (s ticketRepo) Resolve(_ context.Context, id int64, actor repository.ResolveActor) (*domain.ResolveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	if t.HasStatus(domain.TicketStatusAwaitingFeedback) {
		return nil, domain.ErrAlreadyResolved
	}

	var credited *string
	switch {
	case t.ClaimantID != nil:
		credited = t.ClaimantID
	case actor.Creditable && actor.ID != "":
		actorID := actor.ID
		credited = &actorID
		if t.ClaimantName == nil {
			name := actor.Name
			t.ClaimantName = &name
		}
	}

	now := s.now()
	t.ResolvedByID = credited
	t.ResolvedAt = &now
	t.ClaimantID = nil
	t.Active = false
	t.Status = domain.StatusPtr(domain.TicketStatusAwaitingFeedback)
	if credited != nil {
		if u, ok := s.users[*credited]; ok {
			u.ResolvedTickets++
		}
	}
	for _, u := range s.users {
		if u.ClaimedTicketID != nil && *u.ClaimedTicketID == id {
			u.ClaimedTicketID = nil
		}
	}
	c := s.project(t)
	return &domain.ResolveResult{Ticket: &c, CreditedTo: credited}, nil
}

func (s ticketRepo) SubmitFeedback(_ context.Context, id int64, rating float64, review string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	if t.FeedbackAt != nil {
		return nil, domain.ErrFeedbackSubmitted
	}
	if !t.HasStatus(domain.TicketStatusAwaitingFeedback) {
		return nil, domain.ErrNotResolved
	}
	now := s.now()
	t.FeedbackAt = &now
	if t.ResolvedByID != nil {
		if u, ok := s.users[*t.ResolvedByID]; ok {
			u.Ratings = append(u.Ratings, rating)
			if review != "" {
				u.Reviews = append(u.Reviews, review)
			}
		}
	}
	c := s.project(t)
	return &c, nil
}

func (s ticketRepo) ClaimedBy(_ context.Context, mentorID string) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *int64
	for id, t := range s.tickets {
		if t.ClaimantID == nil || *t.ClaimantID != mentorID || !t.HasStatus(domain.TicketStatusClaimed) {
			continue
		}
		if found == nil || t.ClaimedAt.After(*s.tickets[*found].ClaimedAt) {
			claimed := id
			found = &claimed
		}
	}
	return found, nil
}

type userRepo struct{ *Store }

func (s userRepo) Upsert(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		now := s.now()
		existing = &domain.User{
			ID:        user.ID,
			Location:  domain.LocationInPerson,
			Ratings:   []float64{},
			Reviews:   []string{},
			CreatedAt: now,
		}
		s.users[user.ID] = existing
	}
	existing.Role = user.Role
	if user.Name != "" {
		existing.Name = user.Name
	}
	if user.Email != "" {
		existing.Email = user.Email
	}
	existing.UpdatedAt = s.now()
	*user = cloneUser(existing)
	return nil
}

func (s userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := cloneUser(u)
	return &c, nil
}

func (s userRepo) List(context.Context) ([]domain.User, error) {
	return s.filter(func(*domain.User) bool { return true }), nil
}

func (s userRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	return s.filter(func(u *domain.User) bool { return u.Role == role }), nil
}

func (s userRepo) filter(keep func(*domain.User) bool) []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.User{}
	for _, u := range s.users {
		if keep(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s userRepo) UpdateProfile(_ context.Context, id string, p domain.UserProfile) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Role = p.Role
	u.Location = p.Location
	u.ZoomLink = p.ZoomLink
	u.Discord = p.Discord
	u.Phone = p.Phone
	u.Preferred = p.Preferred
	u.UpdatedAt = s.now()
	c := cloneUser(u)
	return &c, nil
}

func (s userRepo) UpdateSnapshot(_ context.Context, id, name, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Name = name
	u.Email = email
	u.UpdatedAt = s.now()
	return nil
}

func (s userRepo) SetDiscord(_ context.Context, id, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Discord = handle
	u.UpdatedAt = s.now()
	return nil
}

type historyRepo struct{ *Store }

func (s historyRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = int64(len(s.history) + 1)
	h.CreatedAt = s.now()
	s.history = append(s.history, *h)
	return nil
}

func (s historyRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.TicketHistory{}
	for _, h := range s.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}
