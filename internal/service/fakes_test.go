package service

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/mentor-queue/internal/directory"
	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/events"
	"github.com/spec-kit/mentor-queue/internal/repository/memory"
)

// store wraps the in-memory repositories with a stepping clock and a few
// lookup helpers.
type store struct {
	*memory.Store

	clockMu sync.Mutex
	now     time.Time
}

func newStore() *store {
	s := &store{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	s.Store = memory.NewStore().WithClock(s.tick)
	return s
}

func (s *store) tick() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.now = s.now.Add(time.Minute)
	return s.now
}

func (s *store) addUser(u domain.User) { s.PutUser(u) }

func (s *store) user(id string) domain.User {
	u, err := s.Users().GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return *u
}

func (s *store) ticket(id int64) domain.Ticket {
	t, err := s.Tickets().GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return *t
}

type fakeDirectory struct {
	mu    sync.Mutex
	known map[string]directory.Info
	calls int
}

func (d *fakeDirectory) Lookup(_ context.Context, id string) directory.Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if info, ok := d.known[id]; ok {
		return info
	}
	return directory.Info{Name: directory.PlaceholderName, Email: directory.PlaceholderEmail}
}

func (d *fakeDirectory) LookupMany(ctx context.Context, ids []string) map[string]directory.Info {
	out := make(map[string]directory.Info, len(ids))
	for _, id := range ids {
		out[id] = d.Lookup(ctx, id)
	}
	return out
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handler(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func subscribeAll(d events.Dispatcher, r *recordedEvents) {
	for _, t := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketClaimed,
		events.EventTicketUnclaimed,
		events.EventTicketResolved,
		events.EventFeedbackAdded,
	} {
		d.Subscribe(t, r.handler)
	}
}
