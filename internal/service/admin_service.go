package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/mentor-queue/internal/directory"
	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/observability"
	"github.com/spec-kit/mentor-queue/internal/repository"
)

// AdminService serves the organizer reports.
type AdminService struct {
	tickets   repository.TicketRepository
	users     repository.UserRepository
	history   repository.TicketHistoryRepository
	directory directory.Client
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// AdminDependencies bundles collaborators for the admin service.
type AdminDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Directory   directory.Client
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// TicketStats summarizes queue throughput.
type TicketStats struct {
	// Total counts tickets that were ever claimed.
	Total int
	// AverageRating is the mean of each rated mentor's average.
	AverageRating float64
	// AverageTime is the mean seconds from creation to claim.
	AverageTime float64
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		tickets:   deps.TicketRepo,
		users:     deps.UserRepo,
		history:   deps.HistoryRepo,
		directory: deps.Directory,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

// TicketStats aggregates claim latency and mentor ratings.
func (s *AdminService) TicketStats(ctx context.Context) (*TicketStats, error) {
	mentors, err := s.users.ListByRole(ctx, domain.RoleMentor)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &TicketStats{}
	var ratingSum float64
	var rated int
	for i := range mentors {
		if avg, ok := mentors[i].AverageRating(); ok {
			ratingSum += avg
			rated++
		}
	}
	if rated > 0 {
		stats.AverageRating = ratingSum / float64(rated)
	}

	var latency float64
	for i := range tickets {
		if d, ok := tickets[i].ClaimLatency(); ok {
			latency += d.Seconds()
			stats.Total++
		}
	}
	if stats.Total > 0 {
		stats.AverageTime = latency / float64(stats.Total)
	}
	return stats, nil
}

// UserData lists every local user. With refresh set, name and email snapshots
// are re-fetched from the directory and persisted first.
func (s *AdminService) UserData(ctx context.Context, refresh bool) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if !refresh || s.directory == nil || len(users) == 0 {
		return users, nil
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	infos := s.directory.LookupMany(ctx, ids)

	refreshed := 0
	for i := range users {
		u := &users[i]
		info, ok := infos[u.ID]
		if !ok || !info.IsOrganizer {
			continue
		}
		if info.Name == u.Name && info.Email == u.Email {
			continue
		}
		if err := s.users.UpdateSnapshot(ctx, u.ID, info.Name, info.Email); err != nil {
			s.logger.Warn("refresh user snapshot failed", zap.String("user_id", u.ID), zap.Error(err))
			continue
		}
		if info.Name != "" {
			u.Name = info.Name
		}
		if info.Email != "" {
			u.Email = info.Email
		}
		refreshed++
	}
	s.logger.Info("user snapshots refreshed", zap.Int("users", len(users)), zap.Int("updated", refreshed))
	return users, nil
}

// AllTickets returns every ticket, newest first.
func (s *AdminService) AllTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	fillNames(ctx, s.directory, tickets)
	return tickets, nil
}

// History returns the audit trail of one ticket.
func (s *AdminService) History(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, storeError(err, ticketID)
	}
	return s.history.ListByTicket(ctx, ticketID)
}

// Metrics returns the request counters collected so far.
func (s *AdminService) Metrics() observability.Snapshot {
	return s.metrics.Snapshot()
}
