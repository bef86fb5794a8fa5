package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/mentor-queue/internal/auth"
	"github.com/spec-kit/mentor-queue/internal/directory"
	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/events"
	"github.com/spec-kit/mentor-queue/internal/markdown"
	"github.com/spec-kit/mentor-queue/internal/repository"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

// UnknownUser is shown when no creator name is known.
const UnknownUser = "Unknown User"

const (
	minRating = 0.0
	maxRating = 5.0
)

// QueueService coordinates the help queue workflows.
type QueueService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	directory  directory.Client
	markdown   markdown.Service
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// QueueDependencies bundles collaborators for the queue service.
type QueueDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Directory   directory.Client
	Markdown    markdown.Service
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes a new help request.
type TicketCreateInput struct {
	Question string
	Content  string
	Location string
	Tags     []string
	Images   []string
}

// RankEntry is one row of the mentor leaderboard.
type RankEntry struct {
	Rank          int
	Resolved      int
	Ratings       int
	Name          string
	AverageRating float64
}

// FeedbackInput is a hacker's rating of a resolved ticket.
type FeedbackInput struct {
	Rating float64
	Review string
}

// NewQueueService constructs the service.
func NewQueueService(deps QueueDependencies) *QueueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	md := deps.Markdown
	if md == nil {
		md = markdown.NewService()
	}
	return &QueueService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		directory:  deps.Directory,
		markdown:   md,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket opens a ticket for the caller, snapshotting their name and email.
func (s *QueueService) CreateTicket(ctx context.Context, actor *auth.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	// Stored as submitted; markup is escaped when rendered, never on write.
	question := strings.TrimSpace(input.Question)
	location := strings.TrimSpace(input.Location)
	content := strings.TrimSpace(input.Content)

	details := map[string]any{}
	if question == "" {
		details["question"] = "required"
	}
	if content == "" {
		details["content"] = "required"
	}
	if location == "" {
		details["location"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("question, content and location are required", details)
	}

	name, email := snapshotName(actor), actor.Email
	if name == "" || email == "" {
		info := lookup(ctx, s.directory, actor.UserID)
		if name == "" && info.IsOrganizer {
			name = info.Name
		}
		if email == "" {
			email = info.Email
		}
	}

	creatorID := actor.UserID
	ticket := &domain.Ticket{
		CreatorID:    &creatorID,
		CreatorName:  name,
		CreatorEmail: email,
		Question:     question,
		Content:      content,
		Location:     location,
		Tags:         normalizeTags(input.Tags),
		Images:       compact(input.Images),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.record(ctx, actor, ticket.ID, domain.ChangeTypeCreated, nil, map[string]any{
		"status":   string(domain.TicketStatusUnclaimed),
		"question": ticket.Question,
	})
	s.publishEvent(ctx, events.New(events.EventTicketCreated, ticket.ID, actorOf(actor), events.TicketCreatedPayload{
		Question: ticket.Question,
		Content:  ticket.Content,
		Location: ticket.Location,
		Tags:     ticket.Tags,
		Creator:  orDefault(ticket.CreatorName, UnknownUser),
	}))
	return ticket, nil
}

// ListOpen returns every ticket not awaiting feedback, oldest first.
func (s *QueueService) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	fillNames(ctx, s.directory, tickets)
	return tickets, nil
}

// Claim assigns the ticket to the calling mentor.
func (s *QueueService) Claim(ctx context.Context, actor *auth.Principal, ticketID int64) (*domain.Ticket, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only mentors can claim tickets")
	}
	name := snapshotName(actor)
	ticket, err := s.tickets.Claim(ctx, ticketID, actor.UserID, name)
	if err != nil {
		return nil, storeError(err, ticketID)
	}

	s.record(ctx, actor, ticketID, domain.ChangeTypeClaimed,
		map[string]any{"status": string(domain.TicketStatusUnclaimed)},
		map[string]any{"status": string(domain.TicketStatusClaimed), "claimant_id": actor.UserID})
	s.publishEvent(ctx, events.New(events.EventTicketClaimed, ticketID, actorOf(actor), events.TicketClaimPayload{
		MentorID:   actor.UserID,
		MentorName: name,
	}))
	return ticket, nil
}

// Unclaim returns a claimed ticket to the queue. Any mentor may release any
// claim.
func (s *QueueService) Unclaim(ctx context.Context, actor *auth.Principal, ticketID int64) (*domain.Ticket, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only mentors can unclaim tickets")
	}
	var previous string
	if before, err := s.tickets.GetByID(ctx, ticketID); err == nil && before.ClaimantID != nil {
		previous = *before.ClaimantID
	}

	ticket, err := s.tickets.Unclaim(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, ticketID)
	}

	s.record(ctx, actor, ticketID, domain.ChangeTypeUnclaim,
		map[string]any{"status": string(domain.TicketStatusClaimed), "claimant_id": previous},
		map[string]any{"status": string(domain.TicketStatusUnclaimed)})
	s.publishEvent(ctx, events.New(events.EventTicketUnclaimed, ticketID, actorOf(actor), events.TicketClaimPayload{
		MentorID: previous,
	}))
	return ticket, nil
}

// Resolve moves a ticket to awaiting_feedback. Hackers may only resolve their
// own tickets.
func (s *QueueService) Resolve(ctx context.Context, actor *auth.Principal, ticketID int64) (*domain.ResolveResult, error) {
	if !actor.IsStaff() {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return nil, storeError(err, ticketID)
		}
		if ticket.CreatorID == nil || *ticket.CreatorID != actor.UserID {
			return nil, apperrors.NewForbidden("you can only resolve your own tickets")
		}
	}

	result, err := s.tickets.Resolve(ctx, ticketID, repository.ResolveActor{
		ID:         actor.UserID,
		Name:       snapshotName(actor),
		Creditable: actor.Role == domain.RoleMentor,
	})
	if err != nil {
		return nil, storeError(err, ticketID)
	}

	newValue := map[string]any{"status": string(domain.TicketStatusAwaitingFeedback)}
	if result.CreditedTo != nil {
		newValue["credited_to"] = *result.CreditedTo
	}
	s.record(ctx, actor, ticketID, domain.ChangeTypeResolved, nil, newValue)
	s.publishEvent(ctx, events.New(events.EventTicketResolved, ticketID, actorOf(actor), events.TicketResolvedPayload{
		CreditedTo: result.CreditedTo,
	}))
	return result, nil
}

// Claimed returns the id of the ticket the caller currently holds, if any.
func (s *QueueService) Claimed(ctx context.Context, actor *auth.Principal) (*int64, error) {
	return s.tickets.ClaimedBy(ctx, actor.UserID)
}

// SubmitFeedback lets the ticket's creator rate the mentor who resolved it.
func (s *QueueService) SubmitFeedback(ctx context.Context, actor *auth.Principal, ticketID int64, input FeedbackInput) (*domain.Ticket, error) {
	rating := math.Round(input.Rating*10) / 10
	if math.IsNaN(rating) || rating < minRating || rating > maxRating {
		return nil, apperrors.NewValidationError("rating must be between 0 and 5", map[string]any{"rating": input.Rating})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, ticketID)
	}
	if ticket.CreatorID == nil || *ticket.CreatorID != actor.UserID {
		return nil, apperrors.NewForbidden("only the ticket creator can leave feedback")
	}

	review := s.markdown.PlainText(input.Review)
	updated, err := s.tickets.SubmitFeedback(ctx, ticketID, rating, review)
	if err != nil {
		return nil, storeError(err, ticketID)
	}

	s.record(ctx, actor, ticketID, domain.ChangeTypeFeedback, nil, map[string]any{"rating": rating})
	s.publishEvent(ctx, events.New(events.EventFeedbackAdded, ticketID, actorOf(actor), events.FeedbackAddedPayload{
		MentorID: updated.ResolvedByID,
		Rating:   rating,
	}))
	return updated, nil
}

// Ranking lists rated mentors ordered by resolved count, then name, both
// descending.
func (s *QueueService) Ranking(ctx context.Context) ([]RankEntry, error) {
	mentors, err := s.users.ListByRole(ctx, domain.RoleMentor)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, m := range mentors {
		if m.Name == "" && len(m.Ratings) > 0 {
			missing = append(missing, m.ID)
		}
	}
	names := lookupMany(ctx, s.directory, missing)

	entries := make([]RankEntry, 0, len(mentors))
	for i := range mentors {
		m := &mentors[i]
		avg, ok := m.AverageRating()
		if !ok {
			continue
		}
		name := m.Name
		if name == "" {
			name = names[m.ID].Name
		}
		entries = append(entries, RankEntry{
			Resolved:      m.ResolvedTickets,
			Ratings:       len(m.Ratings),
			Name:          name,
			AverageRating: avg,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Resolved != entries[j].Resolved {
			return entries[i].Resolved > entries[j].Resolved
		}
		return entries[i].Name > entries[j].Name
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// RenderContent returns the sanitized HTML form of ticket content.
func (s *QueueService) RenderContent(content string) string {
	rendered, err := s.markdown.ToHTMLSanitized(content)
	if err != nil {
		s.logger.Warn("render ticket content failed", zap.Error(err))
		return ""
	}
	return rendered
}

// fillNames resolves missing creator and claimant names through the
// directory. Results are not persisted.
func fillNames(ctx context.Context, dir directory.Client, tickets []domain.Ticket) {
	var ids []string
	for _, t := range tickets {
		if t.CreatorName == "" && t.CreatorID != nil {
			ids = append(ids, *t.CreatorID)
		}
		if t.ClaimantID != nil && (t.ClaimantName == nil || *t.ClaimantName == "") {
			ids = append(ids, *t.ClaimantID)
		}
	}
	if len(ids) == 0 {
		return
	}
	infos := lookupMany(ctx, dir, ids)
	for i := range tickets {
		t := &tickets[i]
		if t.CreatorName == "" && t.CreatorID != nil {
			if info, ok := infos[*t.CreatorID]; ok && info.IsOrganizer {
				t.CreatorName = info.Name
			}
		}
		if t.ClaimantID != nil && (t.ClaimantName == nil || *t.ClaimantName == "") {
			if info, ok := infos[*t.ClaimantID]; ok && info.IsOrganizer {
				name := info.Name
				t.ClaimantName = &name
			}
		}
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func lookup(ctx context.Context, dir directory.Client, userID string) directory.Info {
	if dir == nil {
		return directory.Info{Name: directory.PlaceholderName, Email: directory.PlaceholderEmail}
	}
	return dir.Lookup(ctx, userID)
}

func lookupMany(ctx context.Context, dir directory.Client, ids []string) map[string]directory.Info {
	if len(ids) == 0 {
		return map[string]directory.Info{}
	}
	if dir == nil {
		out := make(map[string]directory.Info, len(ids))
		for _, id := range ids {
			out[id] = directory.Info{Name: directory.PlaceholderName, Email: directory.PlaceholderEmail}
		}
		return out
	}
	return dir.LookupMany(ctx, ids)
}

func (s *QueueService) record(ctx context.Context, actor *auth.Principal, ticketID int64, change domain.TicketChangeType, oldValue, newValue map[string]any) {
	recordHistory(ctx, s.history, s.logger, actor, ticketID, change, oldValue, newValue)
}

func (s *QueueService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// storeError translates repository sentinels into API errors.
func storeError(err error, ticketID int64) error {
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return apperrors.NewAlreadyClaimed(ticketID)
	case errors.Is(err, domain.ErrNotClaimed):
		return apperrors.NewNotClaimed(ticketID)
	case errors.Is(err, domain.ErrAlreadyResolved):
		return apperrors.NewAlreadyResolved(ticketID)
	case errors.Is(err, domain.ErrNotResolved):
		return apperrors.NewNotResolved(ticketID)
	case errors.Is(err, domain.ErrFeedbackSubmitted):
		return apperrors.NewFeedbackGiven(ticketID)
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFound("user", nil)
	default:
		return err
	}
}

// snapshotName is the caller's display name, empty when only the unknown
// placeholder is known.
func snapshotName(p *auth.Principal) string {
	if p.Name == UnknownUser {
		return ""
	}
	return p.Name
}

func actorOf(p *auth.Principal) events.Actor {
	return events.Actor{UserID: p.UserID, Role: p.Role}
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
