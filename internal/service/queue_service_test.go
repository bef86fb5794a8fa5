package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/mentor-queue/internal/auth"
	"github.com/spec-kit/mentor-queue/internal/directory"
	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/events"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

type queueHarness struct {
	store  *store
	dir    *fakeDirectory
	events *recordedEvents
	svc    *QueueService
}

func newQueueHarness(t *testing.T) *queueHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	st := newStore()
	dir := &fakeDirectory{known: map[string]directory.Info{}}
	rec := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher(logger)
	subscribeAll(dispatcher, rec)

	svc := NewQueueService(QueueDependencies{
		TicketRepo:  st.Tickets(),
		UserRepo:    st.Users(),
		HistoryRepo: st.History(),
		Directory:   dir,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	return &queueHarness{store: st, dir: dir, events: rec, svc: svc}
}

func (h *queueHarness) principal(id, name string, role domain.Role) *auth.Principal {
	h.store.addUser(domain.User{ID: id, Name: name, Role: role, Location: domain.LocationInPerson})
	privilege := 0
	switch role {
	case domain.RoleMentor:
		privilege = 2
	case domain.RoleAdmin:
		privilege = 4
	}
	return &auth.Principal{UserID: id, Name: name, Email: id + "@example.com", Role: role, Privilege: privilege}
}

func (h *queueHarness) create(t *testing.T, creator *auth.Principal) *domain.Ticket {
	t.Helper()
	ticket, err := h.svc.CreateTicket(context.Background(), creator, TicketCreateInput{
		Question: "How do I reverse a linked list?",
		Content:  "I keep losing the **head** pointer.",
		Location: "Table 4",
		Tags:     []string{"go"},
	})
	require.NoError(t, err)
	return ticket
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %T: %v", err, err)
	assert.Equal(t, code, domainErr.Code)
}

func TestCreateTicketRequiresFields(t *testing.T) {
	h := newQueueHarness(t)
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)

	_, err := h.svc.CreateTicket(context.Background(), hacker, TicketCreateInput{Question: "  ", Content: "body"})
	requireCode(t, err, apperrors.CodeValidation)

	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Contains(t, domainErr.Details, "question")
	assert.Contains(t, domainErr.Details, "location")
	assert.NotContains(t, domainErr.Details, "content")
	assert.Empty(t, h.events.types())
}

func TestCreateTicketSnapshotsCreatorAndNormalizesTags(t *testing.T) {
	h := newQueueHarness(t)
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)

	ticket, err := h.svc.CreateTicket(context.Background(), hacker, TicketCreateInput{
		Question: " Segfault in parser ",
		Content:  "stack trace below",
		Location: " Table 12 ",
		Tags:     []string{"go", " go ", "parsing", ""},
		Images:   []string{"", "https://img.example/a.png"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Segfault in parser", ticket.Question)
	assert.Equal(t, "Table 12", ticket.Location)
	assert.Equal(t, []string{"go", "parsing"}, ticket.Tags)
	assert.Equal(t, []string{"https://img.example/a.png"}, ticket.Images)
	assert.Equal(t, "Hana", ticket.CreatorName)
	assert.Equal(t, "hacker-1@example.com", ticket.CreatorEmail)
	assert.True(t, ticket.HasStatus(domain.TicketStatusUnclaimed))
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, h.events.types())

	history, err := h.store.History().ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeCreated, history[0].ChangeType)
	assert.Equal(t, domain.RoleHacker, history[0].ChangedRole)
}

func TestCreateTicketKeepsAngleBracketsVerbatim(t *testing.T) {
	h := newQueueHarness(t)
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)

	ticket, err := h.svc.CreateTicket(context.Background(), hacker, TicketCreateInput{
		Question: "Why does std::vector<int> not compile?",
		Content:  "error: expected unqualified-id",
		Location: "Room <B>12",
		Tags:     []string{"wifi", "<iostream>", "c++", " <iostream> "},
	})
	require.NoError(t, err)

	assert.Equal(t, "Why does std::vector<int> not compile?", ticket.Question)
	assert.Equal(t, "Room <B>12", ticket.Location)
	assert.Equal(t, []string{"wifi", "<iostream>", "c++"}, ticket.Tags)

	stored := h.store.ticket(ticket.ID)
	assert.Equal(t, "Why does std::vector<int> not compile?", stored.Question)
	assert.Equal(t, "Room <B>12", stored.Location)
	assert.Equal(t, []string{"wifi", "<iostream>", "c++"}, stored.Tags)
}

func TestCreateTicketFillsMissingNameFromDirectory(t *testing.T) {
	h := newQueueHarness(t)
	organizer := h.principal("org-1", UnknownUser, domain.RoleMentor)
	h.dir.known["org-1"] = directory.Info{Name: "Olive Org", Email: "olive@example.com", IsOrganizer: true}

	ticket := h.create(t, organizer)
	assert.Equal(t, "Olive Org", ticket.CreatorName)
}

func TestClaimAlreadyClaimedKeepsFirstClaimant(t *testing.T) {
	h := newQueueHarness(t)
	ctx := context.Background()
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)
	mentorA := h.principal("mentor-a", "Ada", domain.RoleMentor)
	mentorB := h.principal("mentor-b", "Ben", domain.RoleMentor)

	var ticket *domain.Ticket
	for i := 0; i < 7; i++ {
		ticket = h.create(t, hacker)
	}
	require.Equal(t, int64(7), ticket.ID)

	claimed, err := h.svc.Claim(ctx, mentorA, 7)
	require.NoError(t, err)
	assert.Equal(t, "mentor-a", *claimed.ClaimantID)
	assert.False(t, claimed.Active)

	_, err = h.svc.Claim(ctx, mentorB, 7)
	requireCode(t, err, apperrors.CodeAlreadyClaimed)

	stored := h.store.ticket(7)
	assert.Equal(t, "mentor-a", *stored.ClaimantID)
	assert.Equal(t, "Ada", *stored.ClaimantName)

	id, err := h.svc.Claimed(ctx, mentorA)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(7), *id)

	id, err = h.svc.Claimed(ctx, mentorB)
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	h := newQueueHarness(t)
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)
	ticket := h.create(t, hacker)

	const mentors = 8
	principals := make([]*auth.Principal, mentors)
	for i := range principals {
		principals[i] = h.principal("mentor-"+string(rune('a'+i)), "M", domain.RoleMentor)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for _, p := range principals {
		wg.Add(1)
		go func(p *auth.Principal) {
			defer wg.Done()
			_, err := h.svc.Claim(context.Background(), p, ticket.ID)
			mu.Lock()
			defer mu.Unlock()
			var domainErr *apperrors.DomainError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &domainErr) && domainErr.Code == apperrors.CodeAlreadyClaimed:
				conflicts++
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, mentors-1, conflicts)
}

func TestClaimRejectsHackers(t *testing.T) {
	h := newQueueHarness(t)
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)
	ticket := h.create(t, hacker)

	_, err := h.svc.Claim(context.Background(), hacker, ticket.ID)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestClaimUnknownTicket(t *testing.T) {
	h := newQueueHarness(t)
	mentor := h.principal("mentor-a", "Ada", domain.RoleMentor)

	_, err := h.svc.Claim(context.Background(), mentor, 404)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestUnclaimReturnsTicketToQueue(t *testing.T) {
	h := newQueueHarness(t)
	ctx := context.Background()
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)
	mentorA := h.principal("mentor-a", "Ada", domain.RoleMentor)
	mentorB := h.principal("mentor-b", "Ben", domain.RoleMentor)
	ticket := h.create(t, hacker)

	_, err := h.svc.Unclaim(ctx, mentorA, ticket.ID)
	requireCode(t, err, apperrors.CodeNotClaimed)

	_, err = h.svc.Claim(ctx, mentorA, ticket.ID)
	require.NoError(t, err)

	released, err := h.svc.Unclaim(ctx, mentorB, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, released.ClaimantID)
	assert.Nil(t, released.ClaimedAt)
	assert.True(t, released.Active)
	assert.True(t, released.HasStatus(domain.TicketStatusUnclaimed))
	assert.Nil(t, h.store.user("mentor-a").ClaimedTicketID)

	_, err = h.svc.Claim(ctx, mentorB, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, []events.EventType{
		events.EventTicketCreated,
		events.EventTicketClaimed,
		events.EventTicketUnclaimed,
		events.EventTicketClaimed,
	}, h.events.types())
}

func TestResolveCreditsClaimant(t *testing.T) {
	h := newQueueHarness(t)
	ctx := context.Background()
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)
	mentor := h.principal("mentor-a", "Ada", domain.RoleMentor)
	ticket := h.create(t, hacker)

	_, err := h.svc.Claim(ctx, mentor, ticket.ID)
	require.NoError(t, err)

	result, err := h.svc.Resolve(ctx, hacker, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, result.CreditedTo)
	assert.Equal(t, "mentor-a", *result.CreditedTo)
	assert.True(t, result.Ticket.HasStatus(domain.TicketStatusAwaitingFeedback))
	assert.Nil(t, result.Ticket.ClaimantID)

	stored := h.store.user("mentor-a")
	assert.Equal(t, 1, stored.ResolvedTickets)
	assert.Nil(t, stored.ClaimedTicketID)

	_, err = h.svc.Resolve(ctx, mentor, ticket.ID)
	requireCode(t, err, apperrors.CodeAlreadyResolved)
	assert.Equal(t, 1, h.store.user("mentor-a").ResolvedTickets)

	_, err = h.svc.Claim(ctx, mentor, ticket.ID)
	requireCode(t, err, apperrors.CodeAlreadyResolved)

	open, err := h.svc.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestResolveUnclaimedCredit(t *testing.T) {
	h := newQueueHarness(t)
	ctx := context.Background()
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)
	mentor := h.principal("mentor-a", "Ada", domain.RoleMentor)
	admin := h.principal("admin-1", "Ari", domain.RoleAdmin)

	byMentor := h.create(t, hacker)
	result, err := h.svc.Resolve(ctx, mentor, byMentor.ID)
	require.NoError(t, err)
	require.NotNil(t, result.CreditedTo)
	assert.Equal(t, "mentor-a", *result.CreditedTo)
	assert.Equal(t, 1, h.store.user("mentor-a").ResolvedTickets)

	byAdmin := h.create(t, hacker)
	result, err = h.svc.Resolve(ctx, admin, byAdmin.ID)
	require.NoError(t, err)
	assert.Nil(t, result.CreditedTo)
	assert.Equal(t, 0, h.store.user("admin-1").ResolvedTickets)

	bySelf := h.create(t, hacker)
	result, err = h.svc.Resolve(ctx, hacker, bySelf.ID)
	require.NoError(t, err)
	assert.Nil(t, result.CreditedTo)
	assert.Equal(t, 0, h.store.user("hacker-1").ResolvedTickets)
}

func TestResolveOtherHackersTicketForbidden(t *testing.T) {
	h := newQueueHarness(t)
	owner := h.principal("hacker-1", "Hana", domain.RoleHacker)
	other := h.principal("hacker-2", "Hugo", domain.RoleHacker)
	ticket := h.create(t, owner)

	_, err := h.svc.Resolve(context.Background(), other, ticket.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	stored := h.store.ticket(ticket.ID)
	assert.True(t, stored.HasStatus(domain.TicketStatusUnclaimed))
}

func TestSubmitFeedback(t *testing.T) {
	h := newQueueHarness(t)
	ctx := context.Background()
	hacker := h.principal("hacker-1", "Hana", domain.RoleHacker)
	other := h.principal("hacker-2", "Hugo", domain.RoleHacker)
	mentor := h.principal("mentor-a", "Ada", domain.RoleMentor)
	ticket := h.create(t, hacker)

	_, err := h.svc.SubmitFeedback(ctx, hacker, ticket.ID, FeedbackInput{Rating: 4})
	requireCode(t, err, apperrors.CodeNotResolved)

	_, err = h.svc.Claim(ctx, mentor, ticket.ID)
	require.NoError(t, err)
	_, err = h.svc.Resolve(ctx, mentor, ticket.ID)
	require.NoError(t, err)

	_, err = h.svc.SubmitFeedback(ctx, other, ticket.ID, FeedbackInput{Rating: 5})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.svc.SubmitFeedback(ctx, hacker, ticket.ID, FeedbackInput{Rating: 5.3})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.svc.SubmitFeedback(ctx, hacker, ticket.ID, FeedbackInput{Rating: 4.26, Review: "  very <em>patient</em> "})
	require.NoError(t, err)

	stored := h.store.user("mentor-a")
	assert.Equal(t, []float64{4.3}, stored.Ratings)
	assert.Equal(t, []string{"very patient"}, stored.Reviews)

	_, err = h.svc.SubmitFeedback(ctx, hacker, ticket.ID, FeedbackInput{Rating: 1})
	requireCode(t, err, apperrors.CodeFeedbackGiven)
	assert.Len(t, h.store.user("mentor-a").Ratings, 1)
}

func TestRankingOrdersByResolvedThenName(t *testing.T) {
	h := newQueueHarness(t)
	h.store.addUser(domain.User{ID: "m-alice", Name: "Alice", Role: domain.RoleMentor, ResolvedTickets: 3, Ratings: []float64{5}})
	h.store.addUser(domain.User{ID: "m-bob", Name: "Bob", Role: domain.RoleMentor, ResolvedTickets: 3, Ratings: []float64{4, 3}})
	h.store.addUser(domain.User{ID: "m-cy", Name: "Cy", Role: domain.RoleMentor, ResolvedTickets: 5, Ratings: []float64{3}})
	h.store.addUser(domain.User{ID: "m-unrated", Name: "Una", Role: domain.RoleMentor, ResolvedTickets: 10})
	h.store.addUser(domain.User{ID: "m-anon", Role: domain.RoleMentor, ResolvedTickets: 1, Ratings: []float64{4}})
	h.store.addUser(domain.User{ID: "admin", Name: "Zed", Role: domain.RoleAdmin, ResolvedTickets: 9, Ratings: []float64{5}})
	h.dir.known["m-anon"] = directory.Info{Name: "Ann Onymous", IsOrganizer: true}

	ranking, err := h.svc.Ranking(context.Background())
	require.NoError(t, err)
	require.Len(t, ranking, 4)

	names := make([]string, 0, len(ranking))
	for i, entry := range ranking {
		assert.Equal(t, i+1, entry.Rank)
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"Cy", "Bob", "Alice", "Ann Onymous"}, names)
	assert.Equal(t, 2, ranking[1].Ratings)
	assert.InDelta(t, 3.5, ranking[1].AverageRating, 1e-9)
}

func TestListOpenFillsMissingNames(t *testing.T) {
	h := newQueueHarness(t)
	ctx := context.Background()
	creator := "org-2"
	h.dir.known[creator] = directory.Info{Name: "Orla", IsOrganizer: true}
	require.NoError(t, h.store.Tickets().Create(ctx, &domain.Ticket{
		CreatorID: &creator,
		Question:  "q",
		Content:   "c",
		Location:  "l",
	}))
	stranger := "hacker-9"
	require.NoError(t, h.store.Tickets().Create(ctx, &domain.Ticket{
		CreatorID: &stranger,
		Question:  "q",
		Content:   "c",
		Location:  "l",
	}))

	open, err := h.svc.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "Orla", open[0].CreatorName)
	assert.Equal(t, "", open[1].CreatorName)
	assert.Equal(t, "", h.store.ticket(open[0].ID).CreatorName)
}

func TestRenderContentSanitizes(t *testing.T) {
	h := newQueueHarness(t)
	rendered := h.svc.RenderContent("**bold** <script>alert(1)</script>")
	assert.Contains(t, rendered, "<strong>bold</strong>")
	assert.NotContains(t, rendered, "<script>")
}
