package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusUnclaimed        TicketStatus = "unclaimed"
	TicketStatusClaimed          TicketStatus = "claimed"
	TicketStatusAwaitingFeedback TicketStatus = "awaiting_feedback"
)

// Ticket is a help request raised by a hacker.
type Ticket struct {
	ID           int64
	CreatorID    *string
	CreatorName  string
	CreatorEmail string
	// Creator carries the live contact fields of the creating user, when joined.
	Creator *UserContact

	ClaimantID   *string
	ClaimantName *string
	ResolvedByID *string

	Question string
	Content  string
	Location string
	Tags     []string
	Images   []string

	Active bool
	// Status is nil only for rows written before statuses were backfilled.
	Status *TicketStatus

	CreatedAt  time.Time
	ClaimedAt  *time.Time
	ResolvedAt *time.Time
	FeedbackAt *time.Time
}

// UserContact is the subset of a user row shown next to their tickets.
type UserContact struct {
	Discord   string
	Phone     string
	Preferred *PreferredContact
}

// HasStatus reports whether the ticket is currently in status s.
func (t *Ticket) HasStatus(s TicketStatus) bool {
	return t.Status != nil && *t.Status == s
}

// MentorID returns the claimant, or the resolving mentor once resolved.
func (t *Ticket) MentorID() *string {
	if t.ClaimantID != nil {
		return t.ClaimantID
	}
	return t.ResolvedByID
}

// ClaimLatency is the time between creation and claim, if claimed.
func (t *Ticket) ClaimLatency() (time.Duration, bool) {
	if t.ClaimedAt == nil {
		return 0, false
	}
	return t.ClaimedAt.Sub(t.CreatedAt), true
}

// StatusPtr is a helper for building tickets in tests and fakes.
func StatusPtr(s TicketStatus) *TicketStatus {
	return &s
}

// NewTicket describes the payload submitted by a hacker.
type NewTicket struct {
	Question string
	Content  string
	Location string
	Tags     []string
	Images   []string
}

// ResolveResult reports how a resolve transition was attributed.
type ResolveResult struct {
	Ticket     *Ticket
	CreditedTo *string
}
