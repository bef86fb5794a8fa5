package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/mentor-queue/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketClaimed   EventType = "ticket_claimed"
	EventTicketUnclaimed EventType = "ticket_unclaimed"
	EventTicketResolved  EventType = "ticket_resolved"
	EventFeedbackAdded   EventType = "ticket_feedback_added"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, ticketID int64, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload carries what the notifier needs to announce a ticket.
type TicketCreatedPayload struct {
	Question string   `json:"question"`
	Content  string   `json:"content"`
	Location string   `json:"location"`
	Tags     []string `json:"tags"`
	Creator  string   `json:"creator"`
}

// TicketClaimPayload payload for claim and unclaim.
type TicketClaimPayload struct {
	MentorID   string `json:"mentor_id"`
	MentorName string `json:"mentor_name,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	CreditedTo *string `json:"credited_to,omitempty"`
}

// FeedbackAddedPayload payload.
type FeedbackAddedPayload struct {
	MentorID *string `json:"mentor_id,omitempty"`
	Rating   float64 `json:"rating"`
}
