package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated  TicketChangeType = "CREATED"
	ChangeTypeClaimed  TicketChangeType = "CLAIMED"
	ChangeTypeUnclaim  TicketChangeType = "UNCLAIMED"
	ChangeTypeResolved TicketChangeType = "RESOLVED"
	ChangeTypeFeedback TicketChangeType = "FEEDBACK"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          int64
	TicketID    int64
	ChangedByID *string
	ChangedRole Role
	ChangeType  TicketChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
