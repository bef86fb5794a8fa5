package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spec-kit/mentor-queue/internal/domain"
)

const (
	unknownCreator = "Unknown User"
	unknownMentor  = "Mentor"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Question string   `json:"question" validate:"required,max=500"`
	Content  string   `json:"content" validate:"required,max=10000"`
	Location string   `json:"location" validate:"required,max=200"`
	Tags     []string `json:"tags" validate:"max=20,dive,max=50"`
	Images   []string `json:"images" validate:"max=10,dive,max=2048"`
}

// TicketID accepts either a JSON number or a numeric string.
type TicketID int64

// UnmarshalJSON implements json.Unmarshaler.
func (id *TicketID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("ticket id must be an integer: %w", err)
	}
	*id = TicketID(v)
	return nil
}

// TicketActionRequest carries the id for claim, unclaim and resolve.
type TicketActionRequest struct {
	ID TicketID `json:"id" validate:"required,gt=0"`
}

// FeedbackRequest rates the mentor who resolved a ticket.
type FeedbackRequest struct {
	ID     TicketID `json:"id" validate:"required,gt=0"`
	Rating *float64 `json:"rating" validate:"required,gte=0,lte=5"`
	Review string   `json:"review" validate:"max=2000"`
}

// MessageResponse is the body of successful queue transitions.
type MessageResponse struct {
	Message string `json:"message"`
}

// ClaimedResponse reports the caller's current claim.
type ClaimedResponse struct {
	Claimed *int64 `json:"claimed"`
}

// TicketResponse is the queue projection of a ticket.
type TicketResponse struct {
	ID           int64                    `json:"id"`
	Question     string                   `json:"question"`
	Content      string                   `json:"content"`
	ContentHTML  string                   `json:"content_html"`
	Active       bool                     `json:"active"`
	Tags         []string                 `json:"tags"`
	Location     string                   `json:"location"`
	Images       []string                 `json:"images"`
	Creator      string                   `json:"creator"`
	CreatorEmail string                   `json:"creator_email"`
	Discord      string                   `json:"discord"`
	Phone        string                   `json:"phone"`
	Preferred    *domain.PreferredContact `json:"preferred"`
	CreatedAt    time.Time                `json:"createdAt"`
	ClaimedAt    *time.Time               `json:"claimedAt"`
	Status       *domain.TicketStatus     `json:"status"`
	MentorName   *string                  `json:"mentor_name"`
	MentorID     *string                  `json:"mentor_id"`
}

// NewTicketResponse projects a ticket; contentHTML is its sanitized rendering.
func NewTicketResponse(t domain.Ticket, contentHTML string) TicketResponse {
	resp := TicketResponse{
		ID:           t.ID,
		Question:     t.Question,
		Content:      t.Content,
		ContentHTML:  contentHTML,
		Active:       t.Active,
		Tags:         nonNil(t.Tags),
		Location:     t.Location,
		Images:       nonNil(t.Images),
		Creator:      orDefault(t.CreatorName, unknownCreator),
		CreatorEmail: t.CreatorEmail,
		CreatedAt:    t.CreatedAt,
		ClaimedAt:    t.ClaimedAt,
		Status:       t.Status,
		MentorID:     t.MentorID(),
		MentorName:   mentorName(t),
	}
	if t.Creator != nil {
		resp.Discord = t.Creator.Discord
		resp.Phone = t.Creator.Phone
		resp.Preferred = t.Creator.Preferred
	}
	return resp
}

// AdminTicketResponse is one row of the organizer ticket report.
type AdminTicketResponse struct {
	ID             int64                `json:"id"`
	Question       string               `json:"question"`
	CreatorName    string               `json:"creator_name"`
	CreatorEmail   string               `json:"creator_email"`
	CreatorDiscord string               `json:"creator_discord"`
	CreatorPhone   string               `json:"creator_phone"`
	MentorName     *string              `json:"mentor_name"`
	MentorID       *string              `json:"mentor_id"`
	Status         *domain.TicketStatus `json:"status"`
	Active         bool                 `json:"active"`
	CreatedAt      time.Time            `json:"createdAt"`
	ClaimedAt      *time.Time           `json:"claimedAt"`
	Location       string               `json:"location"`
	Tags           []string             `json:"tags"`
}

// NewAdminTicketResponse projects a ticket for the organizer report.
func NewAdminTicketResponse(t domain.Ticket) AdminTicketResponse {
	resp := AdminTicketResponse{
		ID:           t.ID,
		Question:     t.Question,
		CreatorName:  orDefault(t.CreatorName, unknownCreator),
		CreatorEmail: orDefault(t.CreatorEmail, noEmail),
		MentorName:   mentorName(t),
		MentorID:     t.MentorID(),
		Status:       t.Status,
		Active:       t.Active,
		CreatedAt:    t.CreatedAt,
		ClaimedAt:    t.ClaimedAt,
		Location:     t.Location,
		Tags:         nonNil(t.Tags),
	}
	if t.Creator != nil {
		resp.CreatorDiscord = t.Creator.Discord
		resp.CreatorPhone = t.Creator.Phone
	}
	return resp
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID          int64                   `json:"id"`
	ChangedByID *string                 `json:"changed_by_id"`
	ChangedRole domain.Role             `json:"changed_role,omitempty"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value,omitempty"`
	NewValue    map[string]any          `json:"new_value,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

func mentorName(t domain.Ticket) *string {
	if t.MentorID() == nil {
		return nil
	}
	name := unknownMentor
	if t.ClaimantName != nil && *t.ClaimantName != "" {
		name = *t.ClaimantName
	}
	return &name
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
