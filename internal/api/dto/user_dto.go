package dto

import "github.com/spec-kit/mentor-queue/internal/domain"

const (
	noEmail       = "No Email"
	notApplicable = "Not Applicable"
)

// ProfileUpdateRequest is the body of /auth/update.
type ProfileUpdateRequest struct {
	Role      string `json:"role" validate:"omitempty,oneof=hacker mentor admin"`
	Password  string `json:"password" validate:"max=200"`
	Location  string `json:"location" validate:"omitempty,oneof='in person' virtual"`
	ZoomLink  string `json:"zoomlink" validate:"max=500"`
	Discord   string `json:"discord" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=40"`
	Preferred string `json:"preferred" validate:"omitempty,oneof=Email Phone Discord"`
}

// ExchangeTokenRequest carries a Discord OAuth code obtained by the frontend.
type ExchangeTokenRequest struct {
	Code string `json:"code" validate:"required"`
}

// UserResponse is the user map returned by whoami and the admin report.
type UserResponse struct {
	ID              string                   `json:"id"`
	Name            string                   `json:"name"`
	Email           string                   `json:"email"`
	Role            domain.Role              `json:"role"`
	Location        string                   `json:"location"`
	ZoomLink        string                   `json:"zoomlink"`
	Discord         string                   `json:"discord"`
	Phone           string                   `json:"phone"`
	Preferred       *domain.PreferredContact `json:"preferred,omitempty"`
	ResolvedTickets any                      `json:"resolved_tickets"`
	Ratings         *float64                 `json:"ratings"`
	Reviews         []string                 `json:"reviews"`
}

// NewUserResponse projects a user row. Resolved counts and ratings are only
// reported for mentors.
func NewUserResponse(u domain.User, name, email string) UserResponse {
	resp := UserResponse{
		ID:              u.ID,
		Name:            name,
		Email:           email,
		Role:            u.Role,
		Location:        u.Location,
		ZoomLink:        u.ZoomLink,
		Discord:         u.Discord,
		Phone:           u.Phone,
		Preferred:       u.Preferred,
		ResolvedTickets: notApplicable,
		Reviews:         nonNil(u.Reviews),
	}
	if u.IsMentor() {
		resp.ResolvedTickets = u.ResolvedTickets
		if avg, ok := u.AverageRating(); ok {
			resp.Ratings = &avg
		}
	}
	return resp
}

// NewAdminUserResponse uses the stored snapshot with report placeholders.
func NewAdminUserResponse(u domain.User) UserResponse {
	resp := NewUserResponse(u, orDefault(u.Name, unknownCreator), orDefault(u.Email, noEmail))
	resp.Preferred = nil
	return resp
}

// WhoAmIResponse wraps the caller's user map.
type WhoAmIResponse struct {
	UserResponse
	LoggedIn bool `json:"loggedIn"`
}

// LoggedOutResponse is returned by whoami for anonymous callers.
type LoggedOutResponse struct {
	LoggedIn bool   `json:"loggedIn"`
	Error    string `json:"error,omitempty"`
}

// ExchangeTokenResponse reports a Discord link attempt.
type ExchangeTokenResponse struct {
	Success    bool   `json:"success"`
	DiscordTag string `json:"discord_tag,omitempty"`
	Error      string `json:"error,omitempty"`
}
