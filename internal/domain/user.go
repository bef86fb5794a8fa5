package domain

import "time"

// Role is the local role derived from the external privilege claim.
type Role string

const (
	RoleHacker Role = "hacker"
	RoleMentor Role = "mentor"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHacker, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

// PreferredContact is the channel a user wants mentors to reach them on.
type PreferredContact string

const (
	ContactEmail   PreferredContact = "Email"
	ContactPhone   PreferredContact = "Phone"
	ContactDiscord PreferredContact = "Discord"
)

// Location values accepted on the profile.
const (
	LocationInPerson = "in person"
	LocationVirtual  = "virtual"
)

// User is keyed by the identity provider subject id.
type User struct {
	ID              string
	Role            Role
	Name            string
	Email           string
	Location        string
	ZoomLink        string
	Discord         string
	Phone           string
	Preferred       *PreferredContact
	ResolvedTickets int
	Ratings         []float64
	Reviews         []string
	ClaimedTicketID *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsMentor reports whether the user counts as a mentor for ranking and credit.
func (u *User) IsMentor() bool {
	return u != nil && u.Role == RoleMentor
}

// AverageRating returns the mean rating and false when there are none.
func (u *User) AverageRating() (float64, bool) {
	if u == nil || len(u.Ratings) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range u.Ratings {
		sum += r
	}
	return sum / float64(len(u.Ratings)), true
}

// UserProfile holds the mentor-editable profile fields.
type UserProfile struct {
	Role      Role
	Location  string
	ZoomLink  string
	Discord   string
	Phone     string
	Preferred *PreferredContact
}
