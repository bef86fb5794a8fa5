package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// MentorPassphrase guards the hacker to mentor role upgrade.
type MentorPassphrase struct {
	hash string
}

// NewMentorPassphrase accepts either a bcrypt hash or a plaintext secret,
// which is hashed once. An empty secret disables upgrades.
func NewMentorPassphrase(secret string, cost int) (*MentorPassphrase, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &MentorPassphrase{}, nil
	}
	if strings.HasPrefix(secret, "$2") {
		if _, err := bcrypt.Cost([]byte(secret)); err == nil {
			return &MentorPassphrase{hash: secret}, nil
		}
	}
	hashed, err := HashPassword(secret, cost)
	if err != nil {
		return nil, err
	}
	return &MentorPassphrase{hash: hashed}, nil
}

// Enabled reports whether a passphrase is configured.
func (p *MentorPassphrase) Enabled() bool {
	return p != nil && p.hash != ""
}

// Matches reports whether plain is the configured passphrase.
func (p *MentorPassphrase) Matches(plain string) bool {
	if !p.Enabled() || plain == "" {
		return false
	}
	return ComparePassword(p.hash, plain) == nil
}
