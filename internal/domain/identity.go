package domain

// TrustLevel records how an identity assertion was established.
type TrustLevel string

const (
	// TrustVerified means the token signature was checked locally.
	TrustVerified TrustLevel = "verified"
	// TrustAuthServer means the external auth server vouched for the session.
	TrustAuthServer TrustLevel = "auth_server"
	// TrustUnverified means the token claims were decoded without any
	// signature check; the cookie transport is the only protection.
	TrustUnverified TrustLevel = "unverified"
)

// Identity is the assertion produced by the session adapter.
type Identity struct {
	SubjectID   string
	DisplayName string
	Email       string
	Privilege   int
	Trust       TrustLevel
}
