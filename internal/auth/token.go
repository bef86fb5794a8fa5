package auth

import (
	"crypto/rsa"
	"errors"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrVerificationDisabled is returned by Verify when no key is configured.
var ErrVerificationDisabled = errors.New("token verification key not configured")

// TokenDecoder parses session tokens issued by the identity provider.
type TokenDecoder struct {
	rsaKey  *rsa.PublicKey
	hmacKey []byte
}

// NewTokenDecoder builds a decoder. verifyKey may be a PEM encoded RSA public
// key or a shared HMAC secret; an empty key disables signature checks.
func NewTokenDecoder(verifyKey string) (*TokenDecoder, error) {
	verifyKey = strings.TrimSpace(verifyKey)
	if verifyKey == "" {
		return &TokenDecoder{}, nil
	}
	if strings.HasPrefix(verifyKey, "-----BEGIN") {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(verifyKey))
		if err != nil {
			return nil, err
		}
		return &TokenDecoder{rsaKey: key}, nil
	}
	return &TokenDecoder{hmacKey: []byte(verifyKey)}, nil
}

// CanVerify reports whether a verification key is configured.
func (d *TokenDecoder) CanVerify() bool {
	return d != nil && (d.rsaKey != nil || len(d.hmacKey) > 0)
}

// Verify checks the token signature and standard time claims.
func (d *TokenDecoder) Verify(tokenStr string) (jwt.MapClaims, error) {
	if !d.CanVerify() {
		return nil, ErrVerificationDisabled
	}

	var (
		methods []string
		key     any
	)
	if d.rsaKey != nil {
		methods = []string{"RS256", "RS384", "RS512"}
		key = d.rsaKey
	} else {
		methods = []string{"HS256", "HS384", "HS512"}
		key = d.hmacKey
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods(methods))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// DecodeUnverified returns the token claims without checking the signature.
func (d *TokenDecoder) DecodeUnverified(tokenStr string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
