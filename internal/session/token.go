package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource returns the raw platform access token, e.g. from the
// system keyring or the environment.
type TokenSource func() (string, error)

// TokenProvider derives the session from a platform-issued JWT access
// token. The token's signature belongs to the platform and is not
// verified here; the provider reads the subject, expiry, and profile
// claims, and rejects missing, malformed, or expired tokens.
type TokenProvider struct {
	source TokenSource
	now    func() time.Time
}

// NewTokenProvider creates a provider reading tokens from source.
func NewTokenProvider(source TokenSource) *TokenProvider {
	return &TokenProvider{source: source, now: time.Now}
}

// Current implements Provider.
func (p *TokenProvider) Current() (Session, error) {
	raw, err := p.source()
	if err != nil {
		return Session{}, fmt.Errorf("%w: reading access token: %v", ErrNotAuthenticated, err)
	}
	if raw == "" {
		return Session{}, fmt.Errorf("%w: no access token stored", ErrNotAuthenticated)
	}

	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return Session{}, fmt.Errorf("%w: malformed access token: %v", ErrNotAuthenticated, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, fmt.Errorf("%w: unexpected token claims", ErrNotAuthenticated)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Session{}, fmt.Errorf("%w: token has no subject", ErrNotAuthenticated)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Session{}, fmt.Errorf("%w: bad expiry claim: %v", ErrNotAuthenticated, err)
	}
	if exp != nil && exp.Before(p.now()) {
		return Session{}, fmt.Errorf("%w: access token expired %s", ErrNotAuthenticated, exp.Time.Format(time.RFC3339))
	}

	s := Session{UserID: sub}
	if email, ok := claims["email"].(string); ok {
		s.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		s.DisplayName = name
	}
	return s, nil
}
