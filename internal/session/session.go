package session

import "errors"

// ErrNotAuthenticated reports that no valid user session is available.
// Callers surface it to the user; nothing auto-retries behind it.
var ErrNotAuthenticated = errors.New("not authenticated")

// Session identifies the signed-in platform user. The zero value means
// no one is signed in.
type Session struct {
	// UserID is the platform user id; it matches Profile.ID and the
	// creator/assignee/owner columns on records.
	UserID string

	// Email and DisplayName come from the token's profile claims.
	Email       string
	DisplayName string
}

// IsZero reports whether the session identifies no user.
func (s Session) IsZero() bool { return s.UserID == "" }

// Provider yields the current session. Identity is owned by the
// platform; this client only reads it.
type Provider interface {
	// Current returns the active session, or ErrNotAuthenticated when
	// there is none.
	Current() (Session, error)
}

type staticProvider struct {
	s Session
}

func (p staticProvider) Current() (Session, error) {
	if p.s.IsZero() {
		return Session{}, ErrNotAuthenticated
	}
	return p.s, nil
}

// Static returns a Provider that always yields s. A zero s yields
// ErrNotAuthenticated.
func Static(s Session) Provider { return staticProvider{s} }
