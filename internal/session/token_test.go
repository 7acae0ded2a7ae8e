package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signedToken builds a real signed JWT for tests. The provider never
// checks the signature, but the token must still be structurally valid.
func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return token
}

func staticSource(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

func TestCurrentReadsProfileClaims(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{
		"sub":   "u-1",
		"email": "ana@example.com",
		"name":  "Ana",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	sess, err := NewTokenProvider(staticSource(raw)).Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}

	if sess.UserID != "u-1" {
		t.Errorf("UserID = %q, want u-1", sess.UserID)
	}
	if sess.Email != "ana@example.com" {
		t.Errorf("Email = %q, want ana@example.com", sess.Email)
	}
	if sess.DisplayName != "Ana" {
		t.Errorf("DisplayName = %q, want Ana", sess.DisplayName)
	}
}

func TestCurrentAcceptsTokenWithoutExpiry(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"sub": "u-1"})

	sess, err := NewTokenProvider(staticSource(raw)).Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if sess.UserID != "u-1" {
		t.Errorf("UserID = %q, want u-1", sess.UserID)
	}
	if sess.Email != "" || sess.DisplayName != "" {
		t.Errorf("profile claims = %q/%q, want empty", sess.Email, sess.DisplayName)
	}
}

func TestCurrentRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "expired",
			token: signedToken(t, jwt.MapClaims{"sub": "u-1", "exp": time.Now().Add(-time.Hour).Unix()}),
		},
		{
			name:  "no subject",
			token: signedToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}),
		},
		{
			name:  "empty subject",
			token: signedToken(t, jwt.MapClaims{"sub": "", "exp": time.Now().Add(time.Hour).Unix()}),
		},
		{
			name:  "malformed",
			token: "not-a-jwt",
		},
		{
			name:  "empty",
			token: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenProvider(staticSource(tt.token)).Current()
			if !errors.Is(err, ErrNotAuthenticated) {
				t.Errorf("err = %v, want ErrNotAuthenticated", err)
			}
		})
	}
}

func TestCurrentWrapsSourceFailure(t *testing.T) {
	source := func() (string, error) { return "", fmt.Errorf("keyring locked") }

	_, err := NewTokenProvider(source).Current()
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}
