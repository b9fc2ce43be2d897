package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSessionExpired is returned before any request when the stored token has
// expired or no session is set.
var ErrSessionExpired = errors.New("session expired, log in again")

// Session holds the bearer token and the expiry read from its claims.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession reads the expiry from the token without verifying the signature;
// the server remains the authority on validity.
func NewSession(token string) (Session, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Session{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return Session{}, errors.New("token has no expiry")
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Valid reports whether the session has a token that has not expired at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// LoadSession reads a session file written by SaveSession.
func LoadSession(path string) (Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// SaveSession writes the session with owner-only permissions.
func SaveSession(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// ClearSession removes the session file; a missing file is not an error.
func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
