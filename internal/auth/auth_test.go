package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTestService(t *testing.T, ttl time.Duration) *AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewAuthServiceFromKeys(key, &key.PublicKey, ttl)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(t, time.Hour)

	token, expiresAt, err := svc.GenerateToken(42)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expiry should be in the future")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 || claims.Subject != "42" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newTestService(t, time.Minute)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }

	token, _, err := svc.GenerateToken(1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken got %v", err)
	}
}

func TestValidateTokenRejectsForeignKey(t *testing.T) {
	issuer := newTestService(t, time.Hour)
	verifier := newTestService(t, time.Hour)

	token, _, err := issuer.GenerateToken(7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := verifier.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken got %v", err)
	}
	if _, err := verifier.ValidateToken(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token should be invalid")
	}
	if _, err := verifier.ValidateToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token should be invalid")
	}
}

func TestNewAuthServiceRequiresKeys(t *testing.T) {
	if _, err := NewAuthService(nil, []byte("x"), time.Hour); err == nil {
		t.Fatalf("expected error for missing private key")
	}
	if _, err := NewAuthService([]byte("x"), nil, time.Hour); err == nil {
		t.Fatalf("expected error for missing public key")
	}
	if _, err := NewAuthService([]byte("x"), []byte("y"), time.Hour); err == nil {
		t.Fatalf("expected error for malformed pem")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatalf("hash must not equal the password")
	}
	if !CheckPasswordHash("s3cret!", hash) {
		t.Fatalf("expected match")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Fatalf("expected mismatch")
	}

	generated, err := GeneratePassword(24)
	if err != nil {
		t.Fatalf("generate password: %v", err)
	}
	if len(generated) != 32 {
		t.Fatalf("expected 32 chars got %d", len(generated))
	}
}

func TestStateStoreConsumesOnce(t *testing.T) {
	store := newStateStore()
	store.put("a", time.Now().Add(time.Minute))
	store.put("old", time.Now().Add(-time.Minute))

	if !store.consume("a") {
		t.Fatalf("fresh state should be accepted")
	}
	if store.consume("a") {
		t.Fatalf("state must not be reusable")
	}
	if store.consume("old") {
		t.Fatalf("expired state must be rejected")
	}
	if store.consume("missing") {
		t.Fatalf("unknown state must be rejected")
	}
}

func TestAppendToken(t *testing.T) {
	got, err := AppendToken("http://localhost:3000/callback?next=%2Fresumes", "abc")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	u, _ := url.Parse(got)
	if u.Query().Get("token") != "abc" || u.Query().Get("next") != "/resumes" {
		t.Fatalf("unexpected url %s", got)
	}
	if _, err := AppendToken("", "abc"); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestNewGoogleServiceDisabledWithoutCredentials(t *testing.T) {
	if NewGoogleService("id", "", "http://cb") != nil {
		t.Fatalf("expected nil service without secret")
	}
}

func TestGoogleExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer access" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id":    "g-1",
				"email": "user@example.com",
				"name":  "User",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	svc := NewGoogleService("id", "secret", "http://localhost/cb")
	svc.oauthConfig.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	svc.userInfoURL = srv.URL + "/userinfo"

	consent, err := url.Parse(svc.AuthCodeURL())
	if err != nil {
		t.Fatalf("parse consent url: %v", err)
	}
	if !strings.HasPrefix(consent.String(), srv.URL+"/auth") {
		t.Fatalf("unexpected consent url %s", consent)
	}
	state := consent.Query().Get("state")

	user, err := svc.Exchange(context.Background(), state, "code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if user.Sub != "g-1" || user.Email != "user@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := svc.Exchange(context.Background(), state, "code"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("replayed state should fail, got %v", err)
	}
}
