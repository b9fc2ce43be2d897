package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	ErrInvalidState   = errors.New("invalid or expired oauth state")
	ErrGoogleDisabled = errors.New("google sign-in is not configured")
)

// GoogleUser is the subset of the userinfo response used to link accounts.
type GoogleUser struct {
	Sub   string `json:"sub"`
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// GoogleService drives the authorization code flow. States are kept in memory
// and consumed once.
type GoogleService struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	stateTTL    time.Duration
	states      *stateStore
}

// NewGoogleService returns nil when any credential is missing.
func NewGoogleService(clientID, clientSecret, redirectURL string) *GoogleService {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
		stateTTL:    5 * time.Minute,
		states:      newStateStore(),
	}
}

// AuthCodeURL registers a fresh state and returns the consent page URL.
func (s *GoogleService) AuthCodeURL() string {
	state := uuid.NewString()
	s.states.put(state, time.Now().Add(s.stateTTL))
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange validates state, trades code for a token and fetches the profile.
func (s *GoogleService) Exchange(ctx context.Context, state, code string) (GoogleUser, error) {
	if !s.states.consume(state) {
		return GoogleUser{}, ErrInvalidState
	}

	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return GoogleUser{}, fmt.Errorf("exchange code: %w", err)
	}

	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return GoogleUser{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GoogleUser{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return GoogleUser{}, fmt.Errorf("decode userinfo: %w", err)
	}
	// v2 responses carry "id" rather than "sub".
	if info.Sub == "" {
		info.Sub = info.ID
	}
	if info.Sub == "" || info.Email == "" {
		return GoogleUser{}, errors.New("userinfo missing subject or email")
	}
	return info, nil
}

type stateStore struct {
	items map[string]time.Time
	mu    sync.Mutex
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time)}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, v := range s.items {
		if now.After(v) {
			delete(s.items, k)
		}
	}
	s.items[state] = exp
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	exp, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()
	return ok && !time.Now().After(exp)
}

// AppendToken adds token as a query parameter of rawURL.
func AppendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
