package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Strava OAuth endpoints.
const (
	StravaAuthURL  = "https://www.strava.com/oauth/authorize"
	StravaTokenURL = "https://www.strava.com/oauth/token"
)

// ErrRefreshUnsupported is returned by sources that hold no refresh credentials.
var ErrRefreshUnsupported = errors.New("oauth: token source cannot refresh")

// Token represents the OAuth token structure we care about
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenSource returns a valid token.
// It is safe for concurrent use by multiple goroutines.
type TokenSource interface {
	Token(context.Context) (*Token, error)
	ForceRefresh(context.Context) (*Token, error)
}

// StaticTokenSource serves a pre-issued access token, e.g. one obtained
// through the one-time local authorization flow.
type StaticTokenSource struct {
	AccessToken string
}

func (s *StaticTokenSource) Token(ctx context.Context) (*Token, error) {
	if s.AccessToken == "" {
		return nil, fmt.Errorf("missing access token")
	}
	return &Token{AccessToken: s.AccessToken}, nil
}

func (s *StaticTokenSource) ForceRefresh(ctx context.Context) (*Token, error) {
	return nil, ErrRefreshUnsupported
}

// RefreshingTokenSource exchanges a refresh token for new access tokens
// when the current one expires.
type RefreshingTokenSource struct {
	config *oauth2.Config
	mu     sync.Mutex
	token  *oauth2.Token
}

// NewRefreshingTokenSource creates a source for Strava. accessToken may be
// empty, in which case the first call refreshes.
func NewRefreshingTokenSource(clientID, clientSecret, accessToken, refreshToken string) *RefreshingTokenSource {
	return newRefreshingTokenSource(clientID, clientSecret, StravaTokenURL, accessToken, refreshToken)
}

func newRefreshingTokenSource(clientID, clientSecret, tokenURL, accessToken, refreshToken string) *RefreshingTokenSource {
	return &RefreshingTokenSource{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  StravaAuthURL,
				TokenURL: tokenURL,
				// Strava requires client_id/secret in body
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"activity:write", "activity:read"},
		},
		token: &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		},
	}
}

// Token returns a token, refreshing it if necessary.
func (s *RefreshingTokenSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Valid() {
		return convert(s.token), nil
	}
	return s.refresh(ctx, s.token)
}

// ForceRefresh forcibly refreshes the token regardless of expiry.
func (s *RefreshingTokenSource) ForceRefresh(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refresh(ctx, &oauth2.Token{RefreshToken: s.token.RefreshToken})
}

func (s *RefreshingTokenSource) refresh(ctx context.Context, current *oauth2.Token) (*Token, error) {
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("missing refresh token for strava")
	}

	next, err := s.config.TokenSource(ctx, current).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}

	// Preserve the original refresh token if the provider didn't return a new one
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	s.token = next
	return convert(next), nil
}

func convert(t *oauth2.Token) *Token {
	return &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}
