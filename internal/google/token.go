package google

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// expiryMargin renews access tokens slightly before Google expires them.
const expiryMargin = time.Minute

type accessToken struct {
	value  string
	expiry time.Time
}

// TokenSource exchanges tenant refresh tokens for access tokens and keeps
// them in memory until shortly before expiry.
type TokenSource struct {
	http    *resty.Client
	cfg     Config
	refresh RefreshTokens
	now     func() time.Time

	mu     sync.Mutex
	tokens map[string]accessToken
}

// NewTokenSource creates a token source for the OAuth client in cfg.
func NewTokenSource(cfg Config, refresh RefreshTokens) *TokenSource {
	cfg = cfg.withDefaults()
	return &TokenSource{
		http:    newREST("", cfg),
		cfg:     cfg,
		refresh: refresh,
		now:     time.Now,
		tokens:  make(map[string]accessToken),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// AccessToken returns a valid access token for namespace.
func (s *TokenSource) AccessToken(ctx context.Context, namespace string) (string, error) {
	s.mu.Lock()
	tok, ok := s.tokens[namespace]
	s.mu.Unlock()
	if ok && s.now().Before(tok.expiry) {
		return tok.value, nil
	}

	refreshToken, err := s.refresh.RefreshToken(ctx, namespace)
	if err != nil {
		return "", err
	}

	var out tokenResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
			"client_id":     s.cfg.ClientID,
			"client_secret": s.cfg.ClientSecret,
		}).
		SetResult(&out).
		Post(s.cfg.TokenURL)
	if err := checkResponse("token", resp, err); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("google token: empty access token")
	}

	tok = accessToken{
		value:  out.AccessToken,
		expiry: s.now().Add(time.Duration(out.ExpiresIn)*time.Second - expiryMargin),
	}
	s.mu.Lock()
	s.tokens[namespace] = tok
	s.mu.Unlock()
	return tok.value, nil
}

// Forget drops the cached access token of namespace.
func (s *TokenSource) Forget(namespace string) {
	s.mu.Lock()
	delete(s.tokens, namespace)
	s.mu.Unlock()
}
