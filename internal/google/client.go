// Package google talks to the Google OAuth token endpoint, the People API
// directory listing and Calendar v3 on behalf of a tenant.
package google

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config holds the OAuth client and endpoint settings.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	PeopleURL    string
	CalendarURL  string
	Timeout      time.Duration
	RetryCount   int
}

func (c Config) withDefaults() Config {
	if c.TokenURL == "" {
		c.TokenURL = "https://oauth2.googleapis.com/token"
	}
	if c.PeopleURL == "" {
		c.PeopleURL = "https://people.googleapis.com"
	}
	if c.CalendarURL == "" {
		c.CalendarURL = "https://www.googleapis.com/calendar/v3"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// RefreshTokens resolves a tenant's stored OAuth refresh token.
type RefreshTokens interface {
	RefreshToken(ctx context.Context, namespace string) (string, error)
}

// AccessTokens supplies bearer tokens per tenant.
type AccessTokens interface {
	AccessToken(ctx context.Context, namespace string) (string, error)
}

// APIError is a non-2xx response from a Google endpoint.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

func newREST(baseURL string, cfg Config) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")
}

func checkResponse(endpoint string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("google %s: %w", endpoint, err)
	}
	if resp.IsError() {
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode(), Body: truncate(resp.String(), 512)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
