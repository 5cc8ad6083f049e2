package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// MandrillConfig holds the Mandrill API settings.
type MandrillConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Mandrill sends through the Mandrill messages/send API.
type Mandrill struct {
	http *resty.Client
	key  string
}

// NewMandrill creates a Mandrill transport.
func NewMandrill(cfg MandrillConfig) *Mandrill {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://mandrillapp.com/api/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Mandrill{http: client, key: cfg.APIKey}
}

type mandrillRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type"`
}

type mandrillMessage struct {
	Subject     string              `json:"subject"`
	HTML        string              `json:"html,omitempty"`
	Text        string              `json:"text,omitempty"`
	FromEmail   string              `json:"from_email"`
	FromName    string              `json:"from_name,omitempty"`
	To          []mandrillRecipient `json:"to"`
	Headers     map[string]string   `json:"headers,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Important   bool                `json:"important"`
	TrackOpens  bool                `json:"track_opens"`
	TrackClicks bool                `json:"track_clicks"`
}

type mandrillResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	RejectReason string `json:"reject_reason"`
}

type mandrillError struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (m *Mandrill) Send(ctx context.Context, msg Message) error {
	body := struct {
		Key     string          `json:"key"`
		Message mandrillMessage `json:"message"`
	}{
		Key: m.key,
		Message: mandrillMessage{
			Subject:     msg.Subject,
			HTML:        msg.HTML,
			Text:        msg.Text,
			FromEmail:   msg.From.Email,
			FromName:    msg.From.Name,
			Tags:        msg.Tags,
			Important:   true,
			TrackOpens:  true,
			TrackClicks: true,
		},
	}
	for _, a := range msg.To {
		body.Message.To = append(body.Message.To, mandrillRecipient{Email: a.Email, Name: a.Name, Type: "to"})
	}
	if msg.ReplyTo != "" {
		body.Message.Headers = map[string]string{"Reply-To": msg.ReplyTo}
	}

	var results []mandrillResult
	var apiErr mandrillError
	resp, err := m.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&results).
		SetError(&apiErr).
		Post("/messages/send.json")
	if err != nil {
		return fmt.Errorf("mandrill send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mandrill send: status %d: %s: %s", resp.StatusCode(), apiErr.Name, apiErr.Message)
	}

	var rejected []string
	for _, r := range results {
		if r.Status == "rejected" || r.Status == "invalid" {
			rejected = append(rejected, r.Email+" ("+r.Status+" "+r.RejectReason+")")
		}
	}
	if len(rejected) > 0 {
		return fmt.Errorf("%w: %s", ErrRejected, strings.Join(rejected, ", "))
	}
	return nil
}
