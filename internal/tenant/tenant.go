// Package tenant holds per-namespace tenant settings and their registry.
package tenant

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cloudbday/cloudbday/internal/validation"
)

// Tenant is the per-namespace configuration record.
type Tenant struct {
	Namespace      string   `json:"namespace" validate:"required,max=100"`
	Domain         string   `json:"domain" validate:"required,fqdn"`
	Administrators []string `json:"administrators" validate:"min=1,dive,bdayemail"`
	CustomerID     string   `json:"customer_id,omitempty"`
	CalendarID     string   `json:"calendar_id,omitempty"`
	HTMLTemplate   string   `json:"html_template,omitempty"`
	TextTemplate   string   `json:"text_template,omitempty"`
	FromName       string   `json:"from_name,omitempty" validate:"max=60"`
	ReplyTo        string   `json:"reply_to,omitempty" validate:"omitempty,bdayemail"`
	Subject        string   `json:"subject,omitempty" validate:"max=200"`
	Tags           []string `json:"tags,omitempty"`
	// RefreshTokenSealed is the OAuth refresh token sealed with secrets.Cipher.
	RefreshTokenSealed []byte    `json:"refresh_token_sealed,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultSubject is used when a tenant has no subject configured.
const DefaultSubject = "Happy Birthday!"

// HasCalendar reports whether calendar sync is enabled for the tenant.
func (t *Tenant) HasCalendar() bool {
	return t.CalendarID != ""
}

// HasCredentials reports whether a refresh token has been stored.
func (t *Tenant) HasCredentials() bool {
	return len(t.RefreshTokenSealed) > 0
}

// MailSubject returns the configured subject or DefaultSubject.
func (t *Tenant) MailSubject() string {
	if t.Subject == "" {
		return DefaultSubject
	}
	return t.Subject
}

// SaveRequest carries the admin-editable tenant fields. RefreshToken, when
// non-empty, replaces the stored credential; an empty value keeps it.
type SaveRequest struct {
	Domain         string   `json:"domain"`
	Administrators []string `json:"administrators"`
	CustomerID     string   `json:"customer_id"`
	CalendarID     string   `json:"calendar_id"`
	HTMLTemplate   string   `json:"html_template"`
	TextTemplate   string   `json:"text_template"`
	FromName       string   `json:"from_name"`
	ReplyTo        string   `json:"reply_to"`
	Subject        string   `json:"subject"`
	Tags           []string `json:"tags"`
	RefreshToken   string   `json:"refresh_token"`
}

// ValidationError reports invalid tenant fields.
type ValidationError = validation.Error

// normalize lower-cases emails and domain and title-cases the sender name.
func normalize(t *Tenant) {
	t.Namespace = strings.TrimSpace(t.Namespace)
	t.Domain = strings.ToLower(strings.TrimSpace(t.Domain))
	for i, a := range t.Administrators {
		t.Administrators[i] = strings.ToLower(strings.TrimSpace(a))
	}
	t.ReplyTo = strings.ToLower(strings.TrimSpace(t.ReplyTo))
	t.FromName = cases.Title(language.Und).String(strings.TrimSpace(t.FromName))
	t.Subject = strings.TrimSpace(t.Subject)
}

// IsAdministrator reports whether email is one of t's administrators,
// ignoring case.
func IsAdministrator(t *Tenant, email string) bool {
	if t == nil {
		return false
	}
	email = strings.TrimSpace(email)
	for _, a := range t.Administrators {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}
