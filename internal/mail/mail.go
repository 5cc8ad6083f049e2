// Package mail sends birthday messages through Mandrill or SMTP.
package mail

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"

	"github.com/cloudbday/cloudbday/internal/observability/logger"
)

// ErrRejected is returned when the provider refuses a recipient.
var ErrRejected = errors.New("message rejected")

// Address is a display name and email pair.
type Address struct {
	Name  string
	Email string
}

// String formats the address for a header, quoting the name when needed.
func (a Address) String() string {
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// Message is a multipart message with text and HTML bodies.
type Message struct {
	From    Address
	To      []Address
	ReplyTo string
	Subject string
	Text    string
	HTML    string
	Tags    []string
}

// Transport delivers messages.
type Transport interface {
	Send(ctx context.Context, m Message) error
}

// LogTransport logs messages instead of sending them. It backs local runs.
type LogTransport struct{}

func (LogTransport) Send(ctx context.Context, m Message) error {
	to := make([]string, 0, len(m.To))
	for _, a := range m.To {
		to = append(to, a.Email)
	}
	slog.InfoContext(ctx, "mail not sent (log transport)",
		logger.Component("mail"),
		slog.String("from", m.From.String()),
		slog.Any("to", to),
		slog.String("subject", m.Subject),
	)
	return nil
}
