package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudbday/cloudbday/internal/mail"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/observability/metrics"
	"github.com/cloudbday/cloudbday/internal/person"
	"github.com/cloudbday/cloudbday/internal/task"
	"github.com/cloudbday/cloudbday/internal/tenant"
)

// Tenants loads a tenant by namespace.
type Tenants interface {
	Get(ctx context.Context, namespace string) (*tenant.Tenant, error)
}

// Sender delivers one birthday message.
type Sender struct {
	tenants   Tenants
	people    *person.Service
	transport mail.Transport
	renderer  *Renderer
	from      string
	now       func() time.Time
	metrics   *metrics.Instruments
	log       *slog.Logger
}

// NewSender creates a sender. from is the envelope address; the tenant's
// from_name becomes its display name.
func NewSender(tenants Tenants, people *person.Service, t mail.Transport, r *Renderer, from string, in *metrics.Instruments) *Sender {
	return &Sender{
		tenants:   tenants,
		people:    people,
		transport: t,
		renderer:  r,
		from:      from,
		now:       time.Now,
		metrics:   in,
		log:       slog.Default().With(logger.Component("notify.sender")),
	}
}

// Register binds the mail.birthday handler.
func (s *Sender) Register(d *task.Dispatcher) {
	d.Register(task.KindBirthdayMail, func(ctx context.Context, p task.Payload) error {
		return s.Send(ctx, p.Namespace, p.PersonID)
	})
}

// Send reloads the person and tenant and mails the person. Persons who
// opted out since the task was enqueued are skipped.
func (s *Sender) Send(ctx context.Context, namespace, personID string) error {
	p, err := s.people.Get(ctx, namespace, personID)
	if err != nil {
		return fmt.Errorf("load person %s: %w", personID, err)
	}
	log := s.log.With(logger.Namespace(namespace), logger.Email(p.Email))
	if !p.ReceiveMail {
		log.Info("celebrant opted out, skipping")
		return nil
	}

	t, err := s.tenants.Get(ctx, namespace)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}

	htmlBody, textBody, err := s.renderer.Render(Data{Celebrant: p, Tenant: t, Date: s.now()})
	if err != nil {
		return err
	}

	msg := mail.Message{
		From:    mail.Address{Name: t.FromName, Email: s.from},
		To:      []mail.Address{{Name: p.FullName(), Email: p.Email}},
		ReplyTo: t.ReplyTo,
		Subject: t.MailSubject(),
		Text:    textBody,
		HTML:    htmlBody,
		Tags:    t.Tags,
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("send birthday mail to %s: %w", p.Email, err)
	}

	s.metrics.MailSent(ctx, namespace)
	log.Info("birthday mail sent")
	return nil
}
