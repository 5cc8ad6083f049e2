package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudbday/cloudbday/internal/cache/cachetest"
	"github.com/cloudbday/cloudbday/internal/mail"
	"github.com/cloudbday/cloudbday/internal/person"
	"github.com/cloudbday/cloudbday/internal/person/persontest"
	"github.com/cloudbday/cloudbday/internal/task"
	"github.com/cloudbday/cloudbday/internal/tenant"
	"github.com/cloudbday/cloudbday/internal/tenant/tenanttest"
	"github.com/cloudbday/cloudbday/internal/validation"
)

var fixedNow = time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

type captureTransport struct {
	sent []mail.Message
	err  error
}

func (c *captureTransport) Send(_ context.Context, m mail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m)
	return nil
}

func ptr[T any](v T) *T { return &v }

func fixtures() (*tenanttest.Memory, *person.Service, *persontest.Memory) {
	tenants := tenanttest.New(
		&tenant.Tenant{Namespace: "acme", Domain: "acme.com", FromName: "Acme People", ReplyTo: "hr@acme.com", Tags: []string{"birthday"}},
		&tenant.Tenant{Namespace: "beta", Domain: "beta.io"},
	)
	repo := persontest.New()
	v := validation.NewWithClock(func() time.Time { return fixedNow })
	svc := person.NewService(repo, cachetest.New(), v, nil).WithClock(func() time.Time { return fixedNow })

	repo.Put(&person.Person{ID: "a1", Namespace: "acme", Email: "ada@acme.com", FirstName: "Ada", LastName: "Lovelace", BirthMonth: ptr(3), BirthDay: ptr(12), ReceiveMail: true})
	repo.Put(&person.Person{ID: "a2", Namespace: "acme", Email: "out@acme.com", BirthMonth: ptr(3), BirthDay: ptr(12), ReceiveMail: false})
	repo.Put(&person.Person{ID: "a3", Namespace: "acme", Email: "bob@acme.com", BirthMonth: ptr(3), BirthDay: ptr(11), ReceiveMail: true})
	repo.Put(&person.Person{ID: "b1", Namespace: "beta", Email: "eve@beta.io", BirthMonth: ptr(3), BirthDay: ptr(12), ReceiveMail: true})
	return tenants, svc, repo
}

// TestPurpose: Validates that the daily sweep enqueues one mail task per opted-in celebrant across tenants.
// Scope: Unit Test
// Expected: Only March 12 opted-in persons are enqueued on the mail queue with their namespace.
// Test Case ID: NOT-01
func TestNotifier_Sweep(t *testing.T) {
	tenants, svc, _ := fixtures()
	q := task.NewMemoryQueue()
	n := NewNotifier(tenants, svc, q, nil, nil)

	sum, err := n.Sweep(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, Summary{Date: "2026-03-12", Tenants: 2, Enqueued: 2}, sum)

	var got []task.Payload
	for _, tk := range q.OfKind(task.KindBirthdayMail) {
		assert.Equal(t, task.QueueMail, tk.Queue)
		p, err := tk.Decode()
		require.NoError(t, err)
		got = append(got, p)
	}
	assert.ElementsMatch(t, []task.Payload{{Namespace: "acme", PersonID: "a1"}, {Namespace: "beta", PersonID: "b1"}}, got)
}

func TestNotifier_Sweep_TimeZone(t *testing.T) {
	tenants, svc, _ := fixtures()
	q := task.NewMemoryQueue()
	west := time.FixedZone("UTC-5", -5*60*60)
	n := NewNotifier(tenants, svc, q, west, nil)

	// 02:00 UTC on March 12 is still March 11 five hours west.
	sum, err := n.Sweep(context.Background(), time.Date(2026, 3, 12, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", sum.Date)
	require.Len(t, q.Tasks(), 1)
}

func TestNotifier_Sweep_TenantFailureContinues(t *testing.T) {
	tenants, svc, _ := fixtures()
	q := task.NewMemoryQueue()
	q.Err = errors.New("broker down")
	n := NewNotifier(tenants, svc, q, nil, nil)

	sum, err := n.Sweep(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)
	assert.Zero(t, sum.Enqueued)
}

// TestPurpose: Validates the message built for a celebrant with built-in templates.
// Scope: Unit Test
// Expected: From uses the tenant display name and sender address; reply-to, tags and bodies are set.
// Test Case ID: NOT-02
func TestSender_Send(t *testing.T) {
	tenants, svc, _ := fixtures()
	tr := &captureTransport{}
	s := NewSender(tenants, svc, tr, NewRenderer(""), "noreply@cloudbday.io", nil)

	require.NoError(t, s.Send(context.Background(), "acme", "a1"))
	require.Len(t, tr.sent, 1)
	m := tr.sent[0]
	assert.Equal(t, mail.Address{Name: "Acme People", Email: "noreply@cloudbday.io"}, m.From)
	assert.Equal(t, []mail.Address{{Name: "Ada Lovelace", Email: "ada@acme.com"}}, m.To)
	assert.Equal(t, "hr@acme.com", m.ReplyTo)
	assert.Equal(t, tenant.DefaultSubject, m.Subject)
	assert.Equal(t, []string{"birthday"}, m.Tags)
	assert.Contains(t, m.Text, "Happy Birthday, Ada!")
	assert.Contains(t, m.HTML, "<h1>Happy Birthday, Ada!</h1>")
}

func TestSender_Send_OptedOutAndErrors(t *testing.T) {
	tenants, svc, _ := fixtures()
	tr := &captureTransport{}
	s := NewSender(tenants, svc, tr, NewRenderer(""), "noreply@cloudbday.io", nil)
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, "acme", "a2"))
	assert.Empty(t, tr.sent)

	assert.ErrorIs(t, s.Send(ctx, "acme", "missing"), person.ErrNotFound)

	tr.err = mail.ErrRejected
	assert.ErrorIs(t, s.Send(ctx, "acme", "a1"), mail.ErrRejected)
}

// TestPurpose: Validates tenant template resolution inside the templates directory.
// Scope: Unit Test
// Expected: A tenant file is used, a missing file falls back, and escaping paths are refused.
// Test Case ID: NOT-03
func TestRenderer_TenantTemplates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "acme"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme", "bday.txt"), []byte("Hi {{ .Celebrant.FirstName }} from {{ .Tenant.Domain }}"), 0o644))

	r := NewRenderer(dir)
	d := Data{
		Celebrant: &person.Person{FirstName: "Ada", Email: "ada@acme.com"},
		Tenant:    &tenant.Tenant{Domain: "acme.com", TextTemplate: "acme/bday.txt", HTMLTemplate: "acme/missing.html"},
	}

	htmlBody, textBody, err := r.Render(d)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada from acme.com", textBody)
	assert.Contains(t, htmlBody, "Happy Birthday, Ada!")

	d.Tenant.TextTemplate = "../etc/passwd"
	_, _, err = r.Render(d)
	assert.Error(t, err)
}
