package tenant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloudbday/cloudbday/internal/audit"
	"github.com/cloudbday/cloudbday/internal/cache/cachetest"
	"github.com/cloudbday/cloudbday/internal/validation"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Get(ctx context.Context, namespace string) (*Tenant, error) {
	args := m.Called(ctx, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tenant), args.Error(1)
}

func (m *mockRepo) Upsert(ctx context.Context, t *Tenant) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockRepo) Delete(ctx context.Context, namespace string) error {
	args := m.Called(ctx, namespace)
	return args.Error(0)
}

func (m *mockRepo) Namespaces(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

type fakeSealer struct{}

func (fakeSealer) Seal(namespace string, plaintext []byte) ([]byte, error) {
	return append([]byte(namespace+":"), plaintext...), nil
}

func (fakeSealer) Open(namespace string, sealed []byte) ([]byte, error) {
	return []byte(strings.TrimPrefix(string(sealed), namespace+":")), nil
}

func newRegistry(repo Repository) (*Registry, *cachetest.Memory, *mockAudit) {
	c := cachetest.New()
	a := new(mockAudit)
	a.On("Log", mock.Anything, mock.Anything).Return()
	r := NewRegistry(repo, c, fakeSealer{}, validation.New(), a)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return r, c, a
}

func validRequest() SaveRequest {
	return SaveRequest{
		Domain:         "Acme.com",
		Administrators: []string{"Root@Acme.com"},
		FromName:       "people team",
		ReplyTo:        "hr@acme.com",
		RefreshToken:   "1//refresh",
	}
}

// TestPurpose: Validates the read-through cache of the tenant registry.
// Scope: Unit Test
// Expected: The first Get loads from the repository and fills the cache; the second is served from cache.
// Test Case ID: TEN-01
func TestRegistry_Get_ReadThrough(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r, c, _ := newRegistry(repo)

	repo.On("Get", ctx, "acme").Return(&Tenant{Namespace: "acme", Domain: "acme.com"}, nil).Once()

	got, err := r.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme.com", got.Domain)
	assert.True(t, c.Has(CacheKey("acme")))
	assert.Equal(t, time.Duration(0), c.TTLs[CacheKey("acme")])

	got, err = r.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme.com", got.Domain)
	repo.AssertNumberOfCalls(t, "Get", 1)
}

// TestPurpose: Validates that an unconfigured namespace is reported distinctly.
// Scope: Unit Test
// Expected: Get returns ErrNotConfigured and caches nothing.
// Test Case ID: TEN-02
func TestRegistry_Get_NotConfigured(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r, c, _ := newRegistry(repo)

	repo.On("Get", ctx, "ghost").Return(nil, ErrNotConfigured)

	_, err := r.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, c.Has(CacheKey("ghost")))

	repo.On("Get", ctx, "broken").Return(nil, errors.New("connection reset"))
	_, err = r.Get(ctx, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)
}

// TestPurpose: Validates that saving a tenant normalizes fields, seals the token and invalidates the cache.
// Scope: Unit Test
// Expected: A Get after Save returns the freshly saved values rather than the stale cached entry.
// Test Case ID: TEN-03
func TestRegistry_Save_ThenGetIsFresh(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r, c, a := newRegistry(repo)

	stale := &Tenant{Namespace: "acme", Domain: "old.example.com", Administrators: []string{"root@acme.com"}}
	repo.On("Get", ctx, "acme").Return(stale, nil).Once()
	_, err := r.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, c.Has(CacheKey("acme")))

	var saved *Tenant
	repo.On("Get", ctx, "acme").Return(stale, nil).Once()
	repo.On("Upsert", ctx, mock.AnythingOfType("*tenant.Tenant")).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*Tenant)
	}).Return(nil)

	got, err := r.Save(ctx, "acme", "root@acme.com", validRequest())
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Namespace)
	assert.Equal(t, "acme.com", got.Domain)
	assert.Equal(t, []string{"root@acme.com"}, got.Administrators)
	assert.Equal(t, "People Team", got.FromName)
	assert.Equal(t, []byte("acme:1//refresh"), got.RefreshTokenSealed)
	assert.False(t, c.Has(CacheKey("acme")))

	repo.On("Get", ctx, "acme").Return(saved, nil).Once()
	fresh, err := r.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme.com", fresh.Domain)

	a.AssertCalled(t, "Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeTenantSaved && e.Namespace == "acme" && e.Actor == "root@acme.com"
	}))
}

func TestRegistry_Save_KeepsTokenWhenOmitted(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r, _, _ := newRegistry(repo)

	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.On("Get", ctx, "acme").Return(&Tenant{Namespace: "acme", RefreshTokenSealed: []byte("sealed"), CreatedAt: created}, nil)
	repo.On("Upsert", ctx, mock.Anything).Return(nil)

	req := validRequest()
	req.RefreshToken = ""
	got, err := r.Save(ctx, "acme", "root@acme.com", req)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), got.RefreshTokenSealed)
	assert.Equal(t, created, got.CreatedAt)
}

// TestPurpose: Validates tenant field validation.
// Scope: Unit Test
// Expected: Missing administrators and a malformed reply-to yield a ValidationError and no write.
// Test Case ID: TEN-04
func TestRegistry_Save_Validation(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r, _, _ := newRegistry(repo)

	repo.On("Get", ctx, "acme").Return(nil, ErrNotConfigured)

	req := validRequest()
	req.Administrators = nil
	req.ReplyTo = "not-an-email"

	_, err := r.Save(ctx, "acme", "root@acme.com", req)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "administrators")
	assert.Contains(t, verr.Fields, "reply_to")
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestRegistry_Save_CacheDeleteFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r, c, _ := newRegistry(repo)

	repo.On("Get", ctx, "acme").Return(nil, ErrNotConfigured)
	repo.On("Upsert", ctx, mock.Anything).Return(nil)
	c.Err = errors.New("redis down")

	_, err := r.Save(ctx, "acme", "root@acme.com", validRequest())
	assert.ErrorContains(t, err, "invalidate tenant cache")
}

// TestPurpose: Validates that Delete always clears the cache entry.
// Scope: Unit Test
// Expected: Even when the repository delete fails the cache entry is gone.
// Test Case ID: TEN-05
func TestRegistry_Delete_AlwaysInvalidates(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r, c, a := newRegistry(repo)

	require.NoError(t, c.Set(ctx, CacheKey("acme"), []byte(`{"namespace":"acme"}`), 0))
	repo.On("Delete", ctx, "acme").Return(errors.New("db down")).Once()

	err := r.Delete(ctx, "acme", "root@acme.com")
	assert.Error(t, err)
	assert.False(t, c.Has(CacheKey("acme")))
	a.AssertNotCalled(t, "Log", mock.Anything, mock.Anything)

	repo.On("Delete", ctx, "acme").Return(nil).Once()
	require.NoError(t, r.Delete(ctx, "acme", "root@acme.com"))
	a.AssertCalled(t, "Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeTenantDeleted
	}))
}

func TestIsAdministrator(t *testing.T) {
	tn := &Tenant{Administrators: []string{"root@acme.com", "hr@acme.com"}}
	assert.True(t, IsAdministrator(tn, "ROOT@acme.com"))
	assert.True(t, IsAdministrator(tn, " hr@acme.com "))
	assert.False(t, IsAdministrator(tn, "intruder@acme.com"))
	assert.False(t, IsAdministrator(nil, "root@acme.com"))
}

func TestTenant_MailSubject(t *testing.T) {
	assert.Equal(t, DefaultSubject, (&Tenant{}).MailSubject())
	assert.Equal(t, "Cheers", (&Tenant{Subject: "Cheers"}).MailSubject())
}

func TestRegistry_RefreshToken(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r, _, _ := newRegistry(repo)

	repo.On("Get", ctx, "acme").Return(&Tenant{Namespace: "acme", RefreshTokenSealed: []byte("acme:1//refresh")}, nil)
	repo.On("Get", ctx, "bare").Return(&Tenant{Namespace: "bare"}, nil)

	tok, err := r.RefreshToken(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "1//refresh", tok)

	_, err = r.RefreshToken(ctx, "bare")
	assert.ErrorIs(t, err, ErrNoCredentials)
}
