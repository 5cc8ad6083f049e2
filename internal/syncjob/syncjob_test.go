package syncjob

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cloudbday/cloudbday/internal/cache/cachetest"
	"github.com/cloudbday/cloudbday/internal/google"
	"github.com/cloudbday/cloudbday/internal/observability/metrics"
	"github.com/cloudbday/cloudbday/internal/person"
	"github.com/cloudbday/cloudbday/internal/person/persontest"
	"github.com/cloudbday/cloudbday/internal/task"
	"github.com/cloudbday/cloudbday/internal/tenant"
	"github.com/cloudbday/cloudbday/internal/tenant/tenanttest"
	"github.com/cloudbday/cloudbday/internal/validation"
)

var fixedNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeProfiles struct {
	feed []google.Profile
	err  error
}

func (f *fakeProfiles) Profiles(_ context.Context, _ string, fn func(google.Profile) error) error {
	for _, p := range f.feed {
		if err := fn(p); err != nil {
			return err
		}
	}
	return f.err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []google.YearlyEvent
	cals   []string
}

func (f *fakeEvents) CreateYearlyEvent(_ context.Context, _ string, calendarID string, e google.YearlyEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	f.cals = append(f.cals, calendarID)
	return "evt", nil
}

func ptr[T any](v T) *T { return &v }

func collectedSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == name {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func fixtures() (*tenanttest.Memory, *person.Service, *persontest.Memory) {
	tenants := tenanttest.New(
		&tenant.Tenant{Namespace: "acme", Domain: "acme.com", CalendarID: "cal@acme.com"},
		&tenant.Tenant{Namespace: "beta", Domain: "beta.io"},
	)
	repo := persontest.New()
	v := validation.NewWithClock(func() time.Time { return fixedNow })
	svc := person.NewService(repo, cachetest.New(), v, nil).WithClock(func() time.Time { return fixedNow })
	return tenants, svc, repo
}

// TestPurpose: Validates that a directory sync upserts valid profiles and skips bad ones.
// Scope: Unit Test
// Expected: Profiles map to <username>@<tenant domain>; a second identical run writes nothing.
// Test Case ID: SYN-01
func TestDirectory_SyncTenant(t *testing.T) {
	ctx := context.Background()
	tenants, svc, repo := fixtures()
	feed := &fakeProfiles{feed: []google.Profile{
		{ID: "ada@legacy.acme.com", ResourceName: "people/1", Birthday: "1985-03-01", GivenName: "ada", FamilyName: "lovelace"},
		{ID: "bob@acme.com", ResourceName: "people/2", Birthday: "--02-02"},
		{ID: "carol@acme.com", ResourceName: "people/3", Birthday: "blablabla"},
		{ID: "dave@acme.com", ResourceName: "people/4"},
	}}
	job := NewDirectory(tenants, svc, feed, task.NewMemoryQueue(), nil)

	stats, err := job.SyncTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, Stats{Seen: 4, Upserted: 2, Skipped: 1}, stats)

	ada, err := svc.GetByEmail(ctx, "acme", "ada@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", ada.FirstName)
	assert.Equal(t, 1985, *ada.BirthYear)
	assert.Equal(t, "people/1", ada.DirectoryID)

	bob, err := svc.GetByEmail(ctx, "acme", "bob@acme.com")
	require.NoError(t, err)
	assert.Nil(t, bob.BirthYear)
	assert.Equal(t, 2, *bob.BirthMonth)

	writes := repo.Writes
	stats, err = job.SyncTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Unchanged)
	assert.Equal(t, writes, repo.Writes)
}

// TestPurpose: Validates that a profile which stops exposing its birth year clears the stored year.
// Scope: Unit Test
// Expected: Syncing 1985-03-01 then --03-01 leaves the year unset after exactly one extra write.
// Test Case ID: SYN-04
func TestDirectory_SyncTenant_YearCleared(t *testing.T) {
	ctx := context.Background()
	tenants, svc, repo := fixtures()
	feed := &fakeProfiles{feed: []google.Profile{
		{ID: "ada@acme.com", ResourceName: "people/1", Birthday: "1985-03-01"},
	}}
	job := NewDirectory(tenants, svc, feed, task.NewMemoryQueue(), nil)

	_, err := job.SyncTenant(ctx, "acme")
	require.NoError(t, err)
	writes := repo.Writes

	feed.feed[0].Birthday = "--03-01"
	stats, err := job.SyncTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, Stats{Seen: 1, Upserted: 1}, stats)
	assert.Equal(t, writes+1, repo.Writes)

	ada, err := svc.GetByEmail(ctx, "acme", "ada@acme.com")
	require.NoError(t, err)
	assert.Nil(t, ada.BirthYear)
	assert.Equal(t, 3, *ada.BirthMonth)
	assert.Equal(t, 1, *ada.BirthDay)

	stats, err = job.SyncTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, writes+1, repo.Writes)
}

func TestDirectory_SyncTenant_FeedError(t *testing.T) {
	tenants, svc, _ := fixtures()
	feedErr := errors.New("people api down")
	job := NewDirectory(tenants, svc, &fakeProfiles{err: feedErr}, task.NewMemoryQueue(), nil)

	_, err := job.SyncTenant(context.Background(), "acme")
	assert.ErrorIs(t, err, feedErr)

	_, err = job.SyncTenant(context.Background(), "missing")
	assert.ErrorIs(t, err, tenant.ErrNotConfigured)
}

// TestPurpose: Validates that scheduling fans out one task per tenant and survives enqueue failures.
// Scope: Unit Test
// Expected: Two tenants yield two sync.directory tasks; a failing queue yields zero without error.
// Test Case ID: SYN-02
func TestDirectory_ScheduleAll(t *testing.T) {
	ctx := context.Background()
	tenants, svc, _ := fixtures()
	q := task.NewMemoryQueue()
	job := NewDirectory(tenants, svc, &fakeProfiles{}, q, nil)

	n, err := job.ScheduleAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, q.OfKind(task.KindDirectorySync), 2)

	q.Err = errors.New("queue unavailable")
	n, err = job.ScheduleAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestPurpose: Validates the calendar fan out from schedule to event creation.
// Scope: Unit Test
// Expected: Only tenants with a calendar are synced; one event per person with a birthday.
// Test Case ID: SYN-03
func TestCalendar_EndToEnd(t *testing.T) {
	ctx := context.Background()
	tenants, svc, repo := fixtures()
	repo.Put(&person.Person{ID: "p1", Namespace: "acme", Email: "ada@acme.com", FirstName: "Ada", BirthMonth: ptr(3), BirthDay: ptr(12)})
	repo.Put(&person.Person{ID: "p2", Namespace: "acme", Email: "leap@acme.com", BirthMonth: ptr(2), BirthDay: ptr(29)})
	repo.Put(&person.Person{ID: "p3", Namespace: "acme", Email: "none@acme.com"})
	repo.Put(&person.Person{ID: "p4", Namespace: "beta", Email: "x@beta.io", BirthMonth: ptr(1), BirthDay: ptr(1)})

	events := &fakeEvents{}
	q := task.NewMemoryQueue()
	d := task.NewDispatcher(nil)
	reader := sdkmetric.NewManualReader()
	in, err := metrics.NewInstruments(metrics.NewFromProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), "cloudbday"))
	require.NoError(t, err)
	job := NewCalendar(tenants, svc, events, q, in).WithClock(func() time.Time { return fixedNow })
	job.Register(d)

	n, err := job.ScheduleAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, q.RunPending(ctx, d))
	require.Len(t, events.events, 2)
	assert.Equal(t, []string{"cal@acme.com", "cal@acme.com"}, events.cals)

	byPerson := map[string]google.YearlyEvent{}
	for _, e := range events.events {
		byPerson[e.PersonID] = e
	}
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), byPerson["p1"].Start)
	assert.Contains(t, byPerson["p1"].Summary, "Ada")
	assert.Equal(t, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), byPerson["p2"].Start)
	assert.Equal(t, int64(2), collectedSum(t, reader, "cloudbday.calendar.events"))
}

func TestCalendar_CreateEvent_ImpossibleDate(t *testing.T) {
	tenants, svc, repo := fixtures()
	repo.Put(&person.Person{ID: "p1", Namespace: "acme", Email: "odd@acme.com", BirthMonth: ptr(9), BirthDay: ptr(35)})
	events := &fakeEvents{}
	job := NewCalendar(tenants, svc, events, task.NewMemoryQueue(), nil).WithClock(func() time.Time { return fixedNow })

	require.NoError(t, job.CreateEvent(context.Background(), "acme", "p1"))
	assert.Empty(t, events.events)
}
