package syncjob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudbday/cloudbday/internal/birthday"
	"github.com/cloudbday/cloudbday/internal/google"
	"github.com/cloudbday/cloudbday/internal/observability/metrics"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/person"
	"github.com/cloudbday/cloudbday/internal/task"
	"github.com/cloudbday/cloudbday/internal/tenant"
)

// Events creates yearly calendar events.
type Events interface {
	CreateYearlyEvent(ctx context.Context, namespace, calendarID string, e google.YearlyEvent) (string, error)
}

// Calendar mirrors birthdays into the tenant's shared calendar. Events are
// created on every run; existing events are not looked up.
type Calendar struct {
	tenants Tenants
	people  *person.Service
	events  Events
	queue   task.Queue
	metrics *metrics.Instruments
	now     func() time.Time
	log     *slog.Logger
}

// NewCalendar creates the calendar sync job. in may be nil.
func NewCalendar(tenants Tenants, people *person.Service, events Events, q task.Queue, in *metrics.Instruments) *Calendar {
	return &Calendar{
		tenants: tenants,
		people:  people,
		events:  events,
		queue:   q,
		metrics: in,
		now:     time.Now,
		log:     slog.Default().With(logger.Component("syncjob.calendar")),
	}
}

// WithClock replaces the time source used to anchor new events.
func (j *Calendar) WithClock(now func() time.Time) *Calendar {
	j.now = now
	return j
}

// Register binds the job's task handlers.
func (j *Calendar) Register(d *task.Dispatcher) {
	d.Register(task.KindCalendarSync, func(ctx context.Context, p task.Payload) error {
		_, err := j.SyncTenant(ctx, p.Namespace)
		return err
	})
	d.Register(task.KindCalendarEvent, func(ctx context.Context, p task.Payload) error {
		return j.CreateEvent(ctx, p.Namespace, p.PersonID)
	})
}

// ScheduleAll enqueues sync.calendar for every tenant with a calendar id.
func (j *Calendar) ScheduleAll(ctx context.Context) (int, error) {
	return scheduleEach(ctx, j.log, j.tenants, j.queue, task.KindCalendarSync, (*tenant.Tenant).HasCalendar)
}

// SyncTenant enqueues one calendar.event task per person with a known
// month and day and returns how many were enqueued.
func (j *Calendar) SyncTenant(ctx context.Context, namespace string) (int, error) {
	t, err := j.tenants.Get(ctx, namespace)
	if err != nil {
		return 0, fmt.Errorf("load tenant: %w", err)
	}
	if !t.HasCalendar() {
		j.log.Info("tenant has no calendar, skipping", logger.Namespace(namespace))
		return 0, nil
	}

	people, err := j.people.ListWithBirthday(ctx, namespace)
	if err != nil {
		return 0, fmt.Errorf("list people: %w", err)
	}

	enqueued := 0
	for _, p := range people {
		if !p.HasBirthday() {
			continue
		}
		if _, err := task.Enqueue(ctx, j.queue, task.KindCalendarEvent, task.Payload{Namespace: namespace, PersonID: p.ID}); err != nil {
			return enqueued, fmt.Errorf("enqueue event for %s: %w", p.Email, err)
		}
		enqueued++
	}

	j.log.Info("calendar events scheduled", logger.Namespace(namespace), logger.Count("events", enqueued))
	return enqueued, nil
}

// CreateEvent creates the yearly birthday event of one person.
func (j *Calendar) CreateEvent(ctx context.Context, namespace, personID string) error {
	t, err := j.tenants.Get(ctx, namespace)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}
	if !t.HasCalendar() {
		return nil
	}

	p, err := j.people.Get(ctx, namespace, personID)
	if err != nil {
		return fmt.Errorf("load person %s: %w", personID, err)
	}
	log := j.log.With(logger.Namespace(namespace), logger.PersonID(p.ID), logger.Email(p.Email))
	if !p.HasBirthday() {
		return nil
	}

	start, ok := birthday.Anchor(*p.BirthMonth, *p.BirthDay, j.now().In(time.UTC))
	if !ok {
		log.Warn("birthday does not exist on any calendar, skipping",
			slog.Int("month", *p.BirthMonth), slog.Int("day", *p.BirthDay))
		return nil
	}

	name := p.FullName()
	id, err := j.events.CreateYearlyEvent(ctx, namespace, t.CalendarID, google.YearlyEvent{
		Summary:     "Birthday of " + name,
		Description: fmt.Sprintf("Today is the birthday of %s (%02d/%02d).", name, *p.BirthMonth, *p.BirthDay),
		Start:       start,
		PersonID:    p.ID,
	})
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	j.metrics.EventsCreated(ctx, namespace)
	log.Info("birthday event created", slog.String("event_id", id))
	return nil
}
