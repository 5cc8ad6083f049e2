package person

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cloudbday/cloudbday/internal/birthday"
	"github.com/cloudbday/cloudbday/internal/cache"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/observability/metrics"
	"github.com/cloudbday/cloudbday/internal/validation"
)

// UpcomingTTL bounds how long the ordered birthday list is cached.
const UpcomingTTL = 24 * time.Hour

// UpcomingKey returns the cache key of a namespace's ordered birthday list.
func UpcomingKey(namespace string) string {
	return "birthdays:" + namespace
}

// Service provides person record business logic
type Service struct {
	repo      Repository
	cache     cache.Cache
	validator *validation.Validator
	metrics   *metrics.Instruments
	now       func() time.Time
}

// NewService creates a new person service. in may be nil.
func NewService(repo Repository, c cache.Cache, v *validation.Validator, in *metrics.Instruments) *Service {
	return &Service{
		repo:      repo,
		cache:     c,
		validator: v,
		metrics:   in,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for timestamps and upcoming order.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// UpsertByEmail creates the person for email or applies changes to the
// existing record. An existing record is only written when NeedsSave reports
// a difference. The returned bool reports whether a write happened.
func (s *Service) UpsertByEmail(ctx context.Context, namespace, email string, c Changes) (*Person, bool, error) {
	email = NormalizeEmail(email)

	current, err := s.repo.GetByEmail(ctx, namespace, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.create(ctx, namespace, email, c)
	case err != nil:
		return nil, false, fmt.Errorf("lookup person %s: %w", email, err)
	}

	if !NeedsSave(*current, c) {
		return current, false, nil
	}

	updated := *current
	c.ApplyTo(&updated)
	if err := s.validator.Struct(&updated); err != nil {
		return nil, false, err
	}
	updated.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, false, fmt.Errorf("update person %s: %w", email, err)
	}
	s.invalidate(ctx, namespace)
	return &updated, true, nil
}

func (s *Service) create(ctx context.Context, namespace, email string, c Changes) (*Person, bool, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("generate person id: %w", err)
	}
	now := s.now().UTC()
	p := &Person{
		ID:          id.String(),
		Namespace:   namespace,
		Email:       email,
		ReceiveMail: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.ApplyTo(p)
	if err := s.validator.Struct(p); err != nil {
		return nil, false, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, false, fmt.Errorf("create person %s: %w", email, err)
	}
	s.invalidate(ctx, namespace)
	return p, true, nil
}

// ImportRecord is one row of a bulk import.
type ImportRecord struct {
	Email     string `json:"email"`
	Birthday  string `json:"birthday"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// SkippedRow explains why an import row was not written. Row is 1-based.
type SkippedRow struct {
	Row    int    `json:"row"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int          `json:"imported"`
	Skipped  []SkippedRow `json:"skipped"`
}

// BulkImport parses and validates every record, then writes all valid rows
// in one batch. Invalid rows are skipped and reported; a later row for the
// same email replaces an earlier one.
func (s *Service) BulkImport(ctx context.Context, namespace string, records []ImportRecord) (ImportResult, error) {
	result := ImportResult{Skipped: []SkippedRow{}}
	byEmail := make(map[string]int)
	var batch []*Person

	now := s.now().UTC()
	for i, rec := range records {
		row := i + 1
		email := NormalizeEmail(rec.Email)

		d, err := birthday.Parse(rec.Birthday)
		if err != nil {
			slog.WarnContext(ctx, "skipping import row",
				logger.Namespace(namespace), logger.Email(email), logger.Birthday(rec.Birthday), logger.Error(err))
			result.Skipped = append(result.Skipped, SkippedRow{Row: row, Email: email, Reason: err.Error()})
			continue
		}

		p := &Person{
			Namespace:   namespace,
			Email:       email,
			FirstName:   NormalizeName(rec.FirstName),
			LastName:    NormalizeName(rec.LastName),
			BirthDay:    intPtr(d.Day),
			BirthMonth:  intPtr(d.Month),
			BirthYear:   d.YearPtr(),
			ReceiveMail: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.validator.Struct(p); err != nil {
			slog.WarnContext(ctx, "skipping import row",
				logger.Namespace(namespace), logger.Email(email), logger.Error(err))
			result.Skipped = append(result.Skipped, SkippedRow{Row: row, Email: email, Reason: err.Error()})
			continue
		}

		id, err := uuid.NewV7()
		if err != nil {
			return result, fmt.Errorf("generate person id: %w", err)
		}
		p.ID = id.String()

		if idx, dup := byEmail[email]; dup {
			batch[idx] = p
			continue
		}
		byEmail[email] = len(batch)
		batch = append(batch, p)
	}

	if len(batch) == 0 {
		return result, nil
	}
	if err := s.repo.UpsertMany(ctx, namespace, batch); err != nil {
		return result, fmt.Errorf("import people: %w", err)
	}
	result.Imported = len(batch)
	s.invalidate(ctx, namespace)
	s.metrics.RowsImported(ctx, namespace, len(batch))
	return result, nil
}

// MatchBirthdays returns the opted-in people of namespace born on month/day.
// The match is exact: Feb 29 birthdays only match (2, 29).
func (s *Service) MatchBirthdays(ctx context.Context, namespace string, month, day int) ([]*Person, error) {
	people, err := s.repo.ListByBirthday(ctx, namespace, month, day)
	if err != nil {
		return nil, fmt.Errorf("match birthdays %02d-%02d: %w", month, day, err)
	}
	return people, nil
}

// Upcoming returns every person ordered by the next occurrence of their
// birthday from today. People without a full birthday come last, by email.
// The list is cached for UpcomingTTL.
func (s *Service) Upcoming(ctx context.Context, namespace string) ([]*Person, error) {
	var cached []*Person
	found, err := cache.GetJSON(ctx, s.cache, UpcomingKey(namespace), &cached)
	if err != nil {
		slog.WarnContext(ctx, "upcoming cache read failed", logger.Namespace(namespace), logger.Error(err))
	}
	if found {
		return cached, nil
	}

	people, err := s.repo.List(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	SortUpcoming(people, s.now())

	if err := cache.SetJSON(ctx, s.cache, UpcomingKey(namespace), people, UpcomingTTL); err != nil {
		slog.WarnContext(ctx, "upcoming cache fill failed", logger.Namespace(namespace), logger.Error(err))
	}
	return people, nil
}

// SortUpcoming orders people by next birthday occurrence from now.
func SortUpcoming(people []*Person, now time.Time) {
	next := make(map[*Person]time.Time, len(people))
	for _, p := range people {
		if p.HasBirthday() {
			next[p] = birthday.NextOccurrence(*p.BirthMonth, *p.BirthDay, now)
		}
	}
	sort.SliceStable(people, func(i, j int) bool {
		a, aok := next[people[i]]
		b, bok := next[people[j]]
		switch {
		case aok && bok:
			if !a.Equal(b) {
				return a.Before(b)
			}
			return people[i].Email < people[j].Email
		case aok != bok:
			return aok
		default:
			return people[i].Email < people[j].Email
		}
	})
}

// Get returns a person by id.
func (s *Service) Get(ctx context.Context, namespace, id string) (*Person, error) {
	return s.repo.Get(ctx, namespace, id)
}

// GetByEmail returns a person by email, ignoring case.
func (s *Service) GetByEmail(ctx context.Context, namespace, email string) (*Person, error) {
	return s.repo.GetByEmail(ctx, namespace, NormalizeEmail(email))
}

// List returns every person of namespace.
func (s *Service) List(ctx context.Context, namespace string) ([]*Person, error) {
	return s.repo.List(ctx, namespace)
}

// ListWithBirthday returns the people whose month and day are both known.
func (s *Service) ListWithBirthday(ctx context.Context, namespace string) ([]*Person, error) {
	return s.repo.ListWithBirthday(ctx, namespace)
}

// Delete removes the person with email.
func (s *Service) Delete(ctx context.Context, namespace, email string) error {
	email = NormalizeEmail(email)
	if err := s.repo.Delete(ctx, namespace, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete person %s: %w", email, err)
	}
	s.invalidate(ctx, namespace)
	return nil
}

// invalidate drops the cached upcoming list after a write. A failure leaves
// the list stale until its TTL expires, so it is logged rather than returned.
func (s *Service) invalidate(ctx context.Context, namespace string) {
	if err := s.cache.Delete(ctx, UpcomingKey(namespace)); err != nil {
		slog.ErrorContext(ctx, "upcoming cache delete failed", logger.Namespace(namespace), logger.Error(err))
	}
}
