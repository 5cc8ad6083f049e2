// Copyright 2026 The CloudBDay Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package person stores per-tenant birthday records and matches them by day.
package person

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cloudbday/cloudbday/internal/birthday"
	"github.com/cloudbday/cloudbday/internal/validation"
)

// Domain errors
var (
	ErrNotFound = errors.New("person not found")
)

// ValidationError reports invalid person fields.
type ValidationError = validation.Error

// Person is one birthday record within a tenant namespace.
type Person struct {
	ID          string    `json:"id"`
	Namespace   string    `json:"namespace"`
	Email       string    `json:"email" validate:"required,max=254,bdayemail"`
	FirstName   string    `json:"first_name" validate:"max=60"`
	LastName    string    `json:"last_name" validate:"max=60"`
	BirthDay    *int      `json:"birth_day,omitempty"`
	BirthMonth  *int      `json:"birth_month,omitempty" validate:"omitempty,min=1,max=12"`
	BirthYear   *int      `json:"birth_year,omitempty" validate:"omitempty,notfutureyear"`
	ReceiveMail bool      `json:"receive_mail"`
	DirectoryID string    `json:"directory_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasBirthday reports whether both month and day are known.
func (p *Person) HasBirthday() bool {
	return p.BirthMonth != nil && p.BirthDay != nil
}

// FullName joins first and last name, falling back to the email.
func (p *Person) FullName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Email
	}
	return name
}

// Birthday returns the birth date, or false when month or day is unknown.
func (p *Person) Birthday() (birthday.Date, bool) {
	if !p.HasBirthday() {
		return birthday.Date{}, false
	}
	d := birthday.Date{Month: *p.BirthMonth, Day: *p.BirthDay}
	if p.BirthYear != nil {
		d.Year = *p.BirthYear
	}
	return d, true
}

// Changes is a partial update. Nil fields are left untouched.
type Changes struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	BirthDay    *int    `json:"birth_day,omitempty"`
	BirthMonth  *int    `json:"birth_month,omitempty"`
	BirthYear   *int    `json:"birth_year,omitempty"`
	ReceiveMail *bool   `json:"receive_mail,omitempty"`
	DirectoryID *string `json:"directory_id,omitempty"`
	// ClearYear unsets the stored birth year. BirthYear wins when both are set.
	ClearYear bool `json:"clear_year,omitempty"`
}

// WithDate sets every date field from d. A date without a year clears the
// stored year.
func (c Changes) WithDate(d birthday.Date) Changes {
	month, day := d.Month, d.Day
	c.BirthMonth, c.BirthDay = &month, &day
	c.BirthYear = d.YearPtr()
	c.ClearYear = !d.HasYear()
	return c
}

// NormalizeName trims and title-cases a name. Casers are stateful, so one is
// built per call.
func NormalizeName(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ApplyTo writes the non-nil fields of c onto p.
func (c Changes) ApplyTo(p *Person) {
	if c.FirstName != nil {
		p.FirstName = NormalizeName(*c.FirstName)
	}
	if c.LastName != nil {
		p.LastName = NormalizeName(*c.LastName)
	}
	if c.BirthDay != nil {
		p.BirthDay = intPtr(*c.BirthDay)
	}
	if c.BirthMonth != nil {
		p.BirthMonth = intPtr(*c.BirthMonth)
	}
	switch {
	case c.BirthYear != nil:
		p.BirthYear = intPtr(*c.BirthYear)
	case c.ClearYear:
		p.BirthYear = nil
	}
	if c.ReceiveMail != nil {
		p.ReceiveMail = *c.ReceiveMail
	}
	if c.DirectoryID != nil {
		p.DirectoryID = *c.DirectoryID
	}
}

// NeedsSave reports whether applying c to p would change any field.
func NeedsSave(p Person, c Changes) bool {
	switch {
	case c.FirstName != nil && NormalizeName(*c.FirstName) != p.FirstName:
		return true
	case c.LastName != nil && NormalizeName(*c.LastName) != p.LastName:
		return true
	case c.BirthDay != nil && !intEqual(p.BirthDay, *c.BirthDay):
		return true
	case c.BirthMonth != nil && !intEqual(p.BirthMonth, *c.BirthMonth):
		return true
	case c.BirthYear != nil && !intEqual(p.BirthYear, *c.BirthYear):
		return true
	case c.BirthYear == nil && c.ClearYear && p.BirthYear != nil:
		return true
	case c.ReceiveMail != nil && *c.ReceiveMail != p.ReceiveMail:
		return true
	case c.DirectoryID != nil && *c.DirectoryID != p.DirectoryID:
		return true
	}
	return false
}

func intEqual(cur *int, v int) bool {
	return cur != nil && *cur == v
}

func intPtr(v int) *int {
	return &v
}

// Repository defines the interface for person persistence. Lookups return
// ErrNotFound when no record matches.
type Repository interface {
	Get(ctx context.Context, namespace, id string) (*Person, error)
	GetByEmail(ctx context.Context, namespace, email string) (*Person, error)
	Create(ctx context.Context, p *Person) error
	Update(ctx context.Context, p *Person) error
	// UpsertMany writes people in one batch keyed by (namespace, email).
	// Existing records keep their id, opt-in flag and any name the batch
	// leaves empty.
	UpsertMany(ctx context.Context, namespace string, people []*Person) error
	Delete(ctx context.Context, namespace, email string) error
	List(ctx context.Context, namespace string) ([]*Person, error)
	// ListByBirthday returns opted-in people born on month/day.
	ListByBirthday(ctx context.Context, namespace string, month, day int) ([]*Person, error)
	// ListWithBirthday returns people with both month and day set.
	ListWithBirthday(ctx context.Context, namespace string) ([]*Person, error)
}
