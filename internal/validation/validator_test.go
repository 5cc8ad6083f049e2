package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email  string   `json:"email" validate:"required,bdayemail"`
	Name   string   `json:"first_name" validate:"max=5"`
	Month  *int     `json:"birth_month,omitempty" validate:"omitempty,min=1,max=12"`
	Year   *int     `json:"birth_year,omitempty" validate:"omitempty,notfutureyear"`
	Admins []string `json:"administrators" validate:"min=1,dive,bdayemail"`
}

func ptr(i int) *int { return &i }

func TestEmailPattern(t *testing.T) {
	valid := []string{"ada@example.com", "o'brien@acme.co.uk", "first.last-x@sub.example.org"}
	invalid := []string{"", "no-at-sign", "a@b", "sp ace@example.com"}
	for _, s := range valid {
		assert.True(t, EmailPattern.MatchString(s), s)
	}
	for _, s := range invalid {
		assert.False(t, EmailPattern.MatchString(s), s)
	}
}

// TestPurpose: Validates field errors are keyed by JSON name with readable messages.
// Scope: Unit Test
// Expected: Each invalid field yields an entry in Error.Fields.
// Test Case ID: VAL-01
func TestValidator_Struct(t *testing.T) {
	v := NewWithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })

	err := v.Struct(sample{
		Email:  "bad",
		Name:   "Toolong",
		Month:  ptr(13),
		Year:   ptr(2027),
		Admins: []string{"ok@example.com", "nope"},
	})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])
	assert.Equal(t, "must not exceed 5 characters", verr.Fields["first_name"])
	assert.Equal(t, "must be less than or equal to 12", verr.Fields["birth_month"])
	assert.Equal(t, "must not be in the future", verr.Fields["birth_year"])
	assert.Equal(t, "must be a valid email address", verr.Fields["administrators[1]"])
	assert.Contains(t, verr.Error(), "validation failed")
}

func TestValidator_Valid(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(sample{
		Email:  "ada@example.com",
		Name:   "Ada",
		Month:  ptr(3),
		Year:   ptr(1985),
		Admins: []string{"root@example.com"},
	}))
}
