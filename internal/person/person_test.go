package person

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudbday/cloudbday/internal/birthday"
)

func ip(v int) *int       { return &v }
func sp(v string) *string { return &v }

func TestNeedsSave(t *testing.T) {
	base := Person{Email: "ada@acme.com", FirstName: "Ada", BirthMonth: ip(12), BirthDay: ip(10), ReceiveMail: true}
	optOut := false

	tests := []struct {
		name    string
		changes Changes
		want    bool
	}{
		{"empty", Changes{}, false},
		{"same values", Changes{FirstName: sp("ada"), BirthMonth: ip(12), BirthDay: ip(10)}, false},
		{"day differs", Changes{BirthDay: ip(11)}, true},
		{"year added", Changes{BirthYear: ip(1815)}, true},
		{"clear absent year", Changes{ClearYear: true}, false},
		{"opt out", Changes{ReceiveMail: &optOut}, true},
		{"directory id", Changes{DirectoryID: sp("people/1")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsSave(base, tt.changes))
		})
	}
}

func TestChanges_ApplyTo(t *testing.T) {
	p := Person{FirstName: "Old", BirthYear: ip(1990)}
	Changes{FirstName: sp("  grace "), LastName: sp("hopper")}.WithDate(birthday.Date{Month: 12, Day: 9}).ApplyTo(&p)

	assert.Equal(t, "Grace", p.FirstName)
	assert.Equal(t, "Hopper", p.LastName)
	assert.Equal(t, 12, *p.BirthMonth)
	assert.Equal(t, 9, *p.BirthDay)
	assert.Nil(t, p.BirthYear)
	assert.Equal(t, "Grace Hopper", p.FullName())

	d, ok := p.Birthday()
	assert.True(t, ok)
	assert.Equal(t, "--12-09", d.String())
}

// TestPurpose: Validates that a year-less date clears a stored birth year.
// Scope: Unit Test
// Expected: NeedsSave reports the difference and ApplyTo unsets the year; an explicit year wins over ClearYear.
// Test Case ID: PER-08
func TestChanges_ClearYear(t *testing.T) {
	p := Person{BirthMonth: ip(3), BirthDay: ip(1), BirthYear: ip(1985)}
	c := Changes{}.WithDate(birthday.Date{Month: 3, Day: 1})

	assert.True(t, c.ClearYear)
	assert.True(t, NeedsSave(p, c))
	c.ApplyTo(&p)
	assert.Nil(t, p.BirthYear)
	assert.False(t, NeedsSave(p, c))

	Changes{BirthYear: ip(1990), ClearYear: true}.ApplyTo(&p)
	assert.Equal(t, 1990, *p.BirthYear)
}
