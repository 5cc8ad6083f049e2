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

// Package birthday holds the year-agnostic birth date value and the parsing
// policy for birthday strings found in imports and directory feeds.
package birthday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseable is returned for birthday strings that match no accepted shape.
var ErrUnparseable = errors.New("birthday is not in a supported format")

// Date is a birth date whose year may be unknown.
// Year is zero when the source did not carry one.
type Date struct {
	Year  int
	Month int
	Day   int
}

// HasYear reports whether the year part is known.
func (d Date) HasYear() bool {
	return d.Year != 0
}

// YearPtr returns the year as a nullable value.
func (d Date) YearPtr() *int {
	if !d.HasYear() {
		return nil
	}
	y := d.Year
	return &y
}

func (d Date) String() string {
	if d.HasYear() {
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
	return fmt.Sprintf("--%02d-%02d", d.Month, d.Day)
}

// Parse reads a hyphen-delimited birthday. Shapes are tried in order:
//
//	YYYY-MM-DD
//	--MM-DD
//	MM-DD
//
// Anything else, including a four-segment string with a non-empty prefix,
// yields ErrUnparseable.
func Parse(s string) (Date, error) {
	return parse(s, true)
}

// ParseProfile is Parse without the bare MM-DD shape, which directory
// profile feeds never produce.
func ParseProfile(s string) (Date, error) {
	return parse(s, false)
}

func parse(s string, allowShort bool) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")

	var year, month, day string
	switch {
	case len(parts) == 3:
		year, month, day = parts[0], parts[1], parts[2]
	case len(parts) == 4 && parts[0] == "" && parts[1] == "":
		month, day = parts[2], parts[3]
	case len(parts) == 2 && allowShort:
		month, day = parts[0], parts[1]
	default:
		return Date{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}

	var d Date
	var err error
	if len(parts) == 3 {
		if d.Year, err = strconv.Atoi(year); err != nil {
			return Date{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
		}
	}
	if d.Month, err = strconv.Atoi(month); err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}
	if d.Day, err = strconv.Atoi(day); err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}
	return d, nil
}

// NextOccurrence returns the next calendar day on or after from (truncated to
// the day, in from's location) that falls on month/day. A date that already
// passed this year rolls over to next year. Dates that do not exist in the
// resulting year normalize the way time.Date does (Feb 29 becomes Mar 1).
func NextOccurrence(month, day int, from time.Time) time.Time {
	today := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	next := time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, from.Location())
	if next.Before(today) {
		next = time.Date(today.Year()+1, time.Month(month), day, 0, 0, 0, 0, from.Location())
	}
	return next
}

// Anchor returns the first date on or after from's day that falls exactly on
// month/day without normalization. A Feb 29 birthday anchors to the next leap
// year. It reports false when month/day never exists, such as 09-35.
func Anchor(month, day int, from time.Time) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	today := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for y := today.Year(); y <= today.Year()+8; y++ {
		d := time.Date(y, time.Month(month), day, 0, 0, 0, 0, from.Location())
		if d.Month() != time.Month(month) || d.Day() != day || d.Before(today) {
			continue
		}
		return d, true
	}
	return time.Time{}, false
}
