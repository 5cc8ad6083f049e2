package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRefresh string

func (s staticRefresh) RefreshToken(context.Context, string) (string, error) {
	return string(s), nil
}

type staticAccess string

func (s staticAccess) AccessToken(context.Context, string) (string, error) {
	return string(s), nil
}

// TestPurpose: Validates the refresh-token grant and in-memory access token reuse.
// Scope: Unit Test
// Expected: The token endpoint is called once until the cached token nears expiry.
// Test Case ID: GGL-01
func TestTokenSource_AccessToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "1//refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.token","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	ts := NewTokenSource(Config{ClientID: "client-id", ClientSecret: "s", TokenURL: srv.URL}, staticRefresh("1//refresh"))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }

	tok, err := ts.AccessToken(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "ya29.token", tok)

	_, err = ts.AccessToken(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(59*time.Minute + time.Second)
	_, err = ts.AccessToken(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenSource_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	ts := NewTokenSource(Config{TokenURL: srv.URL}, staticRefresh("revoked"))
	_, err := ts.AccessToken(context.Background(), "acme")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

// TestPurpose: Validates paging and mapping of the People API directory listing.
// Scope: Unit Test
// Expected: Profiles from both pages are streamed with formatted birthdays and primary emails.
// Test Case ID: GGL-02
func TestDirectory_Profiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/people:listDirectoryPeople", r.URL.Path)
		assert.Equal(t, "Bearer ya29", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{
				"people": [{
					"resourceName": "people/1",
					"names": [{"givenName": "ada", "familyName": "lovelace"}],
					"birthdays": [{"date": {"year": 1815, "month": 12, "day": 10}}],
					"emailAddresses": [{"value": "alias@acme.com"}, {"value": "ada@acme.com", "metadata": {"primary": true}}]
				}],
				"nextPageToken": "p2"
			}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"people": [
				{"resourceName": "people/2", "birthdays": [{"date": {"month": 2, "day": 29}}]},
				{"resourceName": "people/3", "emailAddresses": [{"value": "nobday@acme.com"}]}
			]
		}`))
	}))
	defer srv.Close()

	d := NewDirectory(Config{PeopleURL: srv.URL}, staticAccess("ya29"))
	var got []Profile
	err := d.Profiles(context.Background(), "acme", func(p Profile) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "ada@acme.com", got[0].ID)
	assert.Equal(t, "ada", got[0].Username())
	assert.Equal(t, "1815-12-10", got[0].Birthday)
	assert.Equal(t, "ada", got[0].GivenName)
	assert.Equal(t, "people/1", got[0].ResourceName)

	assert.Equal(t, "--02-29", got[1].Birthday)
	assert.Equal(t, "2", got[1].Username())
	assert.Empty(t, got[2].Birthday)
}

// TestPurpose: Validates the yearly all-day event request.
// Scope: Unit Test
// Expected: The request carries the RRULE, an all-day range and the person id property.
// Test Case ID: GGL-03
func TestCalendar_CreateYearlyEvent(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/cal@group.calendar.google.com/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt1"}`))
	}))
	defer srv.Close()

	c := NewCalendar(Config{CalendarURL: srv.URL}, staticAccess("ya29"))
	id, err := c.CreateYearlyEvent(context.Background(), "acme", "cal@group.calendar.google.com", YearlyEvent{
		Summary:  "Ada Lovelace's birthday",
		Start:    time.Date(2026, 12, 10, 0, 0, 0, 0, time.UTC),
		PersonID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt1", id)

	assert.Equal(t, []any{"RRULE:FREQ=YEARLY"}, body["recurrence"])
	assert.Equal(t, map[string]any{"date": "2026-12-10"}, body["start"])
	assert.Equal(t, map[string]any{"date": "2026-12-11"}, body["end"])
	props := body["extendedProperties"].(map[string]any)["private"].(map[string]any)
	assert.Equal(t, "p1", props[PersonIDProperty])
}
