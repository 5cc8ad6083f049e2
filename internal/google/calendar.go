package google

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// PersonIDProperty is the private extended property linking an event to a person.
const PersonIDProperty = "cloudbdayPersonId"

// YearlyEvent describes an all-day event recurring every year from Start.
type YearlyEvent struct {
	Summary     string
	Description string
	Start       time.Time
	PersonID    string
}

// Calendar creates events through Calendar v3.
type Calendar struct {
	http   *resty.Client
	tokens AccessTokens
}

// NewCalendar creates a Calendar v3 client.
func NewCalendar(cfg Config, tokens AccessTokens) *Calendar {
	cfg = cfg.withDefaults()
	return &Calendar{http: newREST(cfg.CalendarURL, cfg), tokens: tokens}
}

type eventDate struct {
	Date string `json:"date"`
}

type eventRequest struct {
	Summary            string    `json:"summary"`
	Description        string    `json:"description"`
	Start              eventDate `json:"start"`
	End                eventDate `json:"end"`
	Recurrence         []string  `json:"recurrence"`
	Transparency       string    `json:"transparency"`
	ExtendedProperties struct {
		Private map[string]string `json:"private"`
	} `json:"extendedProperties"`
}

// CreateYearlyEvent inserts e into calendarID and returns the event id.
func (c *Calendar) CreateYearlyEvent(ctx context.Context, namespace, calendarID string, e YearlyEvent) (string, error) {
	token, err := c.tokens.AccessToken(ctx, namespace)
	if err != nil {
		return "", fmt.Errorf("access token: %w", err)
	}

	body := eventRequest{
		Summary:      e.Summary,
		Description:  e.Description,
		Start:        eventDate{Date: e.Start.Format("2006-01-02")},
		End:          eventDate{Date: e.Start.AddDate(0, 0, 1).Format("2006-01-02")},
		Recurrence:   []string{"RRULE:FREQ=YEARLY"},
		Transparency: "transparent",
	}
	body.ExtendedProperties.Private = map[string]string{PersonIDProperty: e.PersonID}

	var out struct {
		ID string `json:"id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post("/calendars/" + url.PathEscape(calendarID) + "/events")
	if err := checkResponse("calendar.events.insert", resp, err); err != nil {
		return "", err
	}
	return out.ID, nil
}
