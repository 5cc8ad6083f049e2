package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Profile is one directory entry reduced to the fields birthday sync uses.
// ID carries the primary email when the directory exposes one, otherwise the
// resource name; Birthday is "YYYY-MM-DD", "--MM-DD" or empty.
type Profile struct {
	ID           string
	ResourceName string
	Birthday     string
	GivenName    string
	FamilyName   string
}

// Username returns the part of the profile id after the last '/' and before
// any '@'.
func (p Profile) Username() string {
	id := p.ID
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.IndexByte(id, '@'); i >= 0 {
		id = id[:i]
	}
	return id
}

// Directory lists domain profiles through the People API.
type Directory struct {
	http     *resty.Client
	tokens   AccessTokens
	pageSize int
}

// NewDirectory creates a People API directory client.
func NewDirectory(cfg Config, tokens AccessTokens) *Directory {
	cfg = cfg.withDefaults()
	return &Directory{http: newREST(cfg.PeopleURL, cfg), tokens: tokens, pageSize: 500}
}

type peopleDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type listDirectoryResponse struct {
	People []struct {
		ResourceName string `json:"resourceName"`
		Names        []struct {
			GivenName  string `json:"givenName"`
			FamilyName string `json:"familyName"`
		} `json:"names"`
		Birthdays []struct {
			Date *peopleDate `json:"date"`
			Text string      `json:"text"`
		} `json:"birthdays"`
		EmailAddresses []struct {
			Value    string `json:"value"`
			Metadata struct {
				Primary bool `json:"primary"`
			} `json:"metadata"`
		} `json:"emailAddresses"`
	} `json:"people"`
	NextPageToken string `json:"nextPageToken"`
}

// Profiles streams every domain profile of namespace to fn, page by page.
// An error from fn or from the API stops the listing.
func (d *Directory) Profiles(ctx context.Context, namespace string, fn func(Profile) error) error {
	token, err := d.tokens.AccessToken(ctx, namespace)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}

	pageToken := ""
	for {
		var out listDirectoryResponse
		req := d.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParams(map[string]string{
				"readMask": "names,birthdays,emailAddresses",
				"sources":  "DIRECTORY_SOURCE_TYPE_DOMAIN_PROFILE",
				"pageSize": fmt.Sprint(d.pageSize),
			}).
			SetResult(&out)
		if pageToken != "" {
			req.SetQueryParam("pageToken", pageToken)
		}
		resp, err := req.Get("/v1/people:listDirectoryPeople")
		if err := checkResponse("people.listDirectoryPeople", resp, err); err != nil {
			return err
		}

		for _, p := range out.People {
			prof := Profile{ID: p.ResourceName, ResourceName: p.ResourceName}
			for _, e := range p.EmailAddresses {
				if e.Metadata.Primary || prof.ID == p.ResourceName {
					prof.ID = e.Value
				}
			}
			if len(p.Names) > 0 {
				prof.GivenName = p.Names[0].GivenName
				prof.FamilyName = p.Names[0].FamilyName
			}
			for _, b := range p.Birthdays {
				if b.Date != nil && b.Date.Month != 0 && b.Date.Day != 0 {
					prof.Birthday = formatDate(*b.Date)
					break
				}
			}
			if err := fn(prof); err != nil {
				return err
			}
		}

		if out.NextPageToken == "" {
			return nil
		}
		pageToken = out.NextPageToken
	}
}

func formatDate(d peopleDate) string {
	if d.Year == 0 {
		return fmt.Sprintf("--%02d-%02d", d.Month, d.Day)
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}
