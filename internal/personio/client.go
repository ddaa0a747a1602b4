package personio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// DefaultBaseURL is the Personio public API root.
const DefaultBaseURL = "https://api.personio.de"

// Client reads absence periods of one person from the Personio v2 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	personID   string
}

// NewClient creates a client authenticated with the OAuth2 client credentials
// grant. Tokens are fetched and refreshed by the returned HTTP client.
func NewClient(ctx context.Context, baseURL, clientID, clientSecret, personID string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/v2/auth/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return &Client{
		httpClient: cc.Client(ctx),
		baseURL:    baseURL,
		personID:   personID,
	}
}

// Boundary is one end of an absence period.
type Boundary struct {
	DateTime string `json:"date_time"`
	// Type is FULL_DAY, FIRST_HALF or SECOND_HALF.
	Type string `json:"type"`
}

// AbsencePeriod is a time-off period as returned by the API.
type AbsencePeriod struct {
	ID          string   `json:"id"`
	StartsFrom  Boundary `json:"starts_from"`
	EndsAt      Boundary `json:"ends_at"`
	AbsenceType struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"absence_type"`
	Approval struct {
		Status string `json:"status"`
	} `json:"approval"`
}

type absencePage struct {
	Data []AbsencePeriod `json:"_data"`
	Meta struct {
		Links struct {
			Next struct {
				Href string `json:"href"`
			} `json:"next"`
		} `json:"links"`
	} `json:"_meta"`
}

// GetAbsences returns the absence periods overlapping [from, to].
func (c *Client) GetAbsences(ctx context.Context, from, to string) ([]AbsencePeriod, error) {
	q := url.Values{
		"person.id":       {c.personID},
		"ends_at.gte":     {from + "T00:00:00"},
		"starts_from.lte": {to + "T23:59:59"},
		"limit":           {"100"},
	}
	endpoint := c.baseURL + "/v2/absence-periods?" + q.Encode()

	var all []AbsencePeriod
	for endpoint != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("personio request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("personio API error %d: %s", resp.StatusCode, string(body))
		}

		var page absencePage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding personio response: %w", err)
		}
		all = append(all, page.Data...)
		endpoint = page.Meta.Links.Next.Href
	}
	return all, nil
}

// ToAbsence maps an absence period onto the HR absence model.
func ToAbsence(p AbsencePeriod) model.Absence {
	return model.Absence{
		ID:           "personio-" + p.ID,
		Origin:       model.AbsenceHR,
		Type:         absenceType(p.AbsenceType.Name),
		StartDate:    timecalc.DatePart(p.StartsFrom.DateTime),
		EndDate:      timecalc.DatePart(p.EndsAt.DateTime),
		HalfDayStart: p.StartsFrom.Type == "SECOND_HALF",
		HalfDayEnd:   p.EndsAt.Type == "FIRST_HALF",
		Status:       p.Approval.Status,
		Note:         p.AbsenceType.Name,
	}
}

func absenceType(name string) model.AbsenceType {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "sick"), strings.Contains(n, "krank"):
		return model.AbsenceSick
	case strings.Contains(n, "vacation"), strings.Contains(n, "urlaub"), strings.Contains(n, "paid time off"):
		return model.AbsenceVacation
	case strings.Contains(n, "holiday"), strings.Contains(n, "feiertag"):
		return model.AbsenceHoliday
	}
	return model.AbsenceOther
}
