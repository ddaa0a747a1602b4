package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/Tiliavir/tally/internal/timecalc"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Client is an authenticated Microsoft Graph API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
}

// NewClient creates a new Graph API client using the provided token and config.
// Event times are requested in timezone ("" for UTC).
func NewClient(ctx context.Context, tok *oauth2.Token, cfg *oauth2.Config, timezone string) *Client {
	ts := cfg.TokenSource(ctx, tok)
	return &Client{
		httpClient: oauth2.NewClient(ctx, &savingTokenSource{ts: ts}),
		baseURL:    graphBaseURL,
		timezone:   timezone,
	}
}

// NewClientWithHTTP creates a client on a preconfigured HTTP client and base URL.
func NewClientWithHTTP(httpClient *http.Client, baseURL, timezone string) *Client {
	return &Client{httpClient: httpClient, baseURL: baseURL, timezone: timezone}
}

// GetEvents returns the events of the closed date interval [from, to]
// (YYYY-MM-DD) in the client's timezone.
func (c *Client) GetEvents(ctx context.Context, from, to string) ([]CalendarEvent, error) {
	start, err := timecalc.ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := timecalc.ParseDate(to)
	if err != nil {
		return nil, err
	}
	loc := loadLocation(c.timezone)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return c.GetCalendarView(ctx, start, end, c.timezone)
}

// savingTokenSource wraps a TokenSource and persists refreshed tokens.
type savingTokenSource struct {
	ts oauth2.TokenSource
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return nil, err
	}
	// Best-effort save; ignore errors.
	_ = saveToken(tok)
	return tok, nil
}

// DateTimeZone is a Graph dateTime with its zone name.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// EmailAddress names a mailbox.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Attendee is an invited participant.
type Attendee struct {
	EmailAddress EmailAddress `json:"emailAddress"`
	Type         string       `json:"type"`
}

// CalendarEvent represents a Microsoft Graph calendar event.
type CalendarEvent struct {
	ID              string       `json:"id"`
	Subject         string       `json:"subject"`
	BodyPreview     string       `json:"bodyPreview"`
	IsAllDay        bool         `json:"isAllDay"`
	IsCancelled     bool         `json:"isCancelled"`
	IsOnlineMeeting bool         `json:"isOnlineMeeting"`
	Sensitivity     string       `json:"sensitivity"` // "normal", "personal", "private", "confidential"
	ShowAs          string       `json:"showAs"`      // "free", "tentative", "busy", "oof", "workingElsewhere", "unknown"
	WebLink         string       `json:"webLink"`
	Start           DateTimeZone `json:"start"`
	End             DateTimeZone `json:"end"`
	ResponseStatus  struct {
		Response string `json:"response"` // "none", "organizer", "accepted", "declined", ...
	} `json:"responseStatus"`
	Organizer struct {
		EmailAddress EmailAddress `json:"emailAddress"`
	} `json:"organizer"`
	Attendees []Attendee `json:"attendees"`
	Location  struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
}

// calendarViewResponse is the Graph API paged response for calendar events.
type calendarViewResponse struct {
	Value    []CalendarEvent `json:"value"`
	NextLink string          `json:"@odata.nextLink"`
}

// GetCalendarView fetches calendar events in [from, to) using the calendarView endpoint.
// timezone is an IANA timezone name (e.g. "Europe/Berlin"); pass "" for UTC.
func (c *Client) GetCalendarView(ctx context.Context, from, to time.Time, timezone string) ([]CalendarEvent, error) {
	startISO := from.UTC().Format(time.RFC3339)
	endISO := to.UTC().Format(time.RFC3339)

	endpoint := fmt.Sprintf("%s/me/calendarView?startDateTime=%s&endDateTime=%s&$top=100",
		c.baseURL,
		url.QueryEscape(startISO),
		url.QueryEscape(endISO),
	)

	var all []CalendarEvent
	for endpoint != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if timezone != "" {
			req.Header.Set("Prefer", fmt.Sprintf(`outlook.timezone="%s"`, timezone))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("graph API request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("graph API error %d: %s", resp.StatusCode, string(body))
		}

		var page calendarViewResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding graph response: %w", err)
		}

		all = append(all, page.Value...)
		endpoint = page.NextLink
	}
	return all, nil
}
