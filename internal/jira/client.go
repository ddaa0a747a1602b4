package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/tally/internal/timecalc"
)

const pageSize = 50

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira API error %d: %s", e.StatusCode, e.Body)
}

// Client reads worklogs from a Jira Cloud site using basic auth with an API token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	token      string
}

// NewClient creates a client. A nil httpClient uses a client with a 30s timeout.
func NewClient(baseURL, email, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		token:      token,
	}
}

// Author identifies who logged the work.
type Author struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// Worklog is a logged-time record on an issue. Comment is either a plain
// string or an ADF document depending on the API version.
type Worklog struct {
	ID               string          `json:"id"`
	Author           Author          `json:"author"`
	Started          string          `json:"started"`
	TimeSpentSeconds int64           `json:"timeSpentSeconds"`
	Comment          json.RawMessage `json:"comment,omitempty"`
}

// WorklogWithIssue pairs a worklog with the issue it belongs to.
type WorklogWithIssue struct {
	Worklog      Worklog
	IssueKey     string
	IssueSummary string
	IssueType    string
	ProjectKey   string
}

type issue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary   string `json:"summary"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
	} `json:"fields"`
}

type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []issue `json:"issues"`
}

type worklogResponse struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Worklogs   []Worklog `json:"worklogs"`
}

// GetWorklogs returns the current user's worklogs started within [from, to].
func (c *Client) GetWorklogs(ctx context.Context, from, to string) ([]WorklogWithIssue, error) {
	var me Author
	if err := c.get(ctx, "/rest/api/3/myself", nil, &me); err != nil {
		return nil, fmt.Errorf("resolving current user: %w", err)
	}

	jql := fmt.Sprintf(`worklogAuthor = currentUser() AND worklogDate >= "%s" AND worklogDate <= "%s"`, from, to)
	var out []WorklogWithIssue
	for startAt := 0; ; {
		q := url.Values{
			"jql":        {jql},
			"fields":     {"summary,issuetype,project"},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(pageSize)},
		}
		var page searchResponse
		if err := c.get(ctx, "/rest/api/3/search", q, &page); err != nil {
			return nil, err
		}
		for _, is := range page.Issues {
			logs, err := c.issueWorklogs(ctx, is.Key)
			if err != nil {
				return nil, fmt.Errorf("worklogs of %s: %w", is.Key, err)
			}
			for _, wl := range logs {
				if wl.Author.AccountID != me.AccountID {
					continue
				}
				day := timecalc.DatePart(wl.Started)
				if day < from || day > to {
					continue
				}
				out = append(out, WorklogWithIssue{
					Worklog:      wl,
					IssueKey:     is.Key,
					IssueSummary: is.Fields.Summary,
					IssueType:    is.Fields.IssueType.Name,
					ProjectKey:   is.Fields.Project.Key,
				})
			}
		}
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			return out, nil
		}
	}
}

func (c *Client) issueWorklogs(ctx context.Context, key string) ([]Worklog, error) {
	var all []Worklog
	for startAt := 0; ; {
		q := url.Values{
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(pageSize * 2)},
		}
		var page worklogResponse
		if err := c.get(ctx, "/rest/api/3/issue/"+url.PathEscape(key)+"/worklog", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Worklogs...)
		startAt += len(page.Worklogs)
		if len(page.Worklogs) == 0 || startAt >= page.Total {
			return all, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.email, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jira request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding jira response: %w", err)
	}
	return nil
}
