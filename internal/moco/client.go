package moco

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const perPage = 100

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moco API error %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Moco v1 REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// BaseURL returns the API root for a Moco account subdomain.
func BaseURL(domain string) string {
	return "https://" + domain + ".mocoapp.com/api/v1"
}

// NewClient creates a client. A nil httpClient uses a client with a 30s timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// Project is the project an activity is booked on.
type Project struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Billable bool   `json:"billable"`
}

// Task is the project task an activity is booked on.
type Task struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Billable bool   `json:"billable"`
}

// Customer owns a project.
type Customer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is the author of an activity or presence.
type User struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// Activity is a billed time record.
type Activity struct {
	ID            int64    `json:"id"`
	Date          string   `json:"date"`
	Hours         float64  `json:"hours"`
	Seconds       int64    `json:"seconds"`
	Description   string   `json:"description"`
	Billed        bool     `json:"billed"`
	Billable      bool     `json:"billable"`
	Tag           string   `json:"tag"`
	RemoteService string   `json:"remote_service"`
	RemoteID      string   `json:"remote_id"`
	RemoteURL     string   `json:"remote_url"`
	Project       Project  `json:"project"`
	Task          Task     `json:"task"`
	Customer      Customer `json:"customer"`
	User          User     `json:"user"`
}

// Presence is a clock-in/clock-out record. To is empty while still present.
type Presence struct {
	ID           int64  `json:"id"`
	Date         string `json:"date"`
	From         string `json:"from"`
	To           string `json:"to"`
	IsHomeOffice bool   `json:"is_home_office"`
	// Break is the recorded break in minutes.
	Break int  `json:"break"`
	User  User `json:"user"`
}

// ActivityInput is the payload for creating or updating an activity.
type ActivityInput struct {
	Date          string  `json:"date,omitempty"`
	ProjectID     int64   `json:"project_id,omitempty"`
	TaskID        int64   `json:"task_id,omitempty"`
	Hours         float64 `json:"hours,omitempty"`
	Description   string  `json:"description,omitempty"`
	RemoteService string  `json:"remote_service,omitempty"`
	RemoteID      string  `json:"remote_id,omitempty"`
	RemoteURL     string  `json:"remote_url,omitempty"`
}

// GetActivities fetches the activities in [from, to], following pagination.
func (c *Client) GetActivities(ctx context.Context, from, to string) ([]Activity, error) {
	var all []Activity
	for page := 1; ; page++ {
		q := url.Values{
			"from":     {from},
			"to":       {to},
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(perPage)},
		}
		var batch []Activity
		hdr, err := c.do(ctx, http.MethodGet, "/activities", q, nil, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if !hasMore(hdr, len(all), len(batch)) {
			return all, nil
		}
	}
}

// GetPresences fetches the current user's presences in [from, to].
func (c *Client) GetPresences(ctx context.Context, from, to string) ([]Presence, error) {
	var out []Presence
	q := url.Values{"from": {from}, "to": {to}}
	if _, err := c.do(ctx, http.MethodGet, "/users/presences", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateActivity books a new activity.
func (c *Client) CreateActivity(ctx context.Context, in ActivityInput) (Activity, error) {
	var out Activity
	_, err := c.do(ctx, http.MethodPost, "/activities", nil, in, &out)
	return out, err
}

// UpdateActivity changes an existing activity.
func (c *Client) UpdateActivity(ctx context.Context, id int64, in ActivityInput) (Activity, error) {
	var out Activity
	_, err := c.do(ctx, http.MethodPut, "/activities/"+strconv.FormatInt(id, 10), nil, in, &out)
	return out, err
}

// DeleteActivity removes an activity.
func (c *Client) DeleteActivity(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/activities/"+strconv.FormatInt(id, 10), nil, nil, nil)
	return err
}

// hasMore decides whether another page exists using X-Total when present.
func hasMore(hdr http.Header, fetched, lastBatch int) bool {
	if total, err := strconv.Atoi(hdr.Get("X-Total")); err == nil {
		return fetched < total && lastBatch > 0
	}
	return lastBatch == perPage
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) (http.Header, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token token="+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moco request failed: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("decoding moco response: %w", err)
		}
	}
	return resp.Header, nil
}
