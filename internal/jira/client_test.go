package jira_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tiliavir/tally/internal/jira"
)

func TestGetWorklogs_FiltersAuthorAndRange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/myself", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "me@example.com" || pass != "tok" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		_, _ = w.Write([]byte(`{"accountId":"acc-1","displayName":"Me"}`))
	})
	mux.HandleFunc("/rest/api/3/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"startAt":0,"maxResults":50,"total":1,"issues":[
			{"key":"WEB-12","fields":{"summary":"Login page","issuetype":{"name":"Story"},"project":{"key":"WEB"}}}]}`))
	})
	mux.HandleFunc("/rest/api/3/issue/WEB-12/worklog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"startAt":0,"maxResults":100,"total":3,"worklogs":[
			{"id":"1","author":{"accountId":"acc-1"},"started":"2025-01-10T09:00:00.000+0000","timeSpentSeconds":7200,"comment":"done"},
			{"id":"2","author":{"accountId":"acc-2"},"started":"2025-01-10T10:00:00.000+0000","timeSpentSeconds":3600},
			{"id":"3","author":{"accountId":"acc-1"},"started":"2025-02-01T10:00:00.000+0000","timeSpentSeconds":3600}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := jira.NewClient(srv.URL+"/", "me@example.com", "tok", srv.Client())
	got, err := c.GetWorklogs(context.Background(), "2025-01-01", "2025-01-31")
	if err != nil {
		t.Fatalf("GetWorklogs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("worklogs = %d, want 1", len(got))
	}
	if got[0].IssueKey != "WEB-12" || got[0].Worklog.ID != "1" || got[0].ProjectKey != "WEB" {
		t.Errorf("worklog = %+v", got[0])
	}
}

func TestCommentText(t *testing.T) {
	adf := `{"type":"doc","version":1,"content":[
		{"type":"paragraph","content":[{"type":"text","text":"Fixed "},{"type":"text","text":"bug"}]},
		{"type":"paragraph","content":[]},
		{"type":"paragraph","content":[{"type":"text","text":"Reviewed"}]}]}`
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"plain", `"  quick fix "`, "quick fix"},
		{"adf", adf, "Fixed bug\nReviewed"},
		{"garbage", `[1,2]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jira.CommentText(json.RawMessage(tt.raw))
			if got != tt.want {
				t.Errorf("CommentText = %q, want %q", got, tt.want)
			}
		})
	}
}
