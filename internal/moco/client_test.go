package moco_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Tiliavir/tally/internal/moco"
)

func TestGetActivities_Paginates(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token token=secret" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/activities" {
			t.Errorf("path = %q, want /activities", r.URL.Path)
		}
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		w.Header().Set("X-Total", "3")
		var batch []moco.Activity
		if page == "1" {
			batch = []moco.Activity{{ID: 1, Date: "2025-01-10"}, {ID: 2, Date: "2025-01-10"}}
		} else {
			batch = []moco.Activity{{ID: 3, Date: "2025-01-11"}}
		}
		_ = json.NewEncoder(w).Encode(batch)
	}))
	defer srv.Close()

	c := moco.NewClient(srv.URL, "secret", srv.Client())
	got, err := c.GetActivities(context.Background(), "2025-01-01", "2025-01-31")
	if err != nil {
		t.Fatalf("GetActivities: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("activities = %d, want 3", len(got))
	}
	if len(pages) != 2 {
		t.Errorf("requests = %d, want 2", len(pages))
	}
	for i, a := range got {
		if a.ID != int64(i+1) {
			t.Errorf("activity[%d].ID = %d", i, a.ID)
		}
	}
}

func TestDeleteActivity_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/activities/"+strconv.Itoa(42) {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		http.Error(w, "locked", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := moco.NewClient(srv.URL, "k", srv.Client())
	err := c.DeleteActivity(context.Background(), 42)
	var apiErr *moco.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
}

func TestCreateActivity_SendsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in moco.ActivityInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if in.TaskID != 7 || in.Hours != 1.5 {
			t.Errorf("payload = %+v", in)
		}
		_ = json.NewEncoder(w).Encode(moco.Activity{ID: 99, Date: in.Date, Hours: in.Hours})
	}))
	defer srv.Close()

	c := moco.NewClient(srv.URL, "k", srv.Client())
	a, err := c.CreateActivity(context.Background(), moco.ActivityInput{Date: "2025-01-10", ProjectID: 1, TaskID: 7, Hours: 1.5})
	if err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}
	if a.ID != 99 {
		t.Errorf("ID = %d, want 99", a.ID)
	}
}
