package personio_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/personio"
)

func TestGetAbsences_UsesClientCredentials(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/auth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_id") != "cid" {
			t.Errorf("token form = %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/absence-periods", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Query().Get("person.id") != "42" {
			t.Errorf("person.id = %q", r.URL.Query().Get("person.id"))
		}
		_, _ = w.Write([]byte(`{"_data":[{"id":"a1",
			"starts_from":{"date_time":"2025-03-03T00:00:00","type":"SECOND_HALF"},
			"ends_at":{"date_time":"2025-03-05T23:59:59","type":"FULL_DAY"},
			"absence_type":{"id":"t1","name":"Vacation"},
			"approval":{"status":"APPROVED"}}],"_meta":{"links":{}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := personio.NewClient(ctx, srv.URL, "cid", "secret", "42")
	got, err := c.GetAbsences(ctx, "2025-03-01", "2025-03-31")
	if err != nil {
		t.Fatalf("GetAbsences: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("absences = %d, want 1", len(got))
	}
	if tokenCalls != 1 {
		t.Errorf("token calls = %d, want 1", tokenCalls)
	}

	a := personio.ToAbsence(got[0])
	if a.Origin != model.AbsenceHR || a.Type != model.AbsenceVacation {
		t.Errorf("absence = %+v", a)
	}
	if a.StartDate != "2025-03-03" || a.EndDate != "2025-03-05" {
		t.Errorf("range = %s..%s", a.StartDate, a.EndDate)
	}
	if !a.HalfDayOn("2025-03-03") || a.HalfDayOn("2025-03-04") || a.HalfDayOn("2025-03-05") {
		t.Errorf("half-day flags wrong: %+v", a)
	}
}
