// Package server exposes the tracker as a small JSON API for UI consumers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Tiliavir/tally/internal/match"
	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/monthcache"
	"github.com/Tiliavir/tally/internal/reconcile"
	"github.com/Tiliavir/tally/internal/timecalc"
	"github.com/Tiliavir/tally/internal/tracker"
)

// Server serves the tracker over HTTP.
type Server struct {
	t   *tracker.Tracker
	log *slog.Logger
}

// New returns a Server backed by t.
func New(t *tracker.Tracker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{t: t, log: log.With(slog.String("component", "server"))}
}

// NewRouter registers the API routes.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
	api.HandleFunc("/days/{date}", s.getDay).Methods(http.MethodGet)
	api.HandleFunc("/reconcile", s.getReconcile).Methods(http.MethodGet)
	api.HandleFunc("/months/{month}/fetch", s.fetchMonth).Methods(http.MethodPost)
	api.HandleFunc("/months/{month}", s.deleteMonth).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id:[0-9]+}/hours", s.taskHours).Methods(http.MethodGet)

	return r
}

// Handler wraps the router with panic recovery and an access log written
// to accessLog in Apache combined format.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.log}),
		handlers.PrintRecoveryStack(false),
	)(s.NewRouter())
	return handlers.CombinedLoggingHandler(accessLog, recovered)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string, accessLog io.Writer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(accessLog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

type recoveryLogger struct{ log *slog.Logger }

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("handler panic", slog.String("panic", fmt.Sprint(v...)))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	cached := 0
	if c := s.t.Cache(); c != nil {
		cached = c.CachedMonthCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cached_months": cached})
}

type sourceView struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	Entries   int    `json:"entries"`
}

func viewOf(st tracker.SourceState) sourceView {
	return sourceView{Connected: st.Connected, Error: st.ErrText(), Entries: len(st.Entries)}
}

type dayResponse struct {
	Sources  map[model.Source]sourceView `json:"sources"`
	Overview model.DayOverview           `json:"overview"`
	Match    match.Result                `json:"match"`
	Events   []match.MatchableEvent      `json:"events"`
}

// getDay loads a date from every connected source. ?refresh=true forces a
// refetch of the live day.
func (s *Server) getDay(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if date == "today" {
		date = timecalc.Today()
	}

	fetch := s.t.FetchDay
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		fetch = s.t.RefreshDay
	}
	day, err := fetch(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	e := day.Entries()
	writeJSON(w, http.StatusOK, dayResponse{
		Sources: map[model.Source]sourceView{
			model.SourceBilling:  viewOf(day.Billing),
			model.SourceIssues:   viewOf(day.Issues),
			model.SourceCalendar: viewOf(day.Calendar),
		},
		Overview: s.t.DayOverview(date),
		Match:    match.Build(e.Billing, e.Issues, e.Calendar),
		Events:   match.MatchableEvents(e.Billing, e.Calendar),
	})
}

type reconcileResponse struct {
	From    string            `json:"from"`
	To      string            `json:"to"`
	Filter  reconcile.Filter  `json:"filter"`
	Units   []reconcile.Unit  `json:"units"`
	Summary reconcile.Summary `json:"summary"`
}

func (s *Server) getReconcile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	for _, d := range []string{from, to} {
		if _, err := timecalc.ParseDate(d); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if to < from {
		writeError(w, http.StatusBadRequest, fmt.Errorf("to %s is before from %s", to, from))
		return
	}
	filter, err := reconcile.ParseFilter(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.t.Reconcile(r.Context(), from, to)
	switch {
	case errors.Is(err, tracker.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.log.Warn("reconcile failed", slog.String("from", from), slog.String("to", to), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, reconcileResponse{
		From:    from,
		To:      to,
		Filter:  filter,
		Units:   filter.Apply(report.Units),
		Summary: report.Summary,
	})
}

type monthResponse struct {
	Month string   `json:"month"`
	State string   `json:"state"`
	Dates []string `json:"dates"`
}

func (s *Server) fetchMonth(w http.ResponseWriter, r *http.Request) {
	key, err := timecalc.ParseMonth(mux.Vars(r)["month"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.t.FetchMonth(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := monthResponse{Month: key, State: monthcache.StateAbsent.String(), Dates: []string{}}
	if c := s.t.Cache(); c != nil {
		resp.State = c.State(key).String()
		if dates := c.DatesWithData(key); dates != nil {
			resp.Dates = dates
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteMonth(w http.ResponseWriter, r *http.Request) {
	key, err := timecalc.ParseMonth(mux.Vars(r)["month"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.t.InvalidateMonth(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) taskHours(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": id, "hours": s.t.LoggedHoursForTask(id)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
