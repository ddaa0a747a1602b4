package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Tiliavir/tally/internal/absence"
	"github.com/Tiliavir/tally/internal/config"
	"github.com/Tiliavir/tally/internal/jira"
	"github.com/Tiliavir/tally/internal/mapper"
	"github.com/Tiliavir/tally/internal/moco"
	"github.com/Tiliavir/tally/internal/monthcache"
	"github.com/Tiliavir/tally/internal/msgraph"
	"github.com/Tiliavir/tally/internal/overview"
	"github.com/Tiliavir/tally/internal/personio"
	"github.com/Tiliavir/tally/internal/presence"
	"github.com/Tiliavir/tally/internal/storage"
	"github.com/Tiliavir/tally/internal/tracker"
)

// app is everything a command needs, wired from the config file.
type app struct {
	cfg      config.Config
	store    storage.Store
	cache    *monthcache.Cache
	absences *absence.Book
	tracker  *tracker.Tracker
	log      *slog.Logger
}

// openApp loads the config, opens storage and connects every source that has
// credentials. Config and storage failures exit with status 2.
func openApp(ctx context.Context) *app {
	log := slog.Default()
	cfg, store := openStore()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	deps := tracker.Deps{
		Mapper:   mapper.New(cfg.Weekdays(), cfg.Outlook.Timezone),
		Settings: overview.Settings{WeekdayHours: cfg.Weekdays()},
		CalendarFilter: msgraph.FilterOptions{
			ShowDeclined:  cfg.Outlook.ShowDeclined,
			ShowFree:      cfg.Outlook.ShowFree,
			ShowCancelled: cfg.Outlook.ShowCancelled,
			ShowPrivate:   cfg.Outlook.ShowPrivate,
		},
		Log: log,
	}

	// Only assign connected sources: a typed nil would not compare equal to nil.
	if cfg.Moco.Connected() {
		client := moco.NewClient(moco.BaseURL(cfg.Moco.Domain), cfg.Moco.APIKey, httpClient)
		deps.Billing = client
		deps.Presence = presence.New(client, log)
	}
	if cfg.Jira.Connected() {
		deps.Issues = jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken, httpClient)
	}
	if cfg.Outlook.Enabled {
		tok, oauthCfg, err := msgraph.Authenticate(ctx, cfg.Outlook.TenantID, cfg.Outlook.ClientID, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: calendar not connected: %v\n", err)
		} else {
			deps.Calendar = msgraph.NewClient(ctx, tok, oauthCfg, cfg.Outlook.Timezone)
		}
	}

	var hr absence.HRFetcher
	if cfg.Personio.Connected() {
		hr = personio.NewClient(ctx, personio.DefaultBaseURL, cfg.Personio.ClientID, cfg.Personio.ClientSecret, cfg.Personio.PersonID)
	}
	book := absence.New(store, hr, log)
	if err := book.Load(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	deps.Absences = book

	cache := monthcache.New(store, tracker.BillingFetcher{Source: deps.Billing}, log)
	if err := cache.Load(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	return &app{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		absences: book,
		tracker:  tracker.New(deps, cache),
		log:      log,
	}
}

// openStore loads the config and opens its storage backend. Failures exit
// with status 2.
func openStore() (config.Config, storage.Store) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg, store
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}
}
