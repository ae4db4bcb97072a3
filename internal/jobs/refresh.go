// Package jobs runs the refresh pipeline: fetch busy intervals, compute
// free slots, build suggestions, persist a snapshot for the CLI and API.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"

	"closer/internal/calendar"
	"closer/internal/config"
	"closer/internal/freeslot"
	"closer/internal/logging"
	"closer/internal/metrics"
	"closer/internal/model"
	"closer/internal/store/friendstore"
	"closer/internal/suggest"
)

const (
	snapshotKey = "refresh:snapshot"
	lastRunKey  = "refresh:last_run"
)

// Snapshot is the persisted output of one refresh run.
type Snapshot struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	Slots       []model.FreeSlot     `json:"slots"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

// SourcesFromConfig builds the configured busy sources. A free/busy
// endpoint without a token is skipped; it could only ever return 401.
func SourcesFromConfig(cfg config.Config) []calendar.BusySource {
	var out []calendar.BusySource
	fb := cfg.Calendar.FreeBusy
	if fb.URL != "" && fb.AccessToken != "" {
		out = append(out, calendar.NewFreeBusyClient(fb.URL, fb.CalendarID, fb.AccessToken))
	}
	for _, s := range cfg.Calendar.ICS {
		if s.URL == "" {
			continue
		}
		out = append(out, calendar.NewICSSource(s.ID, s.Name, s.URL))
	}
	return out
}

// HomeLocation resolves the caller's configured home zone, falling back
// to the process-local zone.
func HomeLocation(cfg config.Config) *time.Location {
	if cfg.Account.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(cfg.Account.Timezone)
	if err != nil {
		logging.Error("home_timezone_unresolved", map[string]any{"timezone": cfg.Account.Timezone})
		return time.Local
	}
	return loc
}

// RunRefreshOnce executes one full pipeline pass at the given instant
// and persists the resulting snapshot.
func RunRefreshOnce(ctx context.Context, db *friendstore.DB, cfg config.Config, sources []calendar.BusySource, now time.Time) (*Snapshot, error) {
	start := time.Now()
	metrics.RefreshRuns.Inc()

	loc := HomeLocation(cfg)
	now = now.In(loc)
	from, to := now, now.AddDate(0, 0, cfg.Schedule.HorizonDays)

	busy, fetchErrs := calendar.FetchAll(ctx, from, to, sources...)
	manual, err := db.BusyIntervals(ctx, loc)
	if err != nil {
		metrics.RefreshErrors.Inc()
		return nil, err
	}
	busy = append(busy, manual...)

	slots, err := freeslot.Compute(busy, now, cfg.Schedule.WorkWindow, cfg.Schedule.HorizonDays, cfg.Schedule.MinSlotMinutes)
	if err != nil {
		metrics.RefreshErrors.Inc()
		return nil, err
	}
	friends, err := db.ListFriends(ctx)
	if err != nil {
		metrics.RefreshErrors.Inc()
		return nil, err
	}
	sugs := suggest.Build(friends, slots, now, cfg.Schedule.MaxSuggestions)

	snap := &Snapshot{GeneratedAt: now.UTC(), Slots: slots, Suggestions: sugs}
	b, err := json.Marshal(snap)
	if err != nil {
		metrics.RefreshErrors.Inc()
		return nil, err
	}
	if err := db.SaveKV(ctx, snapshotKey, string(b)); err != nil {
		metrics.RefreshErrors.Inc()
		return nil, err
	}
	_ = db.SaveKV(ctx, lastRunKey, now.UTC().Format(time.RFC3339Nano))

	metrics.SuggestionsProduced.Set(float64(len(sugs)))
	metrics.ObserveRefreshDuration(start)
	logging.Info("refresh_once", map[string]any{
		"busy":         len(busy),
		"slots":        len(slots),
		"suggestions":  len(sugs),
		"fetch_errors": len(fetchErrs),
	})
	return snap, nil
}

// RunRefreshLoop runs one refresh immediately, then on the configured
// cron schedule until ctx is cancelled.
func RunRefreshLoop(ctx context.Context, db *friendstore.DB, cfg config.Config, sources []calendar.BusySource) error {
	if _, err := RunRefreshOnce(ctx, db, cfg, sources, time.Now()); err != nil {
		logging.Error("refresh_once_error", map[string]any{"error": err.Error()})
	}
	c := cron.New()
	_, err := c.AddFunc(cfg.Schedule.RefreshCron, func() {
		if _, err := RunRefreshOnce(ctx, db, cfg, sources, time.Now()); err != nil {
			logging.Error("refresh_once_error", map[string]any{"error": err.Error()})
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logging.Info("refresh_loop_stop", nil)
	return ctx.Err()
}

// LoadSnapshot returns the last persisted snapshot, or nil if no refresh
// has run yet.
func LoadSnapshot(ctx context.Context, db *friendstore.DB) (*Snapshot, error) {
	v, err := db.LoadKV(ctx, snapshotKey)
	if err != nil {
		return nil, err
	}
	if v == "" {
		return nil, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(v), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
