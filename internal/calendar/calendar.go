// Package calendar fetches busy intervals from external sources: a
// Google-style free/busy endpoint and ICS subscriptions. The engine only
// ever sees the merged []model.BusyInterval; how it was fetched is this
// package's business.
package calendar

import (
	"context"
	"sort"
	"time"

	"closer/internal/logging"
	"closer/internal/metrics"
	"closer/internal/model"
)

// BusySource supplies busy intervals covering [from, to).
type BusySource interface {
	Name() string
	BusyIntervals(ctx context.Context, from, to time.Time) ([]model.BusyInterval, error)
}

// FetchAll queries every source and merges the results, sorted by start.
// A failing source is logged and skipped rather than treated as an empty
// calendar; the per-source errors are returned so the caller can tell
// "nothing scheduled" from "could not fetch".
func FetchAll(ctx context.Context, from, to time.Time, sources ...BusySource) ([]model.BusyInterval, []error) {
	var merged []model.BusyInterval
	var errs []error
	for _, src := range sources {
		ivals, err := src.BusyIntervals(ctx, from, to)
		if err != nil {
			errs = append(errs, err)
			metrics.IncBusyFetchError(src.Name())
			logging.Error("busy_fetch_failed", map[string]any{"source": src.Name(), "error": err.Error()})
			continue
		}
		merged = append(merged, ivals...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Start.Before(merged[j].Start) })
	return merged, errs
}
