package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"closer/internal/logging"
	"closer/internal/model"
)

// ICSSource turns one ICS subscription into busy intervals. Recurring
// events are expanded within the requested range; every event counts as
// busy regardless of its summary. The last successful body is kept with
// its ETag so an unchanged or unreachable feed reuses it.
type ICSSource struct {
	id   string
	name string
	url  string

	httpClient *http.Client
	etag       string
	lastBody   []byte
}

func NewICSSource(id, name, url string) *ICSSource {
	return &ICSSource{
		id:         id,
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *ICSSource) Name() string {
	if s.name != "" {
		return "ics:" + s.name
	}
	return "ics:" + s.id
}

func (s *ICSSource) BusyIntervals(ctx context.Context, from, to time.Time) ([]model.BusyInterval, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ExpandICS(body, from, to)
}

func (s *ICSSource) fetch(ctx context.Context) ([]byte, error) {
	if s.url == "" {
		return nil, errors.New("ics source url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if len(s.lastBody) > 0 {
			logging.Error("ics_fetch_using_cache", map[string]any{"source": s.Name(), "error": err.Error()})
			return s.lastBody, nil
		}
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotModified && len(s.lastBody) > 0:
		return s.lastBody, nil
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		s.etag = resp.Header.Get("ETag")
		s.lastBody = body
		return body, nil
	default:
		if len(s.lastBody) > 0 {
			logging.Error("ics_fetch_using_cache", map[string]any{"source": s.Name(), "status": resp.StatusCode})
			return s.lastBody, nil
		}
		return nil, fmt.Errorf("ics fetch status %d", resp.StatusCode)
	}
}

// ExpandICS parses an ICS payload and returns the busy intervals of all
// event occurrences overlapping [from, to), expanding RRULEs and honoring
// EXDATE exceptions. All-day events cover their whole calendar day.
func ExpandICS(body []byte, from, to time.Time) ([]model.BusyInterval, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []model.BusyInterval
	for _, ve := range cal.Events() {
		start, err := ve.GetStartAt()
		if err != nil {
			continue // skip events without a usable DTSTART
		}
		end, err := ve.GetEndAt()
		if err != nil || !end.After(start) {
			if isAllDay(ve) {
				end = start.Add(24 * time.Hour)
			} else {
				end = start.Add(time.Hour)
			}
		}
		dur := end.Sub(start)

		rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
		if rruleProp == nil || rruleProp.Value == "" {
			iv := model.BusyInterval{Start: start.UTC(), End: end.UTC()}
			if iv.Overlaps(model.BusyInterval{Start: from, End: to}) {
				out = append(out, iv)
			}
			continue
		}

		r, err := rrule.StrToRRule(rruleProp.Value)
		if err != nil {
			logging.Error("ics_rrule_parse_failed", map[string]any{"rrule": rruleProp.Value, "error": err.Error()})
			continue
		}
		r.DTStart(start)
		exdates := exdateSet(ve)
		// Start the window one duration early so in-progress occurrences
		// are still caught.
		for _, occ := range r.Between(from.Add(-dur), to, true) {
			if exdates[occ.Unix()] {
				continue
			}
			iv := model.BusyInterval{Start: occ.UTC(), End: occ.Add(dur).UTC()}
			if iv.Overlaps(model.BusyInterval{Start: from, End: to}) {
				out = append(out, iv)
			}
		}
	}
	return out, nil
}

func isAllDay(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

func exdateSet(ve *ical.VEvent) map[int64]bool {
	set := make(map[int64]bool)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				set[t.Unix()] = true
			}
		}
	}
	return set
}

// parseICSTime handles the basic UTC, local date-time, and date-only
// forms seen in EXDATE values.
func parseICSTime(v string) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.UTC)
	default:
		return time.ParseInLocation("20060102", v, time.UTC)
	}
}
