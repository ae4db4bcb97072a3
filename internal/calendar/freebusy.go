package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"closer/internal/model"
)

// FreeBusyClient queries a Google-style free/busy endpoint with a bearer
// token. Requests are rate limited and retried with backoff on 429/5xx.
type FreeBusyClient struct {
	url         string
	calendarID  string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

func NewFreeBusyClient(url, calendarID, accessToken string) *FreeBusyClient {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &FreeBusyClient{
		url:         url,
		calendarID:  calendarID,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     newDefaultLimiter(),
		maxAttempts: getEnvInt("CLOSER_CALENDAR_MAX_ATTEMPTS", 5),
		baseBackoff: time.Duration(getEnvInt("CLOSER_CALENDAR_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

func (c *FreeBusyClient) Name() string { return "freebusy" }

// BusyIntervals posts a free/busy query for [from, to) and maps the busy
// ranges of the configured calendar.
func (c *FreeBusyClient) BusyIntervals(ctx context.Context, from, to time.Time) ([]model.BusyInterval, error) {
	if c.url == "" {
		return nil, errors.New("freebusy url is empty")
	}
	reqBody := struct {
		TimeMin string `json:"timeMin"`
		TimeMax string `json:"timeMax"`
		Items   []struct {
			ID string `json:"id"`
		} `json:"items"`
	}{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
		Items: []struct {
			ID string `json:"id"`
		}{{ID: c.calendarID}},
	}
	payload, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, req, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("freebusy status %d", resp.StatusCode)
	}

	var raw struct {
		Calendars map[string]struct {
			Busy []struct {
				Start time.Time `json:"start"`
				End   time.Time `json:"end"`
			} `json:"busy"`
		} `json:"calendars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	cal, ok := raw.Calendars[c.calendarID]
	if !ok {
		return nil, nil
	}
	out := make([]model.BusyInterval, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		out = append(out, model.BusyInterval{Start: b.Start.UTC(), End: b.End.UTC()})
	}
	return out, nil
}

func (c *FreeBusyClient) doWithRetry(ctx context.Context, req *http.Request, payload []byte) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		r := req.Clone(ctx)
		r.Body = http.NoBody
		if len(payload) > 0 {
			r.Body = nopCloser{bytes.NewReader(payload)}
		}
		resp, err := c.httpClient.Do(r)
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				ra := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()
				wait := backoff
				if ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						wait = time.Duration(secs) * time.Second
					} else if t, err := http.ParseTime(ra); err == nil {
						if d := time.Until(t); d > 0 {
							wait = d
						}
					}
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("freebusy request failed after %d attempts: %v", c.maxAttempts, lastErr)
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

// newDefaultLimiter creates a rate limiter using env overrides if present.
func newDefaultLimiter() *rate.Limiter {
	rps := 2.0
	burst := 5
	if v := os.Getenv("CLOSER_CALENDAR_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	if v := os.Getenv("CLOSER_CALENDAR_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
