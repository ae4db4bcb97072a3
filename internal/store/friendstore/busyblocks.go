package friendstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"closer/internal/model"
)

// BusyBlock is a manually declared busy period: a calendar day plus local
// clock bounds in the caller's home timezone. It complements (and is
// merged with) busy data fetched from calendars.
type BusyBlock struct {
	ID        string    `json:"id"`
	Day       string    `json:"day"`        // YYYY-MM-DD
	StartTime string    `json:"start_time"` // HH:MM
	EndTime   string    `json:"end_time"`   // HH:MM
	CreatedAt time.Time `json:"created_at"`
}

const dayLayout = "2006-01-02"

// AddBusyBlock validates and inserts one manual block.
func (d *DB) AddBusyBlock(ctx context.Context, day, startTime, endTime string, now time.Time) (BusyBlock, error) {
	if _, err := time.Parse(dayLayout, day); err != nil {
		return BusyBlock{}, fmt.Errorf("busy block day %q: %w", day, err)
	}
	s, err := model.ParseClock(startTime)
	if err != nil {
		return BusyBlock{}, err
	}
	e, err := model.ParseClock(endTime)
	if err != nil {
		return BusyBlock{}, err
	}
	if e <= s {
		return BusyBlock{}, fmt.Errorf("busy block end %q must be after start %q", endTime, startTime)
	}
	b := BusyBlock{ID: uuid.NewString(), Day: day, StartTime: startTime, EndTime: endTime, CreatedAt: now.UTC()}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO busy_blocks(id, day, start_time, end_time, created_at) VALUES(?,?,?,?,?)`,
		b.ID, b.Day, b.StartTime, b.EndTime, b.CreatedAt.Unix())
	if err != nil {
		return BusyBlock{}, err
	}
	return b, nil
}

// ListBusyBlocks returns all blocks ordered by day then start time.
func (d *DB) ListBusyBlocks(ctx context.Context) ([]BusyBlock, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, day, start_time, end_time, created_at
	  FROM busy_blocks ORDER BY day, start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BusyBlock
	for rows.Next() {
		var b BusyBlock
		var created int64
		if err := rows.Scan(&b.ID, &b.Day, &b.StartTime, &b.EndTime, &created); err != nil {
			return nil, err
		}
		b.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (d *DB) DeleteBusyBlock(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM busy_blocks WHERE id=?`, id)
	return err
}

// CreateWeekdayTemplate inserts one block per weekday over the next 14
// calendar days, a quick way to mark recurring working hours busy.
func (d *DB) CreateWeekdayTemplate(ctx context.Context, startTime, endTime string, now time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	for i := 0; i < 14; i++ {
		day := now.In(loc).AddDate(0, 0, i)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if _, err := d.AddBusyBlock(ctx, day.Format(dayLayout), startTime, endTime, now); err != nil {
			return err
		}
	}
	return nil
}

// BusyIntervals converts manual blocks into UTC busy intervals, reading
// each block's wall-clock bounds in the caller's home location.
func (d *DB) BusyIntervals(ctx context.Context, loc *time.Location) ([]model.BusyInterval, error) {
	if loc == nil {
		loc = time.Local
	}
	blocks, err := d.ListBusyBlocks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.BusyInterval, 0, len(blocks))
	for _, b := range blocks {
		day, err := time.ParseInLocation(dayLayout, b.Day, loc)
		if err != nil {
			return nil, fmt.Errorf("busy block %s: %w", b.ID, err)
		}
		s, err := model.ParseClock(b.StartTime)
		if err != nil {
			return nil, fmt.Errorf("busy block %s: %w", b.ID, err)
		}
		e, err := model.ParseClock(b.EndTime)
		if err != nil {
			return nil, fmt.Errorf("busy block %s: %w", b.ID, err)
		}
		out = append(out, model.BusyInterval{
			Start: day.Add(time.Duration(s) * time.Minute).UTC(),
			End:   day.Add(time.Duration(e) * time.Minute).UTC(),
		})
	}
	return out, nil
}
