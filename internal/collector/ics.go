package collector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
	"github.com/cie-hub/cambridge-innovation-events/internal/processing"
)

// ics reads an iCalendar export. Recurrence rules are not expanded; each
// VEVENT contributes its first occurrence.
type ics struct {
	id       string
	endpoint string
	max      int
	fetch    *Fetcher
	loc      *time.Location
}

func newICS(src config.SourceConfig, f *Fetcher, loc *time.Location) *ics {
	endpoint := src.Endpoint
	if endpoint == "" {
		endpoint = src.URL
	}
	return &ics{id: src.ID, endpoint: endpoint, max: src.MaxItems, fetch: f, loc: loc}
}

func (c *ics) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	body, err := c.fetch.Get(ctx, c.endpoint)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("BEGIN:VCALENDAR")) {
		return nil, shapeError("response is not a calendar", nil)
	}

	dec := ical.NewDecoder(bytes.NewReader(body))
	var out []models.RawRecord
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, shapeError("decode calendar", err)
		}
		for _, ev := range cal.Events() {
			if c.max > 0 && len(out) >= c.max {
				return out, nil
			}
			if rec, ok := c.record(ev); ok {
				out = append(out, rec)
			}
		}
	}
	if out == nil {
		out = []models.RawRecord{}
	}
	return out, nil
}

func (c *ics) record(ev ical.Event) (models.RawRecord, bool) {
	if status := ev.Props.Get(ical.PropStatus); status != nil && strings.EqualFold(status.Value, "CANCELLED") {
		return models.RawRecord{}, false
	}
	summary, _ := ev.Props.Text(ical.PropSummary)
	description, _ := ev.Props.Text(ical.PropDescription)
	location, _ := ev.Props.Text(ical.PropLocation)

	rec := models.RawRecord{
		Title:       processing.CleanText(summary),
		Source:      c.id,
		Description: processing.Truncate(processing.CleanText(description), descMaxRunes),
		Location:    processing.CleanText(location),
	}
	if link := ev.Props.Get(ical.PropURL); link != nil {
		rec.SourceURL = strings.TrimSpace(link.Value)
	}

	// An unreadable DTSTART is kept as written for the normalizer to reject.
	start, err := ev.DateTimeStart(c.loc)
	if err != nil || start.IsZero() {
		if dtstart := ev.Props.Get(ical.PropDateTimeStart); dtstart != nil {
			rec.Date = strings.TrimSpace(dtstart.Value)
		}
		return rec, true
	}
	start = start.In(c.loc)
	rec.Date = start.Format(processing.DayLayout)

	end, err := ev.DateTimeEnd(c.loc)
	if err != nil {
		end = time.Time{}
	} else if !end.IsZero() {
		end = end.In(c.loc)
	}
	if start.Hour() != 0 || start.Minute() != 0 {
		rec.Time = processing.FormatTime(start)
		if !end.IsZero() && sameDay(start, end) {
			rec.Time = processing.FormatTimeRange(start, end)
		}
	}
	if !end.IsZero() && end.After(start) {
		last := end
		// DTEND is exclusive, so an all-day event ends at the following midnight.
		if end.Hour() == 0 && end.Minute() == 0 {
			last = end.Add(-time.Minute)
		}
		if last.After(start) && !sameDay(start, last) {
			rec.EndDate = last.Format(processing.DayLayout)
		}
	}
	return rec, true
}

func sameDay(a, b time.Time) bool {
	return a.Format(processing.DayLayout) == b.Format(processing.DayLayout)
}
