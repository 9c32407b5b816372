package collector

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
	"github.com/cie-hub/cambridge-innovation-events/internal/processing"
)

const (
	tribeLayout   = "2006-01-02 15:04:05"
	tribeMaxPages = 5
	descMaxRunes  = 500
)

// tribe reads The Events Calendar (WordPress) REST API.
type tribe struct {
	id       string
	endpoint string
	fallback string
	fetch    *Fetcher
	loc      *time.Location
}

type tribePage struct {
	Events  *[]tribeEvent `json:"events"`
	NextURL string        `json:"next_rest_url"`
}

type tribeEvent struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Cost        string          `json:"cost"`
	Venue       json.RawMessage `json:"venue"`
	Image       json.RawMessage `json:"image"`
}

type tribeVenue struct {
	Venue string `json:"venue"`
	City  string `json:"city"`
}

func newTribe(src config.SourceConfig, f *Fetcher, loc *time.Location) *tribe {
	endpoint := src.Endpoint
	if endpoint == "" {
		endpoint = strings.TrimRight(src.URL, "/") + "/wp-json/tribe/events/v1/events"
	}
	return &tribe{id: src.ID, endpoint: endpoint, fallback: src.URL, fetch: f, loc: loc}
}

func (t *tribe) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	var out []models.RawRecord
	next := t.endpoint
	for page := 0; next != "" && page < tribeMaxPages; page++ {
		var body tribePage
		if err := t.fetch.JSON(ctx, next, &body); err != nil {
			return nil, err
		}
		if body.Events == nil {
			return nil, shapeError("tribe response has no events array", nil)
		}
		for _, ev := range *body.Events {
			out = append(out, t.record(ev))
		}
		next = body.NextURL
	}
	return out, nil
}

// record keeps an unparseable start date as written so the normalizer can
// reject it with a reason.
func (t *tribe) record(ev tribeEvent) models.RawRecord {
	rec := models.RawRecord{
		Title:       processing.CleanText(ev.Title),
		Date:        strings.TrimSpace(ev.StartDate),
		Source:      t.id,
		SourceURL:   ev.URL,
		Description: processing.Truncate(processing.StripHTML(ev.Description), descMaxRunes),
		Location:    t.venue(ev.Venue),
		Cost:        processing.CleanText(ev.Cost),
		ImageURL:    t.image(ev.Image),
	}
	if rec.SourceURL == "" {
		rec.SourceURL = t.fallback
	}

	start, err := time.ParseInLocation(tribeLayout, ev.StartDate, t.loc)
	if err != nil {
		return rec
	}
	rec.Date = start.Format(processing.DayLayout)
	if end, err := time.ParseInLocation(tribeLayout, ev.EndDate, t.loc); err == nil {
		rec.Time = processing.FormatTimeRange(start, end)
		if end.Format(processing.DayLayout) != rec.Date {
			rec.EndDate = end.Format(processing.DayLayout)
		}
	}
	return rec
}

// venue is an object, or an empty array when the event has none.
func (t *tribe) venue(raw json.RawMessage) string {
	var v tribeVenue
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{v.Venue, v.City} {
		if p = processing.CleanText(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// image is an object, or false when the event has none.
func (t *tribe) image(raw json.RawMessage) string {
	var img struct {
		URL string `json:"url"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &img) != nil {
		return ""
	}
	return img.URL
}
