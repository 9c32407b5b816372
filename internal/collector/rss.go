package collector

import (
	"bytes"
	"context"
	"encoding/xml"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
	"github.com/cie-hub/cambridge-innovation-events/internal/processing"
)

// rss reads an RSS 2.0 feed, honouring the RSS event module's
// startdate/enddate/location elements when present.
type rss struct {
	id       string
	endpoint string
	max      int
	fetch    *Fetcher
	loc      *time.Location
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel *struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	StartDate   string `xml:"startdate"`
	EndDate     string `xml:"enddate"`
	Location    string `xml:"location"`
	Enclosure   struct {
		URL  string `xml:"url,attr"`
		Type string `xml:"type,attr"`
	} `xml:"enclosure"`
}

var rssDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func newRSS(src config.SourceConfig, f *Fetcher, loc *time.Location) *rss {
	endpoint := src.Endpoint
	if endpoint == "" {
		endpoint = src.URL
	}
	return &rss{id: src.ID, endpoint: endpoint, max: src.MaxItems, fetch: f, loc: loc}
}

func (r *rss) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	body, err := r.fetch.Get(ctx, r.endpoint)
	if err != nil {
		return nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false

	var feed rssFeed
	if err := dec.Decode(&feed); err != nil {
		return nil, shapeError("decode feed", err)
	}
	if feed.Channel == nil {
		return nil, shapeError("feed has no channel", nil)
	}

	out := make([]models.RawRecord, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if r.max > 0 && len(out) >= r.max {
			break
		}
		out = append(out, r.record(item))
	}
	return out, nil
}

// record keeps the feed's own date text when no layout matches, so the
// normalizer rejects the item with a reason.
func (r *rss) record(item rssItem) models.RawRecord {
	rec := models.RawRecord{
		Title:       processing.CleanText(item.Title),
		Source:      r.id,
		SourceURL:   strings.TrimSpace(item.Link),
		Description: processing.Truncate(processing.StripHTML(item.Description), descMaxRunes),
		Location:    processing.CleanText(item.Location),
	}
	if strings.HasPrefix(item.Enclosure.Type, "image/") {
		rec.ImageURL = item.Enclosure.URL
	}

	start, ok := r.parse(item.StartDate)
	if !ok {
		start, ok = r.parse(item.PubDate)
	}
	if !ok {
		rec.Date = firstOf(item.StartDate, item.PubDate)
		return rec
	}
	rec.Date = start.Format(processing.DayLayout)
	if start.Hour() != 0 || start.Minute() != 0 {
		rec.Time = processing.FormatTime(start)
		if end, ok := r.parse(item.EndDate); ok {
			rec.Time = processing.FormatTimeRange(start, end)
		}
	}
	return rec
}

func (r *rss) parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range rssDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, r.loc); err == nil {
			return t.In(r.loc), true
		}
	}
	return time.Time{}, false
}
