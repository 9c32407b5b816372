package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
	"github.com/cie-hub/cambridge-innovation-events/internal/processing"
)

const (
	lumaAPI      = "https://api.lu.ma"
	lumaPages    = "https://luma.com"
	nextDataNode = "#__NEXT_DATA__"
)

var calendarInURL = regexp.MustCompile(`calendar/(cal-[A-Za-z0-9]+)`)

// luma reads a Luma calendar through its public API and fills
// descriptions from each event page's embedded state.
type luma struct {
	id       string
	url      string
	calendar string
	apiBase  string
	pageBase string
	limit    int
	fetch    *Fetcher
	loc      *time.Location
	log      *slog.Logger
}

type lumaEntry struct {
	Event struct {
		Name         string `json:"name"`
		StartAt      string `json:"start_at"`
		EndAt        string `json:"end_at"`
		URL          string `json:"url"`
		CoverURL     string `json:"cover_url"`
		LocationType string `json:"location_type"`
		Geo          *struct {
			Description string `json:"description"`
			Address     string `json:"address"`
			City        string `json:"city"`
		} `json:"geo_address_info"`
	} `json:"event"`
}

// mirrorNode is a ProseMirror document node.
type mirrorNode struct {
	Type    string       `json:"type"`
	Text    string       `json:"text"`
	Content []mirrorNode `json:"content"`
}

type nextData struct {
	Props struct {
		PageProps struct {
			InitialData struct {
				Data struct {
					DescriptionMirror *mirrorNode `json:"description_mirror"`
					Calendar          *struct {
						APIID string `json:"api_id"`
					} `json:"calendar"`
					FeaturedItems []lumaEntry `json:"featured_items"`
				} `json:"data"`
			} `json:"initialData"`
		} `json:"pageProps"`
	} `json:"props"`
}

func newLuma(src config.SourceConfig, f *Fetcher, limit int, loc *time.Location, log *slog.Logger) *luma {
	l := &luma{
		id:       src.ID,
		url:      src.URL,
		calendar: src.Calendar,
		apiBase:  strings.TrimRight(src.Endpoint, "/"),
		pageBase: strings.TrimRight(src.DetailBase, "/"),
		limit:    limit,
		fetch:    f,
		loc:      loc,
		log:      log,
	}
	if l.apiBase == "" {
		l.apiBase = lumaAPI
	}
	if l.pageBase == "" {
		l.pageBase = lumaPages
	}
	if l.calendar == "" {
		if m := calendarInURL.FindStringSubmatch(src.URL); m != nil {
			l.calendar = m[1]
		}
	}
	return l
}

func (l *luma) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	entries, err := l.entries(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*models.RawRecord, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.limit)
	for i, entry := range entries {
		rec := l.record(entry)
		records[i] = &rec
		if entry.Event.URL == "" {
			continue
		}
		g.Go(func() error {
			desc, err := l.description(gctx, entry.Event.URL)
			if err != nil {
				l.log.Warn("description fetch failed", "event", rec.Title, "error", err)
				return nil
			}
			records[i].Description = desc
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.RawRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// entries resolves the calendar either directly or through the org page.
func (l *luma) entries(ctx context.Context) ([]lumaEntry, error) {
	if l.calendar != "" {
		return l.calendarEntries(ctx, l.calendar)
	}

	doc, err := l.fetch.Document(ctx, l.url)
	if err != nil {
		return nil, err
	}
	data, err := readNextData(doc)
	if err != nil {
		return nil, err
	}
	page := data.Props.PageProps.InitialData.Data
	if page.Calendar != nil && page.Calendar.APIID != "" {
		entries, err := l.calendarEntries(ctx, page.Calendar.APIID)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}
	return page.FeaturedItems, nil
}

func (l *luma) calendarEntries(ctx context.Context, calendar string) ([]lumaEntry, error) {
	endpoint := fmt.Sprintf("%s/calendar/get-items?calendar_api_id=%s", l.apiBase, url.QueryEscape(calendar))
	var body struct {
		Entries *[]lumaEntry `json:"entries"`
	}
	if err := l.fetch.JSON(ctx, endpoint, &body); err != nil {
		return nil, err
	}
	if body.Entries == nil {
		return nil, shapeError("luma response has no entries array", nil)
	}
	return *body.Entries, nil
}

// record passes missing names and unparseable start times through for the
// validator to reject.
func (l *luma) record(entry lumaEntry) models.RawRecord {
	ev := entry.Event
	rec := models.RawRecord{
		Title:     processing.CleanText(ev.Name),
		Date:      strings.TrimSpace(ev.StartAt),
		Source:    l.id,
		SourceURL: l.pageBase + "/" + ev.URL,
		ImageURL:  ev.CoverURL,
	}
	if g := ev.Geo; g != nil {
		rec.Location = firstOf(g.Description, g.Address, g.City)
	}
	if rec.Location == "" && ev.LocationType == "zoom" {
		rec.Location = "Online (Zoom)"
	}

	start, err := time.Parse(time.RFC3339, ev.StartAt)
	if err != nil {
		return rec
	}
	start = start.In(l.loc)
	rec.Date = start.Format(processing.DayLayout)
	if end, err := time.Parse(time.RFC3339, ev.EndAt); err == nil {
		rec.Time = processing.FormatTimeRange(start, end.In(l.loc))
	}
	return rec
}

func (l *luma) description(ctx context.Context, slug string) (string, error) {
	doc, err := l.fetch.Document(ctx, l.pageBase+"/"+slug)
	if err != nil {
		return "", err
	}
	data, err := readNextData(doc)
	if err != nil {
		return "", err
	}
	mirror := data.Props.PageProps.InitialData.Data.DescriptionMirror
	if mirror == nil {
		return "", nil
	}
	return processing.Truncate(processing.CleanText(mirror.text()), descMaxRunes), nil
}

func readNextData(doc *goquery.Document) (nextData, error) {
	var data nextData
	raw := strings.TrimSpace(doc.Find(nextDataNode).First().Text())
	if raw == "" {
		return data, shapeError("page has no "+nextDataNode, nil)
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return data, shapeError("decode "+nextDataNode, err)
	}
	return data, nil
}

func (n *mirrorNode) text() string {
	parts := make([]string, 0, len(n.Content)+1)
	if n.Type == "text" {
		parts = append(parts, n.Text)
	}
	for i := range n.Content {
		parts = append(parts, n.Content[i].text())
	}
	return strings.Join(parts, " ")
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v = processing.CleanText(v); v != "" {
			return v
		}
	}
	return ""
}
