package collector

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
	"github.com/cie-hub/cambridge-innovation-events/internal/processing"
)

// htmlListing extracts records from a listing page with CSS selectors.
// Dates are passed through as written; the normalizer parses them.
type htmlListing struct {
	id    string
	page  string
	sel   config.Selectors
	max   int
	fetch *Fetcher
}

func newHTML(src config.SourceConfig, f *Fetcher) *htmlListing {
	page := src.Endpoint
	if page == "" {
		page = src.URL
	}
	return &htmlListing{id: src.ID, page: page, sel: src.Selectors, max: src.MaxItems, fetch: f}
}

func (h *htmlListing) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	doc, err := h.fetch.Document(ctx, h.page)
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(h.page)

	var out []models.RawRecord
	doc.Find(h.sel.Item).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if h.max > 0 && len(out) >= h.max {
			return false
		}
		title := processing.CleanText(item.Find(h.sel.Title).First().Text())
		if title == "" {
			return true
		}

		rec := models.RawRecord{
			Title:       title,
			Date:        h.date(item),
			Source:      h.id,
			SourceURL:   resolve(base, h.link(item)),
			Time:        h.text(item, h.sel.Time),
			Location:    h.text(item, h.sel.Location),
			Description: processing.Truncate(h.text(item, h.sel.Description), descMaxRunes),
		}
		if h.sel.Image != "" {
			src, _ := item.Find(h.sel.Image).First().Attr("src")
			rec.ImageURL = resolve(base, src)
		}
		if rec.SourceURL == "" {
			rec.SourceURL = h.page
		}
		out = append(out, rec)
		return true
	})
	return out, nil
}

func (h *htmlListing) text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return processing.CleanText(item.Find(selector).First().Text())
}

func (h *htmlListing) date(item *goquery.Selection) string {
	if h.sel.Date == "" {
		return ""
	}
	node := item.Find(h.sel.Date).First()
	if h.sel.DateAttr != "" {
		if v, ok := node.Attr(h.sel.DateAttr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return processing.CleanText(node.Text())
}

func (h *htmlListing) link(item *goquery.Selection) string {
	selector := h.sel.Link
	if selector == "" {
		selector = "a"
	}
	if goquery.NodeName(item) == "a" && h.sel.Link == "" {
		href, _ := item.Attr("href")
		return href
	}
	href, _ := item.Find(selector).First().Attr("href")
	return href
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
