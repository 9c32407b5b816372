package processing

import (
	"strings"
	"time"

	"github.com/cie-hub/cambridge-innovation-events/internal/classify"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

// Normalizer turns validated raw records into canonical events.
type Normalizer struct {
	validator  *Validator
	categories *classify.CategoryClassifier
	access     *classify.AccessClassifier
	now        func() time.Time
}

// NewNormalizer wires the validator and the shared classifiers.
func NewNormalizer(v *Validator, categories *classify.CategoryClassifier, access *classify.AccessClassifier) *Normalizer {
	return &Normalizer{
		validator:  v,
		categories: categories,
		access:     access,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the scrapedAt clock.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize validates raw and builds the canonical event.
func (n *Normalizer) Normalize(raw models.RawRecord) (models.Event, error) {
	raw, _, err := n.validator.Validate(raw, raw.Source)
	if err != nil {
		return models.Event{}, err
	}

	title := strings.TrimSpace(raw.Title)
	source := strings.TrimSpace(raw.Source)
	day, ok := ParseDay(raw.Date)
	if !ok {
		return models.Event{}, n.validator.reject(n.validator.log.With("source", source), "date", title, ErrInvalidDate)
	}

	description := strings.TrimSpace(raw.Description)
	dayKey := DayKey(day)

	ev := models.Event{
		Title:       title,
		Description: description,
		Date:        day,
		Source:      source,
		SourceURL:   strings.TrimSpace(raw.SourceURL),
		Location:    CleanText(raw.Location),
		Categories:  n.pickCategories(raw.Categories, title, description),
		Cost:        optional(firstNonEmpty(raw.Cost, classify.ExtractCost(description))),
		Access:      optional(firstNonEmpty(raw.Access, n.access.Infer(description))),
		Time:        optional(NormalizeTime(raw.Time)),
		ImageURL:    optional(raw.ImageURL),
		ScrapedAt:   n.now(),
		Hash:        HashEvent(title, dayKey, source),
		ContentHash: ContentHash(title, dayKey),
	}
	if end, ok := ParseDay(raw.EndDate); ok {
		ev.EndDate = &end
	}
	return ev, nil
}

func (n *Normalizer) pickCategories(override []string, title, description string) []string {
	if len(override) == 0 {
		return n.categories.Classify(title, description)
	}
	out := make([]string, 0, classify.MaxCategories)
	for _, label := range override {
		if len(out) == classify.MaxCategories {
			break
		}
		if n.categories.Has(label) {
			out = append(out, label)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
