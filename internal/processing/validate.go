package processing

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

// Rejection reasons.
var (
	ErrMissingTitle   = errors.New("missing required field \"title\"")
	ErrMissingDate    = errors.New("missing required field \"date\"")
	ErrMissingSource  = errors.New("missing required field \"source\"")
	ErrBannedLocation = errors.New("location is banned")
	ErrInvalidDate    = errors.New("date is not a calendar day")
)

// RecommendedFields are logged when absent but never reject a record.
var RecommendedFields = []string{"location", "description", "time", "imageUrl", "sourceUrl"}

// RejectionError explains why a raw record was dropped.
type RejectionError struct {
	Field string
	Title string
	Err   error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected %q: %v", e.Title, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Validator gates raw records before normalization.
type Validator struct {
	banned []*regexp.Regexp
	log    *slog.Logger
}

// NewValidator compiles the banned-location patterns (case-insensitive).
func NewValidator(bannedLocations []string, logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	v := &Validator{log: logger}
	for _, pattern := range bannedLocations {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile banned location %q: %w", pattern, err)
		}
		v.banned = append(v.banned, re)
	}
	return v, nil
}

// Validate returns the record and the recommended fields it lacks, or a
// *RejectionError. One warning is logged per missing recommended field.
func (v *Validator) Validate(raw models.RawRecord, sourceID string) (models.RawRecord, []string, error) {
	log := v.log.With(slog.String("source", sourceID))

	required := []struct {
		field string
		value string
		err   error
	}{
		{"title", raw.Title, ErrMissingTitle},
		{"date", raw.Date, ErrMissingDate},
		{"source", raw.Source, ErrMissingSource},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return raw, nil, v.reject(log, r.field, raw.Title, r.err)
		}
	}

	for _, re := range v.banned {
		if raw.Location != "" && re.MatchString(raw.Location) {
			return raw, nil, v.reject(log, "location", raw.Title, ErrBannedLocation)
		}
	}

	missing := MissingRecommended(raw)
	for _, field := range missing {
		log.Warn("missing recommended field",
			slog.String("field", field),
			slog.String("title", raw.Title),
		)
	}
	return raw, missing, nil
}

// MissingRecommended lists the recommended fields that are blank.
func MissingRecommended(raw models.RawRecord) []string {
	values := map[string]string{
		"location":    raw.Location,
		"description": raw.Description,
		"time":        raw.Time,
		"imageUrl":    raw.ImageURL,
		"sourceUrl":   raw.SourceURL,
	}
	var missing []string
	for _, field := range RecommendedFields {
		if strings.TrimSpace(values[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func (v *Validator) reject(log *slog.Logger, field, title string, err error) error {
	shown := title
	if strings.TrimSpace(shown) == "" {
		shown = "(no title)"
	}
	log.Warn("rejected event",
		slog.String("field", field),
		slog.String("title", shown),
		slog.String("reason", err.Error()),
	)
	return &RejectionError{Field: field, Title: shown, Err: err}
}
