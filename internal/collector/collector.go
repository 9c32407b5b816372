// Package collector fetches raw event records from external sources.
//
// A Collector fails as a whole only when its listing cannot be read; a
// failed detail fetch degrades the single record it belongs to.
package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

// Reasons reported for a failed source.
const (
	ReasonShapeChanged = "shape_changed"
	ReasonFetchFailed  = "fetch_failed"
)

// ErrShapeChanged marks a response that no longer matches the expected
// structure, as opposed to a transient network failure.
var ErrShapeChanged = errors.New("response shape changed")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

// Collector returns the raw records currently listed by one source.
type Collector interface {
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

// Func adapts a plain function to Collector.
type Func func(ctx context.Context) ([]models.RawRecord, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	return f(ctx)
}

// Classify maps a collector error to the reason shown to operators.
func Classify(err error) string {
	if errors.Is(err, ErrShapeChanged) {
		return ReasonShapeChanged
	}
	return ReasonFetchFailed
}

func shapeError(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrShapeChanged, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrShapeChanged, what, err)
}
