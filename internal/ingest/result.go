package ingest

import (
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
	"github.com/cie-hub/cambridge-innovation-events/internal/notify"
)

// Failure reasons the orchestrator adds to the collector's own.
const (
	ReasonStoreFailed = "store_failed"
	ReasonNoCollector = "no_collector"
)

// SourceResult is the outcome of one source's pipeline: either ok with
// counts, or error with a reason and the underlying error.
type SourceResult struct {
	Source   string
	Status   string
	Events   int
	Rejected int
	Removed  int64
	Reason   string
	Err      error

	rejections []notify.Rejection
}

// Ok builds a successful result.
func Ok(source string, events, rejected int, removed int64) SourceResult {
	return SourceResult{Source: source, Status: models.StatusOK, Events: events, Rejected: rejected, Removed: removed}
}

// Failed builds a failed result.
func Failed(source, reason string, err error) SourceResult {
	return SourceResult{Source: source, Status: models.StatusError, Reason: reason, Err: err}
}

// OK reports whether the pipeline completed.
func (r SourceResult) OK() bool {
	return r.Status == models.StatusOK
}

// Report renders the result for the run report.
func (r SourceResult) Report() models.SourceReport {
	rep := models.SourceReport{
		Status:   r.Status,
		Events:   r.Events,
		Rejected: r.Rejected,
		Removed:  r.Removed,
		Reason:   r.Reason,
	}
	if r.Err != nil {
		rep.Error = r.Err.Error()
	}
	return rep
}
