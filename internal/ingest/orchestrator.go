// Package ingest drives scrape runs: per-source fetch, normalise and
// persist, followed by run-level cleanup and cross-source reconciliation.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cie-hub/cambridge-innovation-events/internal/collector"
	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/dedupe"
	"github.com/cie-hub/cambridge-innovation-events/internal/metrics"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
	"github.com/cie-hub/cambridge-innovation-events/internal/notify"
	"github.com/cie-hub/cambridge-innovation-events/internal/processing"
)

// Store is the persistence the orchestrator writes to.
type Store interface {
	UpsertEvents(ctx context.Context, events []models.Event) error
	DeleteStale(ctx context.Context, source string, keep []string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteUnregistered(ctx context.Context, sources []string) (int64, error)
	DuplicateGroups(ctx context.Context) ([]models.DuplicateGroup, error)
	DeleteByHash(ctx context.Context, hashes []string) (int64, error)
	Refresh(ctx context.Context) error
	UpsertSource(ctx context.Context, status models.SourceStatus) error
}

// Collectors resolves a source slug to its collector.
type Collectors interface {
	Lookup(id string) (collector.Collector, bool)
}

// Options tune an Orchestrator. Zero values take defaults.
type Options struct {
	Concurrency     int
	RetentionMonths int
	Metrics         *metrics.Metrics
	Notifier        notify.Notifier
	Logger          *slog.Logger
	Now             func() time.Time
}

// Orchestrator runs batches of sources against a Store.
type Orchestrator struct {
	store      Store
	collectors Collectors
	normalizer *processing.Normalizer
	registry   *config.Registry
	policy     *dedupe.Policy

	concurrency     int
	retentionMonths int
	metrics         *metrics.Metrics
	notifier        notify.Notifier
	log             *slog.Logger
	now             func() time.Time
}

// New wires an Orchestrator.
func New(store Store, collectors Collectors, normalizer *processing.Normalizer, registry *config.Registry, opts Options) *Orchestrator {
	o := &Orchestrator{
		store:           store,
		collectors:      collectors,
		normalizer:      normalizer,
		registry:        registry,
		policy:          dedupe.NewPolicy(registry.PlatformSources()),
		concurrency:     opts.Concurrency,
		retentionMonths: opts.RetentionMonths,
		metrics:         opts.Metrics,
		notifier:        opts.Notifier,
		log:             opts.Logger,
		now:             opts.Now,
	}
	if o.concurrency <= 0 {
		o.concurrency = 4
	}
	if o.retentionMonths <= 0 {
		o.retentionMonths = 3
	}
	if o.notifier == nil {
		o.notifier = notify.Nop{}
	}
	if o.log == nil {
		o.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Run processes the sources selected by batch, then cleans up and
// reconciles the whole store. Source failures never abort the run; they
// are reported per source.
func (o *Orchestrator) Run(ctx context.Context, batch string) models.RunReport {
	sourceIDs, matched := o.registry.Batch(batch)
	report := models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
		Sources:   len(sourceIDs),
		Results:   make(map[string]models.SourceReport, len(sourceIDs)),
	}
	if matched {
		report.Batch = batch
	}
	log := o.log.With("run_id", report.RunID)
	log.Info("run started", "batch", report.Batch, "sources", len(sourceIDs))

	results := o.runSources(ctx, report.RunID, sourceIDs)

	var rejections []notify.Rejection
	for _, res := range results {
		report.Results[res.Source] = res.Report()
		rejections = append(rejections, res.rejections...)
	}

	m := o.Maintain(ctx)
	report.RetentionDeleted = m.RetentionDeleted
	report.UnregisteredDeleted = m.UnregisteredDeleted
	report.DuplicatesDeleted = m.DuplicatesDeleted
	report.Errors = m.Errors
	report.FinishedAt = o.now()
	o.metrics.ObserveRun(report.FinishedAt.Sub(report.StartedAt))

	if err := o.notifier.Rejected(ctx, report.RunID, rejections); err != nil {
		log.Warn("publish rejected records", "err", err)
	}
	if err := o.notifier.RunCompleted(ctx, report); err != nil {
		log.Warn("publish run report", "err", err)
	}

	log.Info("run complete",
		"sources", report.Sources,
		"retention_deleted", report.RetentionDeleted,
		"unregistered_deleted", report.UnregisteredDeleted,
		"duplicates_deleted", report.DuplicatesDeleted,
	)
	return report
}

func (o *Orchestrator) runSources(ctx context.Context, runID string, ids []string) []SourceResult {
	results := make([]SourceResult, len(ids))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = o.runSource(ctx, runID, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runSource is one source's Fetching -> Normalizing -> Upserting pass.
func (o *Orchestrator) runSource(ctx context.Context, runID, id string) (res SourceResult) {
	log := o.log.With("source", id, "run_id", runID)
	started := o.now()

	defer func() {
		if p := recover(); p != nil {
			res = Failed(id, collector.ReasonShapeChanged, fmt.Errorf("collector panicked: %v", p))
		}
		o.finishSource(ctx, log, res, started)
	}()

	c, ok := o.collectors.Lookup(id)
	if !ok {
		return Failed(id, ReasonNoCollector, errors.New("no collector registered"))
	}

	log.Info("source started")
	raws, err := c.Fetch(ctx)
	if err != nil {
		return Failed(id, collector.Classify(err), err)
	}

	events, rejections := o.normalize(id, raws)

	keep := make([]string, 0, len(events))
	for _, ev := range events {
		keep = append(keep, ev.Hash)
	}
	removed, err := o.store.DeleteStale(ctx, id, keep)
	if err != nil {
		return Failed(id, ReasonStoreFailed, err)
	}
	o.metrics.ObserveDeleted(metrics.DeletedStale, removed)

	if err := o.store.UpsertEvents(ctx, events); err != nil {
		return Failed(id, ReasonStoreFailed, err)
	}

	res = Ok(id, len(events), len(rejections), removed)
	res.rejections = rejections
	return res
}

// normalize converts raw records, dropping rejects and repeated hashes.
func (o *Orchestrator) normalize(id string, raws []models.RawRecord) ([]models.Event, []notify.Rejection) {
	events := make([]models.Event, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	var rejections []notify.Rejection

	for _, raw := range raws {
		ev, err := o.normalizer.Normalize(raw)
		if err != nil {
			rej := notify.Rejection{Source: id, Error: err.Error(), Record: raw}
			var re *processing.RejectionError
			if errors.As(err, &re) {
				rej.Field = re.Field
			}
			rejections = append(rejections, rej)
			continue
		}
		if _, dup := seen[ev.Hash]; dup {
			continue
		}
		seen[ev.Hash] = struct{}{}
		events = append(events, ev)
	}
	return events, rejections
}

func (o *Orchestrator) finishSource(ctx context.Context, log *slog.Logger, res SourceResult, started time.Time) {
	status := models.SourceStatus{
		ID:            res.Source,
		LastScrapedAt: started,
		Status:        res.Status,
		Events:        res.Events,
	}
	if src, ok := o.registry.Source(res.Source); ok {
		status.Name = src.Name
		status.URL = src.URL
		status.Description = src.Description
		status.Platform = src.Platform
	}

	if res.OK() {
		log.Info("source complete", "events", res.Events, "rejected", res.Rejected, "removed", res.Removed)
	} else {
		status.Error = res.Err.Error()
		log.Error("source failed", "reason", res.Reason, "err", res.Err)
	}
	o.metrics.ObserveSource(res.Source, res.Status, res.Reason, res.Events, res.Rejected, started)

	if err := o.store.UpsertSource(ctx, status); err != nil {
		log.Warn("record source status", "err", err)
	}
}
