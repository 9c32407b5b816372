package ingest

import (
	"context"
	"time"

	"github.com/cie-hub/cambridge-innovation-events/internal/metrics"
)

// Maintenance summarises the run-level cleanup passes.
type Maintenance struct {
	RetentionDeleted    int64
	UnregisteredDeleted int64
	DuplicatesDeleted   int64
	Errors              []string
}

// RetentionCutoff is the first calendar day still kept: events dated
// before it are expired.
func RetentionCutoff(now time.Time, months int) time.Time {
	y, m, d := now.UTC().AddDate(0, -months, 0).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Maintain expires old events, drops events of deregistered sources and
// removes cross-source duplicates. Each pass runs even if an earlier one
// failed.
func (o *Orchestrator) Maintain(ctx context.Context) Maintenance {
	var m Maintenance
	fail := func(step string, err error) {
		o.log.Error("maintenance step failed", "step", step, "reason", ReasonStoreFailed, "err", err)
		m.Errors = append(m.Errors, step+": "+err.Error())
	}

	// Freshly upserted events must be searchable before delete-by-query sees them.
	if err := o.store.Refresh(ctx); err != nil {
		fail("refresh", err)
	}

	cutoff := RetentionCutoff(o.now(), o.retentionMonths)
	if n, err := o.store.DeleteOlderThan(ctx, cutoff); err != nil {
		fail("retention", err)
	} else {
		m.RetentionDeleted = n
		o.metrics.ObserveDeleted(metrics.DeletedRetention, n)
	}

	if n, err := o.store.DeleteUnregistered(ctx, o.registry.SourceIDs()); err != nil {
		fail("unregistered", err)
	} else {
		m.UnregisteredDeleted = n
		o.metrics.ObserveDeleted(metrics.DeletedUnregistered, n)
	}

	n, err := o.Reconcile(ctx)
	if err != nil {
		fail("reconcile", err)
	}
	m.DuplicatesDeleted = n

	o.log.Info("maintenance complete",
		"cutoff", cutoff.Format("2006-01-02"),
		"retention_deleted", m.RetentionDeleted,
		"unregistered_deleted", m.UnregisteredDeleted,
		"duplicates_deleted", m.DuplicatesDeleted,
	)
	return m
}

// Reconcile keeps one event per content hash and deletes the rest.
func (o *Orchestrator) Reconcile(ctx context.Context) (int64, error) {
	if err := o.store.Refresh(ctx); err != nil {
		return 0, err
	}
	groups, err := o.store.DuplicateGroups(ctx)
	if err != nil {
		return 0, err
	}
	losers := o.policy.Losers(groups)
	if len(losers) == 0 {
		return 0, nil
	}
	n, err := o.store.DeleteByHash(ctx, losers)
	if err != nil {
		return 0, err
	}
	o.metrics.ObserveDeleted(metrics.DeletedDuplicate, n)
	return n, nil
}
