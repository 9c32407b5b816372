package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cie-hub/cambridge-innovation-events/internal/classify"
	"github.com/cie-hub/cambridge-innovation-events/internal/collector"
	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/ingest"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
	"github.com/cie-hub/cambridge-innovation-events/internal/notify"
	"github.com/cie-hub/cambridge-innovation-events/internal/processing"
)

type memStore struct {
	mu        sync.Mutex
	events    map[string]models.Event
	sources   map[string]models.SourceStatus
	upsertErr map[string]error
	dupErr    error
	calls     []string
}

func newMemStore() *memStore {
	return &memStore{
		events:    make(map[string]models.Event),
		sources:   make(map[string]models.SourceStatus),
		upsertErr: make(map[string]error),
	}
}

func (s *memStore) UpsertEvents(_ context.Context, events []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if err := s.upsertErr[ev.Source]; err != nil {
			return err
		}
		s.events[ev.Hash] = ev
	}
	return nil
}

func (s *memStore) deleteWhere(match func(models.Event) bool) int64 {
	var n int64
	for hash, ev := range s.events {
		if match(ev) {
			delete(s.events, hash)
			n++
		}
	}
	return n
}

func (s *memStore) DeleteStale(_ context.Context, source string, keep []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make(map[string]bool, len(keep))
	for _, h := range keep {
		kept[h] = true
	}
	return s.deleteWhere(func(ev models.Event) bool { return ev.Source == source && !kept[ev.Hash] }), nil
}

func (s *memStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "retention")
	return s.deleteWhere(func(ev models.Event) bool { return ev.Date.Before(cutoff) }), nil
}

func (s *memStore) DeleteUnregistered(_ context.Context, sources []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "unregistered")
	registered := make(map[string]bool, len(sources))
	for _, id := range sources {
		registered[id] = true
	}
	return s.deleteWhere(func(ev models.Event) bool { return !registered[ev.Source] }), nil
}

func (s *memStore) DuplicateGroups(context.Context) ([]models.DuplicateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dupErr != nil {
		return nil, s.dupErr
	}
	byContent := make(map[string][]models.DuplicateMember)
	for _, ev := range s.events {
		byContent[ev.ContentHash] = append(byContent[ev.ContentHash], models.DuplicateMember{
			Hash: ev.Hash, Source: ev.Source, ScrapedAt: ev.ScrapedAt,
		})
	}
	var groups []models.DuplicateGroup
	for content, members := range byContent {
		if len(members) > 1 {
			groups = append(groups, models.DuplicateGroup{ContentHash: content, Members: members})
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ContentHash < groups[j].ContentHash })
	return groups, nil
}

func (s *memStore) DeleteByHash(_ context.Context, hashes []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, h := range hashes {
		if _, ok := s.events[h]; ok {
			delete(s.events, h)
			n++
		}
	}
	return n, nil
}

func (s *memStore) Refresh(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "refresh")
	return nil
}

func (s *memStore) UpsertSource(_ context.Context, status models.SourceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[status.ID] = status
	return nil
}

func (s *memStore) titles(source string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		if source == "" || ev.Source == source {
			out = append(out, ev.Title)
		}
	}
	sort.Strings(out)
	return out
}

func (s *memStore) byTitle(title string) (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Title == title {
			return ev, true
		}
	}
	return models.Event{}, false
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu       sync.Mutex
	reports  []models.RunReport
	rejected []notify.Rejection
}

func (n *recordingNotifier) RunCompleted(_ context.Context, r models.RunReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return nil
}

func (n *recordingNotifier) Rejected(_ context.Context, _ string, rejects []notify.Rejection) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, rejects...)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

type fixture struct {
	store      *memStore
	collectors *collector.Registry
	clock      *clock
	notifier   *recordingNotifier
	orch       *ingest.Orchestrator
}

func newFixture(t *testing.T, reg *config.Registry) *fixture {
	t.Helper()
	v, err := processing.NewValidator(reg.BannedLocations, nil)
	require.NoError(t, err)

	f := &fixture{
		store:      newMemStore(),
		collectors: collector.NewRegistry(),
		clock:      &clock{t: time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC)},
		notifier:   &recordingNotifier{},
	}
	normalizer := processing.NewNormalizer(v, classify.NewCategoryClassifier(nil), classify.NewAccessClassifier(nil)).WithClock(f.clock.Now)
	f.orch = ingest.New(f.store, f.collectors, normalizer, reg, ingest.Options{
		Concurrency:     2,
		RetentionMonths: 3,
		Notifier:        f.notifier,
		Now:             f.clock.Now,
	})
	return f
}

func (f *fixture) serve(id string, records ...models.RawRecord) {
	f.collectors.Register(id, collector.Func(func(context.Context) ([]models.RawRecord, error) {
		return records, nil
	}))
}

func raw(title, date, source string) models.RawRecord {
	return models.RawRecord{Title: title, Date: date, Source: source, Description: "A talk for founders."}
}

func registry(ids ...string) *config.Registry {
	reg := &config.Registry{Batches: map[string][]string{}}
	for _, id := range ids {
		reg.Sources = append(reg.Sources, config.SourceConfig{ID: id, Name: id, Collector: collector.KindRSS})
	}
	return reg
}

func TestStaleRemoval(t *testing.T) {
	f := newFixture(t, registry("allia"))

	f.serve("allia", raw("A", "2026-11-01", "allia"), raw("B", "2026-11-02", "allia"), raw("C", "2026-11-03", "allia"))
	report := f.orch.Run(context.Background(), "")
	require.Equal(t, 3, report.Results["allia"].Events)
	require.Equal(t, []string{"A", "B", "C"}, f.store.titles("allia"))

	f.clock.Advance(3 * time.Hour)
	f.serve("allia", raw("A", "2026-11-01", "allia"), raw("C", "2026-11-03", "allia"))
	report = f.orch.Run(context.Background(), "")

	require.Equal(t, []string{"A", "C"}, f.store.titles("allia"))
	require.EqualValues(t, 1, report.Results["allia"].Removed)
	for _, title := range []string{"A", "C"} {
		ev, ok := f.store.byTitle(title)
		require.True(t, ok)
		require.Equal(t, f.clock.Now(), ev.ScrapedAt)
	}
}

func TestRetentionRemovesExpiredEvents(t *testing.T) {
	reg := registry("allia", "kings-elab")
	reg.Batches["0"] = []string{"allia"}
	f := newFixture(t, reg)
	f.serve("allia", raw("Old Meetup", "2026-06-01", "allia"), raw("Boundary Meetup", "2026-07-15", "allia"))

	// An expired event from a source outside this batch goes too.
	f.store.events["stale-elab"] = models.Event{Title: "Ancient", Source: "kings-elab", Hash: "stale-elab", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	report := f.orch.Run(context.Background(), "0")

	require.Equal(t, []string{"Boundary Meetup"}, f.store.titles(""))
	require.EqualValues(t, 2, report.RetentionDeleted)
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 10, 15, 18, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), ingest.RetentionCutoff(now, 3))
}

func TestSourceFailuresAreIsolated(t *testing.T) {
	f := newFixture(t, registry("good", "shape", "down", "unwired", "panics", "storefail"))
	f.serve("good", raw("Pitch Night", "2026-11-01", "good"))
	f.collectors.Register("shape", collector.Func(func(context.Context) ([]models.RawRecord, error) {
		return nil, fmt.Errorf("decode: %w", collector.ErrShapeChanged)
	}))
	f.collectors.Register("down", collector.Func(func(context.Context) ([]models.RawRecord, error) {
		return nil, &collector.StatusError{URL: "https://down.example", Code: 503}
	}))
	f.collectors.Register("panics", collector.Func(func(context.Context) ([]models.RawRecord, error) {
		panic("unexpected nil node")
	}))
	f.serve("storefail", raw("Lost Talk", "2026-11-02", "storefail"))
	f.store.upsertErr["storefail"] = errors.New("cluster unavailable")

	report := f.orch.Run(context.Background(), "")

	require.Equal(t, 6, report.Sources)
	tests := map[string]struct {
		status string
		reason string
	}{
		"good":      {models.StatusOK, ""},
		"shape":     {models.StatusError, collector.ReasonShapeChanged},
		"down":      {models.StatusError, collector.ReasonFetchFailed},
		"unwired":   {models.StatusError, ingest.ReasonNoCollector},
		"panics":    {models.StatusError, collector.ReasonShapeChanged},
		"storefail": {models.StatusError, ingest.ReasonStoreFailed},
	}
	for id, want := range tests {
		t.Run(id, func(t *testing.T) {
			got := report.Results[id]
			require.Equal(t, want.status, got.Status)
			require.Equal(t, want.reason, got.Reason)

			status, ok := f.store.sources[id]
			require.True(t, ok)
			require.Equal(t, want.status, status.Status)
			if want.status == models.StatusError {
				require.NotEmpty(t, got.Error)
				require.NotEmpty(t, status.Error)
			}
		})
	}
	require.Equal(t, []string{"Pitch Night"}, f.store.titles(""))
}

func TestCrossSourceDedupPrefersPlatform(t *testing.T) {
	reg := registry("venture-cafe", "luma-cue")
	reg.Sources[1].Platform = true
	f := newFixture(t, reg)

	f.serve("venture-cafe", raw("Demo Day", "2026-11-20", "venture-cafe"))
	f.serve("luma-cue", raw("Demo Day", "2026-11-20", "luma-cue"))

	report := f.orch.Run(context.Background(), "")

	require.EqualValues(t, 1, report.DuplicatesDeleted)
	ev, ok := f.store.byTitle("Demo Day")
	require.True(t, ok)
	require.Equal(t, "luma-cue", ev.Source)
	require.Len(t, f.store.titles(""), 1)
}

func TestUnregisteredSourcesAreDropped(t *testing.T) {
	f := newFixture(t, registry("allia"))
	f.serve("allia")
	f.store.events["gone"] = models.Event{Title: "Retired", Source: "old-venue", Hash: "gone", Date: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)}

	report := f.orch.Run(context.Background(), "")

	require.EqualValues(t, 1, report.UnregisteredDeleted)
	require.Empty(t, f.store.titles(""))
}

func TestRejectedRecordsAreCountedAndPublished(t *testing.T) {
	f := newFixture(t, registry("allia"))
	f.serve("allia",
		raw("Valid", "2026-11-01", "allia"),
		raw("No Date", "", "allia"),
		raw("Bad Date", "sometime soon", "allia"),
		raw("Valid", "2026-11-01", "allia"),
	)

	report := f.orch.Run(context.Background(), "")

	got := report.Results["allia"]
	require.Equal(t, 1, got.Events)
	require.Equal(t, 2, got.Rejected)

	require.Len(t, f.notifier.reports, 1)
	require.Equal(t, report.RunID, f.notifier.reports[0].RunID)
	require.Len(t, f.notifier.rejected, 2)
	require.Equal(t, "date", f.notifier.rejected[0].Field)
}

func TestBatchSelection(t *testing.T) {
	reg := registry("a", "b", "c")
	reg.Batches["0"] = []string{"a"}
	f := newFixture(t, reg)
	for _, id := range []string{"a", "b", "c"} {
		f.serve(id)
	}

	report := f.orch.Run(context.Background(), "0")
	require.Equal(t, "0", report.Batch)
	require.Equal(t, 1, report.Sources)
	require.Contains(t, report.Results, "a")

	report = f.orch.Run(context.Background(), "7")
	require.Empty(t, report.Batch)
	require.Equal(t, 3, report.Sources)
}

func TestMaintainContinuesPastFailures(t *testing.T) {
	f := newFixture(t, registry("allia"))
	f.store.dupErr = errors.New("aggregation timed out")
	f.store.events["gone"] = models.Event{Title: "Retired", Source: "old-venue", Hash: "gone", Date: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)}

	m := f.orch.Maintain(context.Background())

	require.EqualValues(t, 1, m.UnregisteredDeleted)
	require.Len(t, m.Errors, 1)
	require.Contains(t, m.Errors[0], "reconcile")
}

func TestMaintainRefreshesBeforeDeleting(t *testing.T) {
	f := newFixture(t, registry("talks-cam"))
	f.serve("talks-cam", raw("Past Lecture", "2026-01-10", "talks-cam"), raw("Next Lecture", "2026-11-10", "talks-cam"))

	f.orch.Run(context.Background(), "")

	f.store.mu.Lock()
	calls := append([]string(nil), f.store.calls...)
	f.store.mu.Unlock()
	require.GreaterOrEqual(t, len(calls), 3)
	require.Equal(t, []string{"refresh", "retention", "unregistered"}, calls[:3])
	require.Equal(t, []string{"Next Lecture"}, f.store.titles("talks-cam"))
}

func TestCollectorDateFailuresBecomeRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"events":[
  {"title":"Founders Night","start_date":"2026-11-05 18:00:00","end_date":"2026-11-05 20:00:00"},
  {"title":"Summer Social","start_date":"date to be confirmed"}
]}`)
	}))
	defer srv.Close()

	f := newFixture(t, registry("venture-cafe"))
	c, err := collector.NewFromConfig(config.SourceConfig{
		ID: "venture-cafe", Endpoint: srv.URL, Collector: collector.KindTribe,
	}, collector.Deps{Fetcher: collector.NewFetcher(time.Second, ""), Location: time.UTC})
	require.NoError(t, err)
	f.collectors.Register("venture-cafe", c)

	report := f.orch.Run(context.Background(), "")

	got := report.Results["venture-cafe"]
	require.Equal(t, 1, got.Events)
	require.Equal(t, 1, got.Rejected)
	require.Len(t, f.notifier.rejected, 1)
	require.Equal(t, "date", f.notifier.rejected[0].Field)
	require.Equal(t, "Summer Social", f.notifier.rejected[0].Record.Title)
}
