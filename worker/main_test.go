package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

type stubRunner struct {
	batches []string
	cancel  context.CancelFunc
	stopAt  int
}

func (s *stubRunner) Run(_ context.Context, batch string) models.RunReport {
	s.batches = append(s.batches, batch)
	if s.cancel != nil && len(s.batches) >= s.stopAt {
		s.cancel()
	}
	return models.RunReport{
		RunID:   "run",
		Results: map[string]models.SourceReport{"a": {Status: models.StatusOK}, "b": {Status: models.StatusError}},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunAllVisitsEveryBatch(t *testing.T) {
	r := &stubRunner{}
	runAll(context.Background(), discard(), r, []string{"0", "1", "2"})
	require.Equal(t, []string{"0", "1", "2"}, r.batches)
}

func TestRunAllWithoutBatchesRunsEverything(t *testing.T) {
	r := &stubRunner{}
	runAll(context.Background(), discard(), r, nil)
	require.Equal(t, []string{""}, r.batches)
}

func TestRunNextCycles(t *testing.T) {
	r := &stubRunner{}
	next := 0
	for range 5 {
		next = runNext(context.Background(), discard(), r, []string{"0", "1"}, next)
	}
	require.Equal(t, []string{"0", "1", "0", "1", "0"}, r.batches)
}

func TestLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &stubRunner{cancel: cancel, stopAt: 3}

	done := make(chan struct{})
	go func() {
		loop(ctx, discard(), r, []string{"0", "1"}, time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	require.Equal(t, []string{"0", "1", "0"}, r.batches)
}
