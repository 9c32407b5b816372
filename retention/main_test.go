package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cie-hub/cambridge-innovation-events/internal/ingest"
)

type stubMaintainer struct {
	result   ingest.Maintenance
	deadline bool
}

func (s *stubMaintainer) Maintain(ctx context.Context) ingest.Maintenance {
	_, s.deadline = ctx.Deadline()
	return s.result
}

func TestRunOnceLogsDeletions(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := &stubMaintainer{result: ingest.Maintenance{RetentionDeleted: 4, DuplicatesDeleted: 1}}

	runOnce(context.Background(), log, m)

	require.True(t, m.deadline)
	require.Contains(t, buf.String(), "expired=4")
	require.Contains(t, buf.String(), "duplicates=1")
}

func TestRunOnceReportsErrors(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	m := &stubMaintainer{result: ingest.Maintenance{Errors: []string{"reconcile: timeout"}}}

	runOnce(context.Background(), log, m)

	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "reconcile: timeout")
}
