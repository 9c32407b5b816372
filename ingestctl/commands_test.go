package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/require"

	"github.com/cie-hub/cambridge-innovation-events/internal/app"
	"github.com/cie-hub/cambridge-innovation-events/internal/collector"
	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/dedupe"
	"github.com/cie-hub/cambridge-innovation-events/internal/logger"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

const registryYAML = `
batches:
  "0": [venture-cafe]
  "1": [luma-cue, venture-cafe]
sources:
  - id: venture-cafe
    name: Venture Café Cambridge
    url: https://venturecafecambridgeconnect.org
    collector: tribe
  - id: luma-cue
    name: Cambridge University Entrepreneurs
    url: https://lu.ma/calendar/cal-abc
    platform: true
    collector: luma
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeRegistry(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yml")
	require.NoError(t, os.WriteFile(path, []byte(registryYAML), 0o600))
	return path
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "classify", "--title", "Startup Pitch Night",
		"Founders pitch to investors. Register your place via Eventbrite. Tickets: £25 per person")
	require.NoError(t, err)
	require.Contains(t, out, "Startups & Founders")
	require.Contains(t, out, "access:     Registration Required")
	require.Contains(t, out, "cost:       £25")
}

func TestClassifyCommandJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "classify", "Open source software workshop")
	require.NoError(t, err)

	var res classification
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Nil(t, res.Access)
	require.Nil(t, res.Cost)
	require.NotNil(t, res.Categories)
}

func TestClassifyRequiresText(t *testing.T) {
	_, err := execute(t, "classify")
	require.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "classify", "hello")
	require.ErrorContains(t, err, "invalid format")
}

func TestSourcesCommand(t *testing.T) {
	out, err := execute(t, "--sources", writeRegistry(t), "sources")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[1], "luma-cue"))
	require.Contains(t, lines[1], "yes")
	require.True(t, strings.HasSuffix(lines[1], "1"))
	require.True(t, strings.HasSuffix(lines[2], "0,1"))
	require.Contains(t, lines[2], "Venture Café Cambridge")
}

func TestSourcesCommandMissingFile(t *testing.T) {
	_, err := execute(t, "--sources", filepath.Join(t.TempDir(), "nope.yml"), "sources")
	require.Error(t, err)
}

func TestCellWidth(t *testing.T) {
	tests := []struct {
		in    string
		width int
	}{
		{in: "short", width: 10},
		{in: "A very long event title that will not fit", width: 12},
		{in: "ケンブリッジ起業家ナイト", width: 9},
	}
	for _, tc := range tests {
		got := cell(tc.in, tc.width)
		require.Equal(t, tc.width, runewidth.StringWidth(got), tc.in)
	}
	require.True(t, strings.HasSuffix(cell("A very long event title", 8), tail))
}

func TestPrintReport(t *testing.T) {
	start := time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printReport(&buf, models.RunReport{
		RunID:      "run-9",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Sources:    2,
		Results: map[string]models.SourceReport{
			"b-source": {Status: models.StatusError, Reason: "shape_changed", Error: "missing events array"},
			"a-source": {Status: models.StatusOK, Events: 3},
		},
		DuplicatesDeleted: 1,
	})

	out := buf.String()
	require.Contains(t, out, "run run-9: 2 sources in 1.5s")
	require.Less(t, strings.Index(out, "a-source"), strings.Index(out, "b-source"))
	require.Contains(t, out, "shape_changed: missing events array")
	require.Contains(t, out, "duplicates=1")
}

func TestCollectSourcesCollapsesDuplicates(t *testing.T) {
	reg, err := config.ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)
	normalizer, err := app.NewNormalizer(reg, logger.Discard())
	require.NoError(t, err)

	collectors := collector.NewRegistry()
	serve := func(id string, records ...models.RawRecord) {
		collectors.Register(id, collector.Func(func(context.Context) ([]models.RawRecord, error) {
			return records, nil
		}))
	}
	serve("venture-cafe",
		models.RawRecord{Title: "Founders Night", Date: "2026-11-05", Source: "venture-cafe"},
		models.RawRecord{Title: "Investor Office Hours", Date: "2026-11-06", Source: "venture-cafe"},
		models.RawRecord{Title: "", Date: "2026-11-07", Source: "venture-cafe"},
	)
	serve("luma-cue", models.RawRecord{Title: "Founders Night", Date: "2026-11-05", Source: "luma-cue"})

	res, err := collectSources(context.Background(), collectors, normalizer, dedupe.NewPolicy(reg.PlatformSources()), []string{"venture-cafe", "luma-cue"})
	require.NoError(t, err)
	require.Equal(t, 4, res.raw)
	require.Equal(t, 3, res.valid)
	require.Len(t, res.events, 2)

	bySource := map[string]string{}
	for _, ev := range res.events {
		bySource[ev.Title] = ev.Source
	}
	require.Equal(t, "luma-cue", bySource["Founders Night"])
	require.Equal(t, "venture-cafe", bySource["Investor Office Hours"])

	_, err = collectSources(context.Background(), collectors, normalizer, dedupe.NewPolicy(nil), []string{"nowhere"})
	require.ErrorContains(t, err, "unknown source")
}
