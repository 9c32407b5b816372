package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

const (
	titleWidth  = 48
	sourceWidth = 20
	tail        = "…"
)

// cell pads or truncates s to exactly width display columns.
func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, tail), width)
}

func printEvents(w io.Writer, events []models.Event) {
	fmt.Fprintf(w, "%s  %s  %s  %s\n", cell("DATE", 10), cell("SOURCE", sourceWidth), cell("TITLE", titleWidth), "CATEGORIES")
	for _, ev := range events {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			ev.Date.Format("2006-01-02"),
			cell(ev.Source, sourceWidth),
			cell(ev.Title, titleWidth),
			strings.Join(ev.Categories, ", "),
		)
	}
}

func printSources(w io.Writer, reg *config.Registry) {
	batches := batchesBySource(reg)
	sources := append([]config.SourceConfig(nil), reg.Sources...)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", cell("ID", sourceWidth), cell("NAME", 32), cell("KIND", 6), cell("PLATFORM", 8), "BATCHES")
	for _, s := range sources {
		platform := ""
		if s.Platform {
			platform = "yes"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			cell(s.ID, sourceWidth),
			cell(s.Name, 32),
			cell(s.Collector, 6),
			cell(platform, 8),
			strings.Join(batches[s.ID], ","),
		)
	}
}

func printReport(w io.Writer, report models.RunReport) {
	fmt.Fprintf(w, "run %s: %d sources in %s\n", report.RunID, report.Sources, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	ids := make([]string, 0, len(report.Results))
	for id := range report.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		res := report.Results[id]
		line := fmt.Sprintf("  %s  %-5s  events=%d rejected=%d removed=%d", cell(id, sourceWidth), res.Status, res.Events, res.Rejected, res.Removed)
		if res.Error != "" {
			line += fmt.Sprintf("  %s: %s", res.Reason, res.Error)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "deleted: expired=%d unregistered=%d duplicates=%d\n",
		report.RetentionDeleted, report.UnregisteredDeleted, report.DuplicatesDeleted)
	for _, e := range report.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
}
