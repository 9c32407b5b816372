package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cie-hub/cambridge-innovation-events/internal/app"
	"github.com/cie-hub/cambridge-innovation-events/internal/classify"
	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/dedupe"
	"github.com/cie-hub/cambridge-innovation-events/internal/elasticsearch"
	"github.com/cie-hub/cambridge-innovation-events/internal/ingest"
	"github.com/cie-hub/cambridge-innovation-events/internal/logger"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
	"github.com/cie-hub/cambridge-innovation-events/internal/processing"
)

type options struct {
	sourcesFile string
	format      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "ingestctl",
		Short:         "Operate the Cambridge innovation events ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
			}
			return nil
		},
	}

	defaultSources := os.Getenv("SOURCES_FILE")
	if defaultSources == "" {
		defaultSources = "sources.yml"
	}
	cmd.PersistentFlags().StringVar(&opts.sourcesFile, "sources", defaultSources, "Source registry file")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format: text or json")

	cmd.AddCommand(
		newRunCmd(opts),
		newCollectCmd(opts),
		newClassifyCmd(opts),
		newSourcesCmd(opts),
		newEventsCmd(opts),
	)
	return cmd
}

func newRunCmd(opts *options) *cobra.Command {
	var batch string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape a batch of sources and persist the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWorker()
			if err != nil {
				return err
			}
			cfg.SourcesFile = opts.sourcesFile

			log := logger.New("ingestctl")
			pipeline, err := app.NewPipeline(cmd.Context(), cfg.Common, cfg.Ingest, nil, log)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			report := pipeline.Orchestrator.Run(cmd.Context(), batch)
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "Batch to run (default: every source)")
	return cmd
}

func newCollectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "collect <source>...",
		Short: "Fetch and normalise sources without writing anything",
		Long: "Fetch and normalise one or more sources. Events several sources\n" +
			"report for the same day and title are collapsed as a run would.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWorker()
			if err != nil {
				return err
			}
			reg, err := config.LoadRegistry(opts.sourcesFile)
			if err != nil {
				return err
			}
			log := logger.New("ingestctl")

			collectors, err := app.NewCollectors(reg, cfg.Ingest, log)
			if err != nil {
				return err
			}
			normalizer, err := app.NewNormalizer(reg, log)
			if err != nil {
				return err
			}

			res, err := collectSources(cmd.Context(), collectors, normalizer, dedupe.NewPolicy(reg.PlatformSources()), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d raw records, %d valid, %d after dedup\n", res.raw, res.valid, len(res.events))

			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), res.events)
			}
			printEvents(cmd.OutOrStdout(), res.events)
			return nil
		},
	}
}

type collected struct {
	raw    int
	valid  int
	events []models.Event
}

func collectSources(ctx context.Context, collectors ingest.Collectors, normalizer *processing.Normalizer, policy *dedupe.Policy, ids []string) (collected, error) {
	var res collected
	for _, id := range ids {
		c, ok := collectors.Lookup(id)
		if !ok {
			return res, fmt.Errorf("unknown source %q", id)
		}
		raws, err := c.Fetch(ctx)
		if err != nil {
			return res, fmt.Errorf("collect %s: %w", id, err)
		}
		res.raw += len(raws)
		for _, raw := range raws {
			if ev, err := normalizer.Normalize(raw); err == nil {
				res.events = append(res.events, ev)
			}
		}
	}
	res.valid = len(res.events)
	res.events = policy.Events(res.events)
	return res, nil
}

type classification struct {
	Categories []string `json:"categories"`
	Access     *string  `json:"access"`
	Cost       *string  `json:"cost"`
}

func newClassifyCmd(opts *options) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "classify [description...]",
		Short: "Show the categories, access type and cost inferred for some text",
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")
			if strings.TrimSpace(title+description) == "" {
				return fmt.Errorf("nothing to classify: pass --title and/or a description")
			}
			res := classifyText(title, description)

			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "categories: %s\n", strings.Join(res.Categories, ", "))
			fmt.Fprintf(out, "access:     %s\n", orNone(res.Access))
			fmt.Fprintf(out, "cost:       %s\n", orNone(res.Cost))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Event title")
	return cmd
}

func classifyText(title, description string) classification {
	categories := classify.NewCategoryClassifier(nil)
	access := classify.NewAccessClassifier(nil)

	res := classification{Categories: categories.Classify(title, description)}
	if a := access.Infer(description); a != "" {
		res.Access = &a
	}
	if c := classify.ExtractCost(description); c != "" {
		res.Cost = &c
	}
	return res
}

func newSourcesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered sources and their batches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := config.LoadRegistry(opts.sourcesFile)
			if err != nil {
				return err
			}
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), reg.Sources)
			}
			printSources(cmd.OutOrStdout(), reg)
			return nil
		},
	}
}

func newEventsCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print persisted events in date order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWorker()
			if err != nil {
				return err
			}
			store, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.EventsIndex, cfg.SourcesIndex, nil)
			if err != nil {
				return err
			}
			events, err := store.AllEvents(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(events) > limit {
				events = events[:limit]
			}
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), events)
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events to print (0 = all)")
	return cmd
}

func batchesBySource(reg *config.Registry) map[string][]string {
	out := make(map[string][]string)
	for _, name := range reg.BatchNames() {
		for _, id := range reg.Batches[name] {
			out[id] = append(out[id], name)
		}
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orNone(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
