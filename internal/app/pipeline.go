// Package app assembles the ingestion pipeline shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cie-hub/cambridge-innovation-events/internal/classify"
	"github.com/cie-hub/cambridge-innovation-events/internal/collector"
	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/elasticsearch"
	"github.com/cie-hub/cambridge-innovation-events/internal/ingest"
	"github.com/cie-hub/cambridge-innovation-events/internal/metrics"
	"github.com/cie-hub/cambridge-innovation-events/internal/notify"
	"github.com/cie-hub/cambridge-innovation-events/internal/processing"
)

const connectRetries = 10

// Pipeline is a fully wired orchestrator and the resources it owns.
type Pipeline struct {
	Registry     *config.Registry
	Store        *elasticsearch.Client
	Collectors   *collector.Registry
	Normalizer   *processing.Normalizer
	Orchestrator *ingest.Orchestrator
	Notifier     notify.Notifier
}

// NewNormalizer builds the validator and classifiers for reg.
func NewNormalizer(reg *config.Registry, log *slog.Logger) (*processing.Normalizer, error) {
	validator, err := processing.NewValidator(reg.BannedLocations, log)
	if err != nil {
		return nil, err
	}
	return processing.NewNormalizer(
		validator,
		classify.NewCategoryClassifier(classify.DefaultCategories),
		classify.NewAccessClassifier(classify.DefaultAccessTypes),
	), nil
}

// NewCollectors builds a collector for every registered source.
func NewCollectors(reg *config.Registry, tune config.Ingest, log *slog.Logger) (*collector.Registry, error) {
	return collector.Build(reg, collector.Deps{
		Fetcher:           collector.NewFetcher(tune.FetchTimeout, tune.UserAgent),
		DetailConcurrency: tune.DetailConcurrency,
		Logger:            log,
	})
}

// NewPipeline loads the registry, connects to Elasticsearch and wires the
// orchestrator. promReg may be nil to skip metrics.
func NewPipeline(ctx context.Context, common config.Common, tune config.Ingest, promReg prometheus.Registerer, log *slog.Logger) (*Pipeline, error) {
	reg, err := config.LoadRegistry(common.SourcesFile)
	if err != nil {
		return nil, err
	}

	normalizer, err := NewNormalizer(reg, log)
	if err != nil {
		return nil, err
	}

	collectors, err := NewCollectors(reg, tune, log)
	if err != nil {
		return nil, err
	}

	store, err := elasticsearch.Connect(ctx, common.ElasticsearchAddr, common.EventsIndex, common.SourcesIndex, log, connectRetries)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureIndices(ctx); err != nil {
		return nil, fmt.Errorf("ensure indices: %w", err)
	}

	var m *metrics.Metrics
	if promReg != nil {
		m = metrics.New(promReg)
	}
	notifier := notify.New(common.KafkaBrokers, common.KafkaTopic, log)

	orch := ingest.New(store, collectors, normalizer, reg, ingest.Options{
		Concurrency:     tune.Concurrency,
		RetentionMonths: tune.RetentionMonths,
		Metrics:         m,
		Notifier:        notifier,
		Logger:          log,
	})

	return &Pipeline{
		Registry:     reg,
		Store:        store,
		Collectors:   collectors,
		Normalizer:   normalizer,
		Orchestrator: orch,
		Notifier:     notifier,
	}, nil
}

// Close releases the notifier.
func (p *Pipeline) Close() error {
	return p.Notifier.Close()
}
