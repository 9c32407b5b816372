package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Client wraps go-elasticsearch with the events and sources indices.
type Client struct {
	es           *elasticsearch.Client
	eventsIndex  string
	sourcesIndex string
	log          *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(addr, eventsIndex, sourcesIndex string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, eventsIndex: eventsIndex, sourcesIndex: sourcesIndex, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health pings Elasticsearch to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

var eventsMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"hash":        map[string]any{"type": "keyword"},
			"contentHash": map[string]any{"type": "keyword"},
			"source":      map[string]any{"type": "keyword"},
			"title":       map[string]any{"type": "text"},
			"description": map[string]any{"type": "text"},
			"categories":  map[string]any{"type": "keyword"},
			"date":        map[string]any{"type": "date"},
			"endDate":     map[string]any{"type": "date"},
			"scrapedAt":   map[string]any{"type": "date"},
		},
	},
}

var sourcesMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":            map[string]any{"type": "keyword"},
			"status":        map[string]any{"type": "keyword"},
			"platform":      map[string]any{"type": "boolean"},
			"lastScrapedAt": map[string]any{"type": "date"},
		},
	},
}

// EnsureIndices creates the events and sources indices when missing.
func (c *Client) EnsureIndices(ctx context.Context) error {
	if err := c.ensureIndex(ctx, c.eventsIndex, eventsMapping); err != nil {
		return err
	}
	return c.ensureIndex(ctx, c.sourcesIndex, sourcesMapping)
}

func (c *Client) ensureIndex(ctx context.Context, index string, mapping map[string]any) error {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	payload, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()

	// Another instance may have created it between the two calls.
	if res.IsError() && !strings.Contains(readBody(res), "resource_already_exists_exception") {
		return fmt.Errorf("create index %s failed: %s", index, res.Status())
	}

	c.log.Info("index created", "index", index)
	return nil
}

// Refresh makes recent writes to the events index visible to searches.
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.eventsIndex),
	)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("refresh failed: %s", readBody(res))
	}
	return nil
}

func (c *Client) deleteByQuery(ctx context.Context, index string, query map[string]any) (int64, error) {
	payload, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return 0, fmt.Errorf("marshal delete body: %w", err)
	}

	res, err := c.es.DeleteByQuery(
		[]string{index},
		bytes.NewReader(payload),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithWaitForCompletion(true),
		c.es.DeleteByQuery.WithConflicts("proceed"),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return 0, fmt.Errorf("delete by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("delete by query failed: %s", readBody(res))
	}

	var parsed struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}
	return parsed.Deleted, nil
}

func (c *Client) index(ctx context.Context, index, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index doc failed: %s", readBody(res))
	}

	return nil
}

func (c *Client) search(ctx context.Context, index string, body map[string]any, out any, opts ...func(*esapi.SearchRequest)) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	opts = append([]func(*esapi.SearchRequest){
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	}, opts...)

	res, err := c.es.Search(opts...)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("search failed: %s", readBody(res))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

func readBody(res *esapi.Response) string {
	data, _ := io.ReadAll(res.Body)
	return strings.TrimSpace(string(data))
}
