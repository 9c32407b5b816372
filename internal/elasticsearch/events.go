package elasticsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

// maxResults caps unpaginated reads of the events index.
const maxResults = 10000

// UpsertEvents writes each event keyed by its hash; repeated writes replace.
func (c *Client) UpsertEvents(ctx context.Context, events []models.Event) error {
	for _, ev := range events {
		if ev.Hash == "" {
			return fmt.Errorf("event %q has no hash", ev.Title)
		}
		if err := c.index(ctx, c.eventsIndex, ev.Hash, ev); err != nil {
			return fmt.Errorf("upsert %s: %w", ev.Hash, err)
		}
	}
	return nil
}

// DeleteStale removes events of source whose hash is not in keep.
func (c *Client) DeleteStale(ctx context.Context, source string, keep []string) (int64, error) {
	query := map[string]any{
		"bool": map[string]any{
			"filter": []map[string]any{
				{"term": map[string]any{"source": source}},
			},
		},
	}
	if len(keep) > 0 {
		query["bool"].(map[string]any)["must_not"] = []map[string]any{
			{"terms": map[string]any{"hash": keep}},
		}
	}

	n, err := c.deleteByQuery(ctx, c.eventsIndex, query)
	if err != nil {
		return 0, fmt.Errorf("delete stale for %s: %w", source, err)
	}
	return n, nil
}

// DeleteOlderThan removes events dated strictly before cutoff.
func (c *Client) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := map[string]any{
		"range": map[string]any{
			"date": map[string]any{
				"lt": cutoff.UTC().Format(time.RFC3339),
			},
		},
	}

	n, err := c.deleteByQuery(ctx, c.eventsIndex, query)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	return n, nil
}

// DeleteUnregistered removes events whose source is not in sources.
func (c *Client) DeleteUnregistered(ctx context.Context, sources []string) (int64, error) {
	query := map[string]any{
		"bool": map[string]any{
			"must_not": []map[string]any{
				{"terms": map[string]any{"source": sources}},
			},
		},
	}

	n, err := c.deleteByQuery(ctx, c.eventsIndex, query)
	if err != nil {
		return 0, fmt.Errorf("delete unregistered: %w", err)
	}
	return n, nil
}

// DeleteByHash removes the given events.
func (c *Client) DeleteByHash(ctx context.Context, hashes []string) (int64, error) {
	if len(hashes) == 0 {
		return 0, nil
	}
	query := map[string]any{
		"terms": map[string]any{"hash": hashes},
	}

	n, err := c.deleteByQuery(ctx, c.eventsIndex, query)
	if err != nil {
		return 0, fmt.Errorf("delete by hash: %w", err)
	}
	return n, nil
}

// DuplicateGroups aggregates events sharing a contentHash with more than
// one member.
func (c *Client) DuplicateGroups(ctx context.Context) ([]models.DuplicateGroup, error) {
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"dupes": map[string]any{
				"terms": map[string]any{
					"field":         "contentHash",
					"min_doc_count": 2,
					"size":          maxResults,
				},
				"aggs": map[string]any{
					"members": map[string]any{
						"top_hits": map[string]any{
							"size":    100,
							"_source": []string{"hash", "source", "scrapedAt"},
						},
					},
				},
			},
		},
	}

	var parsed struct {
		Aggregations struct {
			Dupes struct {
				Buckets []struct {
					Key     string `json:"key"`
					Members struct {
						Hits struct {
							Hits []struct {
								Source models.DuplicateMember `json:"_source"`
							} `json:"hits"`
						} `json:"hits"`
					} `json:"members"`
				} `json:"buckets"`
			} `json:"dupes"`
		} `json:"aggregations"`
	}

	if err := c.search(ctx, c.eventsIndex, body, &parsed); err != nil {
		return nil, fmt.Errorf("duplicate groups: %w", err)
	}

	groups := make([]models.DuplicateGroup, 0, len(parsed.Aggregations.Dupes.Buckets))
	for _, bucket := range parsed.Aggregations.Dupes.Buckets {
		group := models.DuplicateGroup{ContentHash: bucket.Key}
		for _, hit := range bucket.Members.Hits.Hits {
			group.Members = append(group.Members, hit.Source)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// AllEvents returns persisted events sorted by date with hash stripped.
func (c *Client) AllEvents(ctx context.Context) ([]models.Event, error) {
	body := map[string]any{
		"size":  maxResults,
		"query": map[string]any{"match_all": map[string]any{}},
		"sort": []map[string]any{
			{"date": map[string]any{"order": "asc"}},
		},
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	err := c.search(ctx, c.eventsIndex, body, &parsed, func(r *esapi.SearchRequest) {
		r.SourceExcludes = []string{"hash"}
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	items := make([]models.Event, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		hit.Source.Hash = ""
		items = append(items, hit.Source)
	}
	return items, nil
}
