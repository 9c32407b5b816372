package elasticsearch

import (
	"context"
	"fmt"

	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

// UpsertSource records a source's metadata and last run outcome.
func (c *Client) UpsertSource(ctx context.Context, status models.SourceStatus) error {
	if err := c.index(ctx, c.sourcesIndex, status.ID, status); err != nil {
		return fmt.Errorf("upsert source %s: %w", status.ID, err)
	}
	return nil
}

// ListSources returns every source document ordered by slug.
func (c *Client) ListSources(ctx context.Context) ([]models.SourceStatus, error) {
	body := map[string]any{
		"size":  maxResults,
		"query": map[string]any{"match_all": map[string]any{}},
		"sort": []map[string]any{
			{"id": map[string]any{"order": "asc"}},
		},
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.SourceStatus `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := c.search(ctx, c.sourcesIndex, body, &parsed); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	out := make([]models.SourceStatus, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		out = append(out, hit.Source)
	}
	return out, nil
}
