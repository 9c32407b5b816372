package collector_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cie-hub/cambridge-innovation-events/internal/collector"
	"github.com/cie-hub/cambridge-innovation-events/internal/config"
)

const lumaEntries = `{"entries":[
  {"event":{"name":"AI Builders Night","start_at":"2026-11-10T18:00:00.000Z","end_at":"2026-11-10T21:00:00.000Z",
    "url":"ai-builders","cover_url":"https://img.example/ai.png",
    "geo_address_info":{"description":"Cambridge Union","city":"Cambridge"}}},
  {"event":{"name":"Remote Pitch Practice","start_at":"2026-11-12T12:00:00.000Z","end_at":"2026-11-12T13:00:00.000Z",
    "url":"broken-page","location_type":"zoom"}},
  {"event":{"name":"","start_at":"2026-11-12T12:00:00.000Z"}}
]}`

const lumaDetail = `<html><body><script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"initialData":{"data":{"description_mirror":
  {"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Demo your"},{"type":"text","text":"agents."}]}]}
}}}}}
</script></body></html>`

func lumaServer(t *testing.T, detailHits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/calendar/get-items", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("calendar_api_id") != "cal-abc123" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, lumaEntries)
	})
	mux.HandleFunc("/ai-builders", func(w http.ResponseWriter, _ *http.Request) {
		detailHits.Add(1)
		_, _ = io.WriteString(w, lumaDetail)
	})
	mux.HandleFunc("/broken-page", func(w http.ResponseWriter, _ *http.Request) {
		detailHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/org", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<script id="__NEXT_DATA__">{"props":{"pageProps":{"initialData":{"data":{"calendar":{"api_id":"cal-abc123"}}}}}}</script>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLumaFetchDegradesFailedDetail(t *testing.T) {
	var hits atomic.Int32
	srv := lumaServer(t, &hits)

	c, err := collector.NewFromConfig(config.SourceConfig{
		ID:         "luma-cue",
		URL:        "https://lu.ma/calendar/cal-abc123",
		Collector:  collector.KindLuma,
		Endpoint:   srv.URL,
		DetailBase: srv.URL,
	}, deps())
	require.NoError(t, err)

	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.EqualValues(t, 2, hits.Load())

	ai := records[0]
	require.Equal(t, "AI Builders Night", ai.Title)
	require.Equal(t, "2026-11-10", ai.Date)
	require.Equal(t, "18:00 - 21:00", ai.Time)
	require.Equal(t, "Cambridge Union", ai.Location)
	require.Equal(t, "Demo your agents.", ai.Description)
	require.Equal(t, srv.URL+"/ai-builders", ai.SourceURL)

	remote := records[1]
	require.Equal(t, "Remote Pitch Practice", remote.Title)
	require.Equal(t, "Online (Zoom)", remote.Location)
	require.Empty(t, remote.Description)

	require.Empty(t, records[2].Title)
	require.Equal(t, "2026-11-12", records[2].Date)
}

func TestLumaResolvesCalendarFromOrgPage(t *testing.T) {
	var hits atomic.Int32
	srv := lumaServer(t, &hits)

	c, err := collector.NewFromConfig(config.SourceConfig{
		ID:         "luma-cament",
		URL:        srv.URL + "/org",
		Collector:  collector.KindLuma,
		Endpoint:   srv.URL,
		DetailBase: srv.URL,
	}, collector.Deps{
		Fetcher:           collector.NewFetcher(time.Second, ""),
		DetailConcurrency: 1,
		Location:          time.UTC,
	})
	require.NoError(t, err)

	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestLumaListingFailureFailsSource(t *testing.T) {
	var hits atomic.Int32
	srv := lumaServer(t, &hits)

	c, err := collector.NewFromConfig(config.SourceConfig{
		ID:        "luma-cffn",
		Calendar:  "cal-unknown",
		Collector: collector.KindLuma,
		Endpoint:  srv.URL,
	}, deps())
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	require.Error(t, err)
	require.Equal(t, collector.ReasonFetchFailed, collector.Classify(err))
}
