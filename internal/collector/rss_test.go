package collector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cie-hub/cambridge-innovation-events/internal/collector"
	"github.com/cie-hub/cambridge-innovation-events/internal/config"
)

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:ev="http://purl.org/rss/1.0/modules/event/">
<channel>
  <title>Public Lectures</title>
  <item>
    <title>Quantum Computing for Everyone</title>
    <link>https://talks.example/q</link>
    <description><![CDATA[<p>A public lecture.<br/>All welcome.</p>]]></description>
    <pubDate>Mon, 02 Nov 2026 09:00:00 +0000</pubDate>
    <ev:startdate>2026-11-20T17:30:00Z</ev:startdate>
    <ev:enddate>2026-11-20T19:00:00Z</ev:enddate>
    <ev:location>Lady Mitchell Hall</ev:location>
    <enclosure url="https://talks.example/q.jpg" type="image/jpeg"/>
  </item>
  <item>
    <title>Announcement</title>
    <link>https://talks.example/a</link>
    <pubDate>Tue, 03 Nov 2026 00:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Undated</title>
  </item>
</channel>
</rss>`

func TestRSSFetch(t *testing.T) {
	srv := serve(t, map[string]string{"/feed": feed})

	c, err := collector.NewFromConfig(config.SourceConfig{
		ID: "cam-public-events", URL: srv.URL + "/feed", Collector: collector.KindRSS,
	}, deps())
	require.NoError(t, err)

	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	lecture := records[0]
	require.Equal(t, "2026-11-20", lecture.Date)
	require.Equal(t, "17:30 - 19:00", lecture.Time)
	require.Equal(t, "Lady Mitchell Hall", lecture.Location)
	require.Equal(t, "A public lecture. All welcome.", lecture.Description)
	require.Equal(t, "https://talks.example/q.jpg", lecture.ImageURL)

	announcement := records[1]
	require.Equal(t, "2026-11-03", announcement.Date)
	require.Empty(t, announcement.Time)

	require.Equal(t, "Undated", records[2].Title)
	require.Empty(t, records[2].Date)
}

func TestRSSMaxItems(t *testing.T) {
	srv := serve(t, map[string]string{"/feed": feed})

	c, err := collector.NewFromConfig(config.SourceConfig{
		ID: "cam-public-events", URL: srv.URL + "/feed", Collector: collector.KindRSS, MaxItems: 1,
	}, deps())
	require.NoError(t, err)

	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestRSSMalformedFeed(t *testing.T) {
	srv := serve(t, map[string]string{"/feed": `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`})

	c, err := collector.NewFromConfig(config.SourceConfig{
		ID: "cruk-lectures", URL: srv.URL + "/feed", Collector: collector.KindRSS,
	}, deps())
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	require.ErrorIs(t, err, collector.ErrShapeChanged)
}
