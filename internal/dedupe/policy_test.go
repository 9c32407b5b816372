package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cie-hub/cambridge-innovation-events/internal/dedupe"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func member(hash, source string, offset time.Duration) models.DuplicateMember {
	return models.DuplicateMember{Hash: hash, Source: source, ScrapedAt: t0.Add(offset)}
}

func TestWinnerPrefersPlatform(t *testing.T) {
	p := dedupe.NewPolicy([]string{"meetup-cambridge", "luma-cue"})

	group := models.DuplicateGroup{ContentHash: "c1", Members: []models.DuplicateMember{
		member("venue", "bradfield-centre", 0),
		member("platform", "meetup-cambridge", time.Minute),
	}}
	got, ok := p.Winner(group)
	require.True(t, ok)
	require.Equal(t, "platform", got)
}

func TestWinnerFirstSeenOnTie(t *testing.T) {
	p := dedupe.NewPolicy([]string{"meetup-cambridge", "luma-cue"})

	platforms := models.DuplicateGroup{Members: []models.DuplicateMember{
		member("later", "luma-cue", time.Hour),
		member("earlier", "meetup-cambridge", 0),
	}}
	got, _ := p.Winner(platforms)
	require.Equal(t, "earlier", got)

	venues := models.DuplicateGroup{Members: []models.DuplicateMember{
		member("bbb", "st-johns", 0),
		member("aaa", "allia", 0),
	}}
	got, _ = p.Winner(venues)
	require.Equal(t, "aaa", got)

	_, ok := p.Winner(models.DuplicateGroup{})
	require.False(t, ok)
}

func TestLosers(t *testing.T) {
	p := dedupe.NewPolicy([]string{"eventbrite-cambridge"})

	groups := []models.DuplicateGroup{
		{ContentHash: "c1", Members: []models.DuplicateMember{
			member("a", "eagle-labs", 0),
			member("b", "eventbrite-cambridge", time.Second),
			member("c", "ideaspace", 2*time.Second),
		}},
		{ContentHash: "c2", Members: []models.DuplicateMember{
			member("d", "allia", 0),
			member("e", "allia", time.Second),
		}},
	}
	require.Equal(t, []string{"a", "c", "e"}, p.Losers(groups))
	require.True(t, p.IsPlatform("eventbrite-cambridge"))
	require.False(t, p.IsPlatform("allia"))
}

func TestEventsCollapsesInMemory(t *testing.T) {
	p := dedupe.NewPolicy([]string{"luma-cffn"})

	events := []models.Event{
		{Hash: "1", ContentHash: "x", Source: "kings-elab", ScrapedAt: t0},
		{Hash: "2", ContentHash: "y", Source: "kings-elab", ScrapedAt: t0},
		{Hash: "3", ContentHash: "x", Source: "luma-cffn", ScrapedAt: t0.Add(time.Second)},
	}
	got := p.Events(events)
	require.Len(t, got, 2)
	require.Equal(t, "2", got[0].Hash)
	require.Equal(t, "3", got[1].Hash)
}
