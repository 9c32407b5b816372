// Package dedupe reconciles events that several sources report for the same
// real-world occurrence (same content hash).
//
// Platform sources (ticketing and registration sites) win over venue or
// organiser pages. Among equals the first-seen record wins: the one scraped
// earliest, then the lowest hash so the choice is deterministic.
package dedupe

import (
	"sort"

	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

// Policy decides which member of a duplicate group survives.
type Policy struct {
	platforms map[string]struct{}
}

// NewPolicy builds a policy from the platform source slugs.
func NewPolicy(platformSources []string) *Policy {
	p := &Policy{platforms: make(map[string]struct{}, len(platformSources))}
	for _, s := range platformSources {
		p.platforms[s] = struct{}{}
	}
	return p
}

// IsPlatform reports whether source has dedup priority.
func (p *Policy) IsPlatform(source string) bool {
	_, ok := p.platforms[source]
	return ok
}

// Winner returns the hash of the member to keep. ok is false for an empty group.
func (p *Policy) Winner(group models.DuplicateGroup) (string, bool) {
	if len(group.Members) == 0 {
		return "", false
	}
	ordered := firstSeen(group.Members)
	for _, m := range ordered {
		if p.IsPlatform(m.Source) {
			return m.Hash, true
		}
	}
	return ordered[0].Hash, true
}

// Losers returns the hashes to delete from every group, in group order.
func (p *Policy) Losers(groups []models.DuplicateGroup) []string {
	var out []string
	for _, g := range groups {
		keep, ok := p.Winner(g)
		if !ok {
			continue
		}
		for _, m := range g.Members {
			if m.Hash != keep {
				out = append(out, m.Hash)
			}
		}
	}
	return out
}

// Events collapses an in-memory slice the same way, preserving the order of
// the surviving records.
func (p *Policy) Events(events []models.Event) []models.Event {
	groups := make(map[string]*models.DuplicateGroup)
	order := make([]string, 0, len(events))
	for _, ev := range events {
		g, ok := groups[ev.ContentHash]
		if !ok {
			g = &models.DuplicateGroup{ContentHash: ev.ContentHash}
			groups[ev.ContentHash] = g
			order = append(order, ev.ContentHash)
		}
		g.Members = append(g.Members, models.DuplicateMember{Hash: ev.Hash, Source: ev.Source, ScrapedAt: ev.ScrapedAt})
	}

	keep := make(map[string]struct{}, len(order))
	for _, key := range order {
		if h, ok := p.Winner(*groups[key]); ok {
			keep[h] = struct{}{}
		}
	}

	out := make([]models.Event, 0, len(keep))
	for _, ev := range events {
		if _, ok := keep[ev.Hash]; ok {
			out = append(out, ev)
			delete(keep, ev.Hash)
		}
	}
	return out
}

func firstSeen(members []models.DuplicateMember) []models.DuplicateMember {
	ordered := make([]models.DuplicateMember, len(members))
	copy(ordered, members)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ScrapedAt.Equal(ordered[j].ScrapedAt) {
			return ordered[i].ScrapedAt.Before(ordered[j].ScrapedAt)
		}
		return ordered[i].Hash < ordered[j].Hash
	})
	return ordered
}
