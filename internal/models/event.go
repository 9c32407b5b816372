package models

import "time"

// RawRecord is the loosely-typed shape a collector hands to the normalizer.
// It is never persisted.
type RawRecord struct {
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	Source      string   `json:"source"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Cost        string   `json:"cost,omitempty"`
	Access      string   `json:"access,omitempty"`
	Time        string   `json:"time,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	EndDate     string   `json:"endDate,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

// Event represents the canonical structure stored in Elasticsearch.
type Event struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
	EndDate     *time.Time `json:"endDate"`
	Source      string     `json:"source"`
	SourceURL   string     `json:"sourceUrl"`
	Location    string     `json:"location"`
	Categories  []string   `json:"categories"`
	Cost        *string    `json:"cost"`
	Access      *string    `json:"access"`
	Time        *string    `json:"time"`
	ImageURL    *string    `json:"imageUrl"`
	ScrapedAt   time.Time  `json:"scrapedAt"`
	Hash        string     `json:"hash,omitempty"`
	ContentHash string     `json:"contentHash"`
}

// DuplicateMember is the slice of an event needed to pick a dedup winner.
type DuplicateMember struct {
	Hash      string    `json:"hash"`
	Source    string    `json:"source"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

// DuplicateGroup holds every persisted event sharing one content hash.
type DuplicateGroup struct {
	ContentHash string
	Members     []DuplicateMember
}
