package models

import "time"

// Source run statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// SourceStatus is the document stored per source slug.
type SourceStatus struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	Description   string    `json:"description,omitempty"`
	Platform      bool      `json:"platform"`
	LastScrapedAt time.Time `json:"lastScrapedAt"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Events        int       `json:"events"`
}

// SourceReport summarises one source's pipeline inside a run.
type SourceReport struct {
	Status   string `json:"status"`
	Events   int    `json:"events"`
	Rejected int    `json:"rejected,omitempty"`
	Removed  int64  `json:"removed,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunReport is returned by the trigger endpoint and published after each run.
type RunReport struct {
	RunID               string                  `json:"runId"`
	Batch               string                  `json:"batch,omitempty"`
	StartedAt           time.Time               `json:"startedAt"`
	FinishedAt          time.Time               `json:"finishedAt"`
	Sources             int                     `json:"sources"`
	Results             map[string]SourceReport `json:"results"`
	RetentionDeleted    int64                   `json:"retentionDeleted"`
	UnregisteredDeleted int64                   `json:"unregisteredDeleted"`
	DuplicatesDeleted   int64                   `json:"duplicatesDeleted"`
	Errors              []string                `json:"errors,omitempty"`
}
