package model

import "time"

// Stats aggregates counts over one aggregated tender collection.
type Stats struct {
	Total        int            `json:"total"`
	Urgency      map[string]int `json:"urgency"`
	Value        map[string]int `json:"value"`
	SME          int            `json:"sme"`
	Innovative   int            `json:"innovative"`
	Framework    int            `json:"framework"`
	MultiLot     int            `json:"multi_lot"`
	WithEmail    int            `json:"with_email"`
	WithBarriers int            `json:"with_barriers"`

	RecordsIn      int `json:"records_in"`
	RecordsSkipped int `json:"records_skipped"`
	ExpiredRemoved int `json:"expired_removed"`
}

// RunResult is one complete aggregation run as persisted and served by the API.
type RunResult struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Query       string    `json:"query,omitempty"`
	Available   int       `json:"available"`
	Fields      int       `json:"fields"`
	Stats       Stats     `json:"stats"`
	Tenders     []Tender  `json:"tenders"`
}
