// Package model contains domain models passed between layers.
package model

import "time"

// RawEntry is one well-formed source line before ranking.
type RawEntry struct {
	Team           string
	SubmissionDate string // opaque, passed through as printed by the source
	Score          float64
}

// Entry is a ranked standings row.
type Entry struct {
	Rank           int     `json:"rank"`
	Team           string  `json:"team"`
	SubmissionDate string  `json:"submission_date"`
	Score          float64 `json:"score"`
}

// Record is the committed snapshot of one competition's standings.
// A committed Record is never modified; commits replace it wholesale.
type Record struct {
	Competition string
	Entries     []Entry
	LastUpdated time.Time
	RowLimit    int
}

// Clone returns a copy whose Entries can be modified freely.
func (r Record) Clone() Record {
	out := r
	if r.Entries != nil {
		out.Entries = make([]Entry, len(r.Entries))
		copy(out.Entries, r.Entries)
	}
	return out
}
