package domain

import "time"

// EmittedSeries describes one output table after it has been written. It is
// the payload of downstream notifications.
type EmittedSeries struct {
	Issue     time.Time `json:"issue"`
	Member    int       `json:"member"`
	Noise     int       `json:"noise"`
	File      string    `json:"file"`
	Rows      int       `json:"rows"`
	NullCells int       `json:"null_cells"`
	EmittedAt time.Time `json:"emitted_at"`
}

// NewEmittedSeries summarizes s, stamped with the current time.
func NewEmittedSeries(s OutputSeries) EmittedSeries {
	return EmittedSeries{
		Issue:     s.Issue,
		Member:    s.Key.Member,
		Noise:     s.Key.Noise,
		File:      s.FileName(),
		Rows:      len(s.Rows),
		NullCells: s.NullCells(),
		EmittedAt: clock.Now().UTC(),
	}
}
