package domain

import "time"

// ChainSnapshot is the latest known view of a chain, as kept by the session layer.
type ChainSnapshot struct {
	ID        string      `json:"id"`
	Query     string      `json:"query"`
	Status    ChainStatus `json:"status"`
	Emission  Emission    `json:"emission"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Copy returns a snapshot whose transcript does not alias the receiver's.
func (s *ChainSnapshot) Copy() *ChainSnapshot {
	out := *s
	out.Emission.Transcript = s.Emission.Transcript.Snapshot()
	if s.Emission.Total != nil {
		total := *s.Emission.Total
		out.Emission.Total = &total
	}
	return &out
}
