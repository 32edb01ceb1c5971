package domain

import "time"

// EmissionDiff represents the changes between two emissions of the same chain.
// It is designed to be serialized to JSON for partial updates on the client.
type EmissionDiff struct {
	ChainID string `json:"chain_id"`

	// Offset is the index of the first appended entry in the full transcript.
	Offset int `json:"offset"`

	// Appended contains only the entries added since the previous emission.
	Appended []Entry `json:"appended"`

	// Total is set on the terminal emission.
	Total *time.Duration `json:"total,omitempty"`
}

// Empty reports whether the diff carries nothing new.
func (d *EmissionDiff) Empty() bool {
	return d == nil || (len(d.Appended) == 0 && d.Total == nil)
}

// Diff calculates the difference between prev and next.
// If prev is nil, it returns a diff representing the entire next emission (initial load).
// Transcripts are append-only, so the diff is always a suffix of next.
func Diff(prev, next *Emission) *EmissionDiff {
	if next == nil {
		return nil
	}

	diff := &EmissionDiff{ChainID: next.ChainID}

	offset := 0
	if prev != nil {
		offset = len(prev.Transcript)
		if offset > len(next.Transcript) {
			// A shorter transcript means a different chain; resend everything.
			offset = 0
		}
	}
	diff.Offset = offset
	if offset < len(next.Transcript) {
		diff.Appended = append([]Entry(nil), next.Transcript[offset:]...)
	}

	if next.Total != nil && (prev == nil || prev.Total == nil) {
		total := *next.Total
		diff.Total = &total
	}
	return diff
}
