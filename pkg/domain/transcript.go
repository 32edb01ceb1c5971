package domain

import (
	"fmt"
	"time"
)

// Entry is one user-visible line of a transcript.
type Entry struct {
	Title   string        `json:"title"`
	Content string        `json:"content"`
	Elapsed time.Duration `json:"elapsed"`
}

// IsFinal reports whether the entry is the terminal final-answer entry.
func (e Entry) IsFinal() bool {
	return e.Title == FinalAnswerTitle
}

// StepTitle formats the display title of the n-th intermediate step.
func StepTitle(n int, title string) string {
	return fmt.Sprintf("Step %d: %s", n, title)
}

// Transcript is the ordered, append-only record of a chain.
type Transcript []Entry

// Snapshot returns a copy that later appends cannot affect.
func (t Transcript) Snapshot() Transcript {
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Last returns the last entry, if any.
func (t Transcript) Last() (Entry, bool) {
	if len(t) == 0 {
		return Entry{}, false
	}
	return t[len(t)-1], true
}

// Steps counts the intermediate entries.
func (t Transcript) Steps() int {
	n := 0
	for _, e := range t {
		if !e.IsFinal() {
			n++
		}
	}
	return n
}

// Emission is one incremental delivery to the consumer.
// Total is nil on every partial emission and set exactly once, on the terminal one.
type Emission struct {
	ChainID    string         `json:"chain_id,omitempty"`
	Transcript Transcript     `json:"transcript"`
	Total      *time.Duration `json:"total,omitempty"`
}

// Done reports whether this is the terminal emission of a chain.
func (e Emission) Done() bool {
	return e.Total != nil
}
