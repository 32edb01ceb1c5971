package domain

import "encoding/json"

// NextAction is the model's decision after a step.
type NextAction string

const (
	ActionContinue    NextAction = "continue"
	ActionFinalAnswer NextAction = "final_answer"
)

// Valid reports whether a is one of the known actions.
func (a NextAction) Valid() bool {
	return a == ActionContinue || a == ActionFinalAnswer
}

// RecordKind tells a well-formed model record apart from the records synthesized
// when a response could not be used.
type RecordKind int

const (
	// RecordModel is a record decoded verbatim from the model response.
	RecordModel RecordKind = iota
	// RecordRepaired is synthesized from a response that failed validation.
	// Its content carries the raw response text.
	RecordRepaired
	// RecordTransportFailure is synthesized after the retry budget was exhausted.
	RecordTransportFailure
)

func (k RecordKind) String() string {
	switch k {
	case RecordModel:
		return "model"
	case RecordRepaired:
		return "repaired"
	case RecordTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// StepRecord is one step of a chain. All three fields are always populated.
type StepRecord struct {
	Title      string
	Content    string
	NextAction NextAction
	Kind       RecordKind
}

// IsFinal reports whether the model declared it is ready to answer.
func (r StepRecord) IsFinal() bool {
	return r.NextAction == ActionFinalAnswer
}

// wireRecord is the exact JSON shape exchanged with the model.
type wireRecord struct {
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	NextAction NextAction `json:"next_action"`
}

// MarshalJSON serializes the record in the step wire schema, so it can be fed
// back to the model as its own prior output.
func (r StepRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{Title: r.Title, Content: r.Content, NextAction: r.NextAction})
}

// UnmarshalJSON decodes the wire schema. It does not validate; see the runtime validator.
func (r *StepRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Title, r.Content, r.NextAction = w.Title, w.Content, w.NextAction
	r.Kind = RecordModel
	return nil
}
