package runtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

const (
	repairedTitle = "parse error"
	untitledStep  = "Untitled step"
)

// stepFields mirrors the wire schema for strict decoding of an already parsed object.
type stepFields struct {
	Title      string `mapstructure:"title"`
	Content    string `mapstructure:"content"`
	NextAction string `mapstructure:"next_action"`
}

// ValidateResponse turns raw model output into a StepRecord. It never fails: a response
// that is not a JSON object carrying title, content and next_action comes back as a
// repaired record whose content holds the raw text.
func ValidateResponse(raw string) domain.StepRecord {
	rec, err := parseStep(raw)
	if err != nil {
		return repairRecord(raw)
	}
	return rec
}

func parseStep(raw string) (domain.StepRecord, error) {
	text := unwrapJSONFence(strings.TrimSpace(raw))

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return domain.StepRecord{}, err
	}
	if obj == nil {
		return domain.StepRecord{}, fmt.Errorf("response is not a JSON object")
	}
	for _, key := range []string{domain.KeyTitle, domain.KeyContent, domain.KeyNextAction} {
		if _, ok := obj[key]; !ok {
			return domain.StepRecord{}, fmt.Errorf("missing key %q", key)
		}
	}

	var fields stepFields
	if err := mapstructure.Decode(obj, &fields); err != nil {
		return domain.StepRecord{}, fmt.Errorf("invalid step fields: %w", err)
	}

	action := domain.NextAction(strings.ToLower(strings.TrimSpace(fields.NextAction)))
	if !action.Valid() {
		return domain.StepRecord{}, fmt.Errorf("unknown next_action %q", fields.NextAction)
	}

	title := strings.TrimSpace(fields.Title)
	if title == "" {
		title = untitledStep
	}

	return domain.StepRecord{
		Title:      title,
		Content:    fields.Content,
		NextAction: action,
		Kind:       domain.RecordModel,
	}, nil
}

func repairRecord(raw string) domain.StepRecord {
	return domain.StepRecord{
		Title:      repairedTitle,
		Content:    fmt.Sprintf("Raw response: %s\n\nPlease check and reformat the content above.", raw),
		NextAction: domain.ActionContinue,
		Kind:       domain.RecordRepaired,
	}
}

// unwrapJSONFence strips a ```json ... ``` wrapper around the whole response.
func unwrapJSONFence(text string) string {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	inner := text[3 : len(text)-3]
	nl := strings.IndexByte(inner, '\n')
	if nl < 0 {
		return text
	}
	if tag := strings.TrimSpace(inner[:nl]); tag != "" && !strings.EqualFold(tag, "json") {
		return text
	}
	return strings.TrimSpace(inner[nl+1:])
}
