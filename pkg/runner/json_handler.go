package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Every emission is written as one line; queries are read one per line, either as a JSON
// string or as raw text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder

	mu sync.Mutex
}

// emissionLine is the wire form of one emission.
type emissionLine struct {
	Type         string      `json:"type"`
	ChainID      string      `json:"chain_id,omitempty"`
	Transcript   []entryLine `json:"transcript,omitempty"`
	Done         bool        `json:"done,omitempty"`
	TotalSeconds *float64    `json:"total_seconds,omitempty"`
	Message      string      `json:"message,omitempty"`
}

type entryLine struct {
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, em domain.Emission) error {
	line := emissionLine{
		Type:       "emission",
		ChainID:    em.ChainID,
		Transcript: make([]entryLine, len(em.Transcript)),
		Done:       em.Done(),
	}
	for i, e := range em.Transcript {
		line.Transcript[i] = entryLine{Title: e.Title, Content: e.Content, ElapsedSeconds: seconds(e.Elapsed)}
	}
	if em.Total != nil {
		total := seconds(*em.Total)
		line.TotalSeconds = &total
	}
	return h.encode(line)
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	for {
		text, err := h.Reader.ReadString('\n')
		text = strings.TrimSpace(text)
		if text == "" {
			if err != nil {
				return "", err
			}
			continue
		}

		// Try to unquote if it's a JSON string
		var val string
		if jsonErr := json.Unmarshal([]byte(text), &val); jsonErr == nil {
			text = val
		}
		return SanitizeInput(text)
	}
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.encode(emissionLine{Type: "system", Message: msg})
}

func (h *JSONHandler) encode(v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(v)
}

func seconds(d time.Duration) float64 {
	return float64(d.Round(time.Millisecond)) / float64(time.Second)
}
