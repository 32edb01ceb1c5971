package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
)

// TextHandler implements the standard text-based interface.
// It prints only the entries an emission adds to what it already printed for that chain.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	Styler   TitleStyler

	mu      sync.Mutex
	printed map[string]*domain.Emission // ChainID -> last emission shown

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerStyler configures the title styler.
func WithTextHandlerStyler(styler TitleStyler) TextHandlerOption {
	return func(h *TextHandler) {
		h.Styler = styler
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		printed: make(map[string]*domain.Emission),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Output prints the entries added since the previous emission of the same chain.
// The terminal emission also prints the total thinking time, once.
func (h *TextHandler) Output(ctx context.Context, em domain.Emission) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	diff := domain.Diff(h.printed[em.ChainID], &em)
	if diff.Empty() {
		return nil
	}

	for _, entry := range diff.Appended {
		if err := h.writeEntry(entry); err != nil {
			return err
		}
	}

	if diff.Total != nil {
		delete(h.printed, em.ChainID)
		_, err := fmt.Fprintf(h.Writer, "**Total thinking time: %s**\n", formatSeconds(*diff.Total))
		return err
	}

	last := em
	last.Transcript = em.Transcript.Snapshot()
	h.printed[em.ChainID] = &last
	return nil
}

func (h *TextHandler) writeEntry(entry domain.Entry) error {
	title := entry.Title
	if h.Styler != nil {
		title = h.Styler(title, entry.IsFinal())
	} else {
		title = "### " + title
	}

	body := entry.Content
	if h.Renderer != nil {
		if rendered, err := h.Renderer(body); err == nil {
			body = rendered
		}
	}

	_, err := fmt.Fprintf(h.Writer, "%s\n%s\n*Thinking time: %s*\n\n",
		title, strings.TrimSpace(body), formatSeconds(entry.Elapsed))
	return err
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honor context cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			// Backoff for non-fatal errors to prevent CPU spikes on persistent failure
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// Input prompts for a query. Blank lines are skipped; invalid input is reported and re-prompted.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			text := strings.TrimSpace(res.text)
			if text == "" {
				continue
			}

			clean, err := SanitizeInput(text)
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

// SystemOutput prints a bracketed meta-message.
func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return err
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
