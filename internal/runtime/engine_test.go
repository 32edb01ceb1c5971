package runtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/stepwise/internal/runtime"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// reply is one scripted transport outcome.
type reply struct {
	text string
	err  error
}

// scriptedTransport replays replies in order and repeats the last one when exhausted.
type scriptedTransport struct {
	mu        sync.Mutex
	replies   []reply
	next      func(call int) reply
	calls     int
	histories []domain.Conversation
	tokens    []int
}

func (s *scriptedTransport) ChatComplete(ctx context.Context, history domain.Conversation, maxTokens int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = append(s.histories, history)
	s.tokens = append(s.tokens, maxTokens)
	call := s.calls
	s.calls++

	var r reply
	switch {
	case s.next != nil:
		r = s.next(call)
	case call < len(s.replies):
		r = s.replies[call]
	default:
		r = s.replies[len(s.replies)-1]
	}
	return r.text, r.err
}

func (s *scriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func step(title, content string, action domain.NextAction) reply {
	data, _ := json.Marshal(map[string]string{
		"title":       title,
		"content":     content,
		"next_action": string(action),
	})
	return reply{text: string(data)}
}

// collect runs a chain and returns every emission.
func collect(t *testing.T, engine *runtime.Engine, query string) ([]domain.Emission, *domain.ChainState) {
	t.Helper()
	var emissions []domain.Emission
	state, err := engine.Run(context.Background(), "chain-test", query, func(em domain.Emission) error {
		emissions = append(emissions, em)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, emissions)
	return emissions, state
}

func TestEngine_FinalAnswerOnFirstStep(t *testing.T) {
	transport := &scriptedTransport{replies: []reply{
		step("compute", "2+2=4", domain.ActionFinalAnswer),
		step("answer", "The answer is 4.", domain.ActionFinalAnswer),
	}}
	engine := runtime.NewEngine(transport)

	emissions, state := collect(t, engine, "2+2?")

	require.Len(t, emissions, 1, "no partial emission when the first step is final")
	final := emissions[0]
	require.True(t, final.Done())
	require.Len(t, final.Transcript, 2)

	assert.Equal(t, "Step 1: compute", final.Transcript[0].Title)
	assert.Equal(t, "2+2=4", final.Transcript[0].Content)
	assert.Equal(t, domain.FinalAnswerTitle, final.Transcript[1].Title)
	assert.Equal(t, "The answer is 4.", final.Transcript[1].Content)
	assert.Equal(t, final.Transcript[0].Elapsed+final.Transcript[1].Elapsed, *final.Total)

	assert.Equal(t, domain.StatusTerminatedFinal, state.Status)
	assert.Equal(t, 2, transport.Calls())
	assert.Equal(t, []int{runtime.DefaultMaxTokens, runtime.DefaultFinalMaxTokens}, transport.tokens)
}

func TestEngine_ConversationSeedAndFeedback(t *testing.T) {
	transport := &scriptedTransport{replies: []reply{
		step("vars", "use snake_case", domain.ActionFinalAnswer),
		step("answer", "done", domain.ActionFinalAnswer),
	}}
	engine := runtime.NewEngine(transport)

	emissions, _ := collect(t, engine, "naming?")
	final := emissions[len(emissions)-1]
	assert.Equal(t, `use snake\_case`, final.Transcript[0].Content, "display text is escaped")

	first := transport.histories[0]
	require.Len(t, first, 3)
	assert.Equal(t, domain.RoleSystem, first[0].Role)
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "naming?"}, first[1])
	assert.Equal(t, domain.RoleAssistant, first[2].Role)

	second := transport.histories[1]
	require.Len(t, second, 5)
	assert.Equal(t, domain.RoleAssistant, second[3].Role)
	assert.JSONEq(t, `{"title":"vars","content":"use snake_case","next_action":"final_answer"}`, second[3].Content,
		"the model sees its raw record, not the display text")
	assert.Equal(t, domain.RoleUser, second[4].Role)
}

func TestEngine_DuplicateStepTerminates(t *testing.T) {
	transport := &scriptedTransport{replies: []reply{
		step("first", "same thought", domain.ActionContinue),
		step("second look", "same thought", domain.ActionContinue),
		step("answer", "42", domain.ActionFinalAnswer),
	}}
	engine := runtime.NewEngine(transport)

	emissions, state := collect(t, engine, "loop?")

	final := emissions[len(emissions)-1]
	require.Len(t, final.Transcript, 2)
	assert.Equal(t, "Step 1: first", final.Transcript[0].Title)
	assert.Equal(t, domain.FinalAnswerTitle, final.Transcript[1].Title)
	assert.Equal(t, "42", final.Transcript[1].Content)

	assert.Equal(t, domain.StatusTerminatedDuplicate, state.Status)
	assert.Equal(t, 3, transport.Calls())
	assert.Len(t, emissions, 2, "one partial emission then the terminal one")
	assert.Nil(t, emissions[0].Total)
}

func TestEngine_StepCeiling(t *testing.T) {
	transport := &scriptedTransport{next: func(call int) reply {
		return step(fmt.Sprintf("step %d", call+1), fmt.Sprintf("thought %d", call+1), domain.ActionContinue)
	}}
	engine := runtime.NewEngine(transport)

	emissions, state := collect(t, engine, "never ends")

	final := emissions[len(emissions)-1]
	assert.Equal(t, runtime.DefaultStepCeiling, final.Transcript.Steps())
	last, _ := final.Transcript.Last()
	assert.True(t, last.IsFinal())

	assert.Equal(t, domain.StatusTerminatedMaxSteps, state.Status)
	assert.Equal(t, runtime.DefaultStepCeiling+1, transport.Calls(), "ceiling + the final request")
	assert.Len(t, emissions, runtime.DefaultStepCeiling, "nine partial emissions and the terminal one")

	for i, em := range emissions[:len(emissions)-1] {
		assert.Nil(t, em.Total, "partial emission %d must not carry a total", i)
		assert.Len(t, em.Transcript, i+1)
	}
}

func TestEngine_CustomStepCeiling(t *testing.T) {
	transport := &scriptedTransport{next: func(call int) reply {
		return step("s", fmt.Sprintf("c%d", call), domain.ActionContinue)
	}}
	engine := runtime.NewEngine(transport, runtime.WithStepCeiling(2))

	emissions, _ := collect(t, engine, "q")
	assert.Equal(t, 2, emissions[len(emissions)-1].Transcript.Steps())
}

func TestEngine_RetryExhaustion(t *testing.T) {
	delay := 5 * time.Millisecond
	transport := &scriptedTransport{replies: []reply{
		{err: &domain.TransportError{Message: "connection refused"}},
	}}

	var failures int
	var mu sync.Mutex
	hooks := domain.LifecycleHooks{
		OnAttemptFailed: func(ctx context.Context, e *domain.AttemptEvent) {
			mu.Lock()
			failures++
			mu.Unlock()
		},
	}
	engine := runtime.NewEngine(transport, runtime.WithRetryDelay(delay), runtime.WithLifecycleHooks(hooks))

	emissions, state := collect(t, engine, "offline?")

	final := emissions[len(emissions)-1]
	require.True(t, final.Done())
	require.Len(t, final.Transcript, 2)

	assert.Equal(t, "Step 1: Error", final.Transcript[0].Title)
	assert.Contains(t, final.Transcript[0].Content, "after 3 attempts")
	assert.Contains(t, final.Transcript[0].Content, "connection refused")
	assert.Equal(t, domain.FinalAnswerTitle, final.Transcript[1].Title)
	assert.Contains(t, final.Transcript[1].Content, "final answer after 3 attempts")

	assert.GreaterOrEqual(t, *final.Total, 3*delay)
	assert.Equal(t, domain.StatusTerminatedDuplicate, state.Status, "the repeated error is treated as stagnation")
	assert.Equal(t, 9, transport.Calls())
	assert.Equal(t, 9, failures)
}

func TestEngine_MalformedResponseIsVisible(t *testing.T) {
	transport := &scriptedTransport{replies: []reply{
		{text: "Sure! The answer is probably 4"},
		step("check", "2+2=4", domain.ActionFinalAnswer),
		step("answer", "4", domain.ActionFinalAnswer),
	}}
	var malformed int
	engine := runtime.NewEngine(transport, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStepMalformed: func(ctx context.Context, e *domain.StepEvent) { malformed++ },
	}))

	emissions, state := collect(t, engine, "2+2?")

	final := emissions[len(emissions)-1]
	require.Len(t, final.Transcript, 3)
	assert.Equal(t, "Step 1: parse error", final.Transcript[0].Title)
	assert.Contains(t, final.Transcript[0].Content, "Sure! The answer is probably 4")
	assert.Equal(t, "Step 2: check", final.Transcript[1].Title)
	assert.Equal(t, domain.StatusTerminatedFinal, state.Status)
	assert.Equal(t, 1, malformed)
}

func TestEngine_TransportRecovers(t *testing.T) {
	transport := &scriptedTransport{replies: []reply{
		{err: errors.New("timeout")},
		step("compute", "2+2=4", domain.ActionFinalAnswer),
		step("answer", "4", domain.ActionFinalAnswer),
	}}
	engine := runtime.NewEngine(transport, runtime.WithRetryDelay(time.Millisecond))

	emissions, _ := collect(t, engine, "2+2?")
	final := emissions[len(emissions)-1]
	assert.Equal(t, "Step 1: compute", final.Transcript[0].Title)
	assert.Equal(t, 3, transport.Calls())
}

func TestEngine_EmptyQuery(t *testing.T) {
	engine := runtime.NewEngine(&scriptedTransport{replies: []reply{{text: "{}"}}})
	_, err := engine.Run(context.Background(), "", "   ", func(domain.Emission) error { return nil })
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestEngine_EmitErrorAbandons(t *testing.T) {
	transport := &scriptedTransport{next: func(call int) reply {
		return step("s", fmt.Sprintf("c%d", call), domain.ActionContinue)
	}}
	var ended *domain.ChainEvent
	engine := runtime.NewEngine(transport, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnChainEnd: func(ctx context.Context, e *domain.ChainEvent) { ended = e },
	}))
	stop := errors.New("consumer gone")

	state, err := engine.Run(context.Background(), "c", "q", func(domain.Emission) error { return stop })

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, domain.StatusAbandoned, state.Status)
	assert.Equal(t, 1, transport.Calls(), "no request after the consumer left")
	require.NotNil(t, ended)
	assert.Equal(t, domain.StatusAbandoned, ended.Status)
}

func TestEngine_StreamCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	transport := &scriptedTransport{next: func(call int) reply {
		return step("s", fmt.Sprintf("c%d", call), domain.ActionContinue)
	}}
	engine := runtime.NewEngine(transport)

	ctx, cancel := context.WithCancel(context.Background())
	stream := engine.Stream(ctx, "c", "q")

	first, ok := <-stream
	require.True(t, ok)
	assert.Len(t, first.Transcript, 1)
	cancel()

	for range stream {
	}
	assert.LessOrEqual(t, transport.Calls(), 2)
}

func TestEngine_StreamDelivers(t *testing.T) {
	defer goleak.VerifyNone(t)

	transport := &scriptedTransport{replies: []reply{
		step("a", "one", domain.ActionContinue),
		step("b", "two", domain.ActionFinalAnswer),
		step("answer", "done", domain.ActionFinalAnswer),
	}}
	engine := runtime.NewEngine(transport)

	var got []domain.Emission
	for em := range engine.Stream(context.Background(), "c", "q") {
		got = append(got, em)
	}

	require.Len(t, got, 2)
	assert.False(t, got[0].Done())
	assert.True(t, got[1].Done())
	assert.Equal(t, "c", got[1].ChainID)
	assert.Len(t, got[1].Transcript, 3)
}

func TestEngine_ConcurrentChainsAreIndependent(t *testing.T) {
	// Each chain echoes its own query; nothing may leak between them.
	engine := runtime.NewEngine(echoTransport{})

	var wg sync.WaitGroup
	results := make([]domain.Emission, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			query := fmt.Sprintf("query-%d", i)
			_, err := engine.Run(context.Background(), query, query, func(em domain.Emission) error {
				results[i] = em
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i, em := range results {
		query := fmt.Sprintf("query-%d", i)
		require.True(t, em.Done())
		assert.Equal(t, query, em.ChainID)
		for _, entry := range em.Transcript {
			assert.True(t, strings.Contains(entry.Content, query), "entry %q leaked from another chain", entry.Content)
		}
	}
}

// echoTransport answers with the chain's own query so cross-talk is detectable.
type echoTransport struct{}

func (echoTransport) ChatComplete(ctx context.Context, history domain.Conversation, maxTokens int) (string, error) {
	query := history[1].Content
	steps := 0
	for _, m := range history[3:] {
		if m.Role == domain.RoleAssistant {
			steps++
		}
	}
	action := domain.ActionContinue
	if steps >= 2 {
		action = domain.ActionFinalAnswer
	}
	r := step("echo", fmt.Sprintf("%s #%d", query, steps), action)
	return r.text, nil
}
