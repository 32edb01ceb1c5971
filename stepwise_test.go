package stepwise_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/testutils"
	"github.com/aretw0/stepwise/pkg/adapters/openai"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresTransport(t *testing.T) {
	_, err := stepwise.New()
	assert.ErrorIs(t, err, domain.ErrMissingAPIKey)

	_, err = stepwise.New(stepwise.WithTransportConfig(openai.DefaultConfig()))
	assert.ErrorIs(t, err, domain.ErrMissingAPIKey)

	cfg := openai.DefaultConfig()
	cfg.APIKey = "sk-test"
	eng, err := stepwise.New(stepwise.WithTransportConfig(cfg))
	require.NoError(t, err)
	assert.NotNil(t, eng)
}

func TestEngine_Ask(t *testing.T) {
	var ended domain.ChainStatus
	eng, err := stepwise.New(
		stepwise.WithTransport(testutils.Scripted(
			`{"title":"add","content":"2+2=4","next_action":"final_answer"}`,
			`{"title":"answer","content":"4","next_action":"final_answer"}`,
		)),
		stepwise.WithLifecycleHooks(domain.LifecycleHooks{
			OnChainEnd: func(ctx context.Context, e *domain.ChainEvent) { ended = e.Status },
		}),
	)
	require.NoError(t, err)

	final, err := eng.Ask(context.Background(), "2+2?")
	require.NoError(t, err)
	require.True(t, final.Done())
	assert.NotEmpty(t, final.ChainID)
	require.Len(t, final.Transcript, 2)
	assert.Equal(t, "Step 1: add", final.Transcript[0].Title)
	assert.Equal(t, "4", final.Transcript[1].Content)
	assert.Equal(t, domain.StatusTerminatedFinal, ended)
}

func TestEngine_AskEmptyQuery(t *testing.T) {
	eng, err := stepwise.New(stepwise.WithTransport(testutils.Scripted("{}")))
	require.NoError(t, err)

	_, err = eng.Ask(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestEngine_StreamWithOptions(t *testing.T) {
	calls := 0
	transport := ports.ChatCompleterFunc(func(ctx context.Context, history domain.Conversation, maxTokens int) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("flaky")
		}
		return `{"title":"t","content":"c` + string(rune('a'+calls)) + `","next_action":"continue"}`, nil
	})
	eng, err := stepwise.New(
		stepwise.WithTransport(transport),
		stepwise.WithStepCeiling(2),
		stepwise.WithRetry(2, time.Millisecond),
		stepwise.WithMaxTokens(100, 200),
	)
	require.NoError(t, err)

	var emissions []domain.Emission
	for em := range eng.Stream(context.Background(), "q") {
		emissions = append(emissions, em)
	}

	require.Len(t, emissions, 2)
	final := emissions[1]
	require.True(t, final.Done())
	assert.Equal(t, 2, final.Transcript.Steps())
	assert.Equal(t, emissions[0].ChainID, final.ChainID)
	assert.Equal(t, 4, calls, "one retried step, one step and the final request")
}
