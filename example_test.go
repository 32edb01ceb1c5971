package stepwise_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// ExampleEngine_Stream shows a chain driven by an in-process transport.
// Any ports.ChatCompleter can stand in for the HTTP client, which is useful for tests and demos.
func ExampleEngine_Stream() {
	replies := []string{
		`{"title":"Decompose","content":"We need 17 * 3.","next_action":"continue"}`,
		`{"title":"Multiply","content":"17 * 3 = 51","next_action":"final_answer"}`,
		`{"title":"Answer","content":"51","next_action":"final_answer"}`,
	}
	n := 0
	transport := ports.ChatCompleterFunc(func(ctx context.Context, history domain.Conversation, maxTokens int) (string, error) {
		r := replies[n]
		n++
		return r, nil
	})

	eng, err := stepwise.New(stepwise.WithTransport(transport))
	if err != nil {
		log.Fatal(err)
	}

	for em := range eng.Stream(context.Background(), "What is 17 * 3?") {
		last, _ := em.Transcript.Last()
		fmt.Println(last.Title)
		if em.Done() {
			// A step that declares final_answer is not emitted on its own.
			fmt.Println(em.Transcript[1].Title)
			fmt.Println(last.Content)
		}
	}

	// Output:
	// Step 1: Decompose
	// Final Answer
	// Step 2: Multiply
	// 51
}
