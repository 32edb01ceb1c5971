/*
Package stepwise drives a language model through an explicit chain of reasoning steps and
streams the growing transcript to the caller.

# Concept

Each step is one chat-completion request whose reply must be a JSON object with a title, a
content body and a next action ("continue" or "final_answer"). The engine feeds every accepted
step back into the conversation, stops on a final answer, on a repeated step or at the step
ceiling, and then asks once more for the final answer. Transport failures and malformed replies
never abort a chain: they become visible entries of the transcript.

The engine holds configuration only, so a single Engine can run many chains concurrently.
Storage, HTTP, MCP and presentation live in adapters around it.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"
		"os"

		"github.com/aretw0/stepwise"
		"github.com/aretw0/stepwise/pkg/adapters/openai"
	)

	func main() {
		cfg := openai.DefaultConfig()
		cfg.APIKey = os.Getenv("DEEPSEEK_API_KEY")

		eng, err := stepwise.New(stepwise.WithTransportConfig(cfg))
		if err != nil {
			log.Fatal(err)
		}

		for em := range eng.Stream(context.Background(), "How many r's are in strawberry?") {
			last, _ := em.Transcript.Last()
			fmt.Println(last.Title)
			if em.Done() {
				fmt.Println(last.Content, "in", *em.Total)
			}
		}
	}
*/
package stepwise
