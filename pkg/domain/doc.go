/*
Package domain contains the core domain models of the Stepwise reasoning-chain engine.

It defines the records exchanged with the model, the user-visible transcript and the
state of a running chain. This package is kept pure and free of external dependencies
like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Message: One entry of the conversation history sent to the model on every request.
  - StepRecord: One structured step reported by the model (or a fallback synthesized for it).
  - Transcript: The ordered, user-visible list of accepted steps plus the final answer.
  - ChainState: Step count, cumulative elapsed time and termination status of a chain.
  - Emission: One incremental delivery of the transcript to a consumer.
*/
package domain
