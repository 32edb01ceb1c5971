/*
Package ports defines the driven ports (interfaces) for the Stepwise engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various model providers, snapshot stores and fan-out transports.

# Key Interfaces

  - ChatCompleter: The Transport Client contract (history + token budget in, raw text out).
  - ChainStore: Keeps the latest snapshot of each chain in memory.
  - Broadcaster: Fans emissions out to subscribers (SSE clients, other replicas).
*/
package ports
