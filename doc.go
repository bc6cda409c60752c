// Package compass is a multi-agent conversational orchestrator. A supervisor
// node routes user messages to specialist agents, scores response quality,
// tracks handoffs, detects conversation completion, and can suspend a turn
// for human review.
//
// # Quick Start
//
// Build an orchestrator from a state store and an LLM client:
//
//	llm := openaicompat.New(apiKey, model, baseURL)
//	store := sqlite.New("compass.db")
//
//	orc := compass.NewOrchestrator(store, llm,
//		compass.WithResourceSearch(resources.New()),
//		compass.WithLogger(logger),
//	)
//
//	result, err := orc.RunTurn(ctx, userID, convID, "I'm a veteran looking for clean energy work")
//	switch result.Status {
//	case compass.TurnAwaitingUser: // show the latest assistant message
//	case compass.TurnAwaitingHuman: // surface result.Review, later call ResumeTurn
//	case compass.TurnCompleted: // conversation closed
//	}
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [StateStore] — conversation state persistence with append-only merge
//   - [LlmClient] — text completion with tool calling
//   - [Tool] — pluggable capability, may force a handoff via [Command]
//   - [MemoryStore] — best-effort long-term user memory
//   - [ResourceSearch] — best-effort external resource lookup
//   - [AnalyticsSink] — fire-and-forget per-turn analytics
//   - [Tracer] — span creation for turn and node instrumentation
//
// # Included Implementations
//
// Storage: store/sqlite (local, pure Go), store/postgres (pgx).
// Provider: provider/openaicompat (OpenAI-compatible chat APIs).
// Tools: tools/resources (readability-based resource lookup).
// Observability: observer (OTEL traces, metrics, analytics).
//
// See cmd/compass for a complete reference wiring.
package compass
