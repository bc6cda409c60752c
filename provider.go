package compass

import "context"

// LlmClient is the text-completion-with-tools contract every provider
// implements. Implementations live under provider/.
//
// Complete returns the assistant's text and any tool-call requests.
// Deterministic sampling is not required; the quality analyzer is the
// only arbiter of response adequacy.
type LlmClient interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// LlmFunc adapts a plain function to LlmClient. Used by tests and small
// wrappers.
type LlmFunc func(ctx context.Context, req CompletionRequest) (Completion, error)

func (f LlmFunc) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return f(ctx, req)
}
