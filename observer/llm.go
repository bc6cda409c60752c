package observer

import (
	"context"
	"time"

	compass "github.com/nevindra/compass"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentedClient wraps a compass.LlmClient with tracing and metrics.
type instrumentedClient struct {
	inner compass.LlmClient
	name  string
	inst  *Instruments
}

// WrapLlmClient returns an instrumented LlmClient. Every Complete call
// gets a span plus request, duration, and token-usage metrics tagged with
// the given provider name.
func WrapLlmClient(c compass.LlmClient, name string, inst *Instruments) compass.LlmClient {
	return &instrumentedClient{inner: c, name: name, inst: inst}
}

func (w *instrumentedClient) Complete(ctx context.Context, req compass.CompletionRequest) (compass.Completion, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "llm.complete",
		trace.WithAttributes(AttrLLMProvider.String(w.name)))
	defer span.End()

	start := time.Now()
	resp, err := w.inner.Complete(ctx, req)
	elapsed := float64(time.Since(start).Milliseconds())

	attrs := metric.WithAttributes(AttrLLMProvider.String(w.name))
	w.inst.LLMRequests.Add(ctx, 1, attrs)
	w.inst.LLMDuration.Record(ctx, elapsed, attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	span.SetAttributes(
		AttrTokensInput.Int(resp.Usage.InputTokens),
		AttrTokensOutput.Int(resp.Usage.OutputTokens),
		attribute.Int("llm.tool_calls", len(resp.ToolCalls)),
	)
	w.inst.TokenUsage.Add(ctx, int64(resp.Usage.InputTokens),
		metric.WithAttributes(AttrLLMProvider.String(w.name), attribute.String("direction", "input")))
	w.inst.TokenUsage.Add(ctx, int64(resp.Usage.OutputTokens),
		metric.WithAttributes(AttrLLMProvider.String(w.name), attribute.String("direction", "output")))
	return resp, nil
}

var _ compass.LlmClient = (*instrumentedClient)(nil)
