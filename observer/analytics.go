package observer

import (
	"context"

	compass "github.com/nevindra/compass"

	"go.opentelemetry.io/otel/metric"
)

// Analytics implements compass.AnalyticsSink on top of OTEL metrics: each
// turn payload becomes counter increments and a quality histogram sample.
type Analytics struct {
	inst *Instruments
}

var _ compass.AnalyticsSink = (*Analytics)(nil)

// NewAnalytics creates an OTEL-backed analytics sink.
func NewAnalytics(inst *Instruments) *Analytics {
	return &Analytics{inst: inst}
}

// Log records one turn's payload as metrics. Fire and forget; metric
// export errors surface through the OTEL SDK, never here. Handoff and
// recovery counters consume the per-turn deltas, not the cumulative
// state counters.
func (a *Analytics) Log(ctx context.Context, sessionID string, payload map[string]any) {
	status, _ := payload["status"].(string)
	specialist, _ := payload["specialist"].(string)
	attrs := metric.WithAttributes(
		AttrTurnStatus.String(status),
		AttrSpecialist.String(specialist),
	)

	a.inst.Turns.Add(ctx, 1, attrs)
	if n, ok := payload["handoffs_this_turn"].(int); ok && n > 0 {
		a.inst.Handoffs.Add(ctx, int64(n), attrs)
	}
	if n, ok := payload["errors_this_turn"].(int); ok && n > 0 {
		a.inst.Recoveries.Add(ctx, int64(n), attrs)
	}
	if status == "awaiting_human" {
		a.inst.Interrupts.Add(ctx, 1, attrs)
	}
	if overall, ok := payload["quality_overall"].(float64); ok {
		a.inst.QualityOverall.Record(ctx, overall, attrs)
	}
}
