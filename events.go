package compass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// TurnEvent is a state snapshot emitted after every node transition.
// Seq increases monotonically within a turn, starting at 1.
type TurnEvent struct {
	Node  string `json:"node"`
	Seq   int    `json:"seq"`
	State State  `json:"state"`
}

// EventSink receives turn events. Implementations must not block; slow
// consumers should buffer or drop.
type EventSink interface {
	Emit(ctx context.Context, ev TurnEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev TurnEvent)

func (f EventSinkFunc) Emit(ctx context.Context, ev TurnEvent) { f(ctx, ev) }

// ChannelSink sends events to a channel, dropping when the buffer is full.
type ChannelSink struct {
	C chan TurnEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan TurnEvent, buffer)}
}

func (s *ChannelSink) Emit(_ context.Context, ev TurnEvent) {
	select {
	case s.C <- ev:
	default:
	}
}

// emitEvent forwards to the sink when one is configured.
func emitEvent(ctx context.Context, sink EventSink, ev TurnEvent) {
	if sink != nil {
		sink.Emit(ctx, ev)
	}
}

// WriteSSEEvent frames a turn event as a server-sent event on w,
// flushing when the writer supports it. Framing only; routing and
// authentication are the caller's concern.
func WriteSSEEvent(w io.Writer, ev TurnEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse: encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
