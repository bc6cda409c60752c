package compass

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// flakyLLM fails with errs in order, then succeeds.
type flakyLLM struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (f *flakyLLM) Complete(_ context.Context, _ CompletionRequest) (Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return Completion{}, err
	}
	return Completion{Content: "ok"}, nil
}

func TestWithRetryRecoversTransient(t *testing.T) {
	inner := &flakyLLM{errs: []error{&ErrHTTP{Status: 429}, &ErrHTTP{Status: 503}}}
	llm := WithRetry(inner, RetryBaseDelay(time.Millisecond))

	got, err := llm.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "ok" || inner.calls != 3 {
		t.Errorf("content = %q, calls = %d, want ok after 3 calls", got.Content, inner.calls)
	}
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyLLM{errs: []error{
		&ErrHTTP{Status: 503}, &ErrHTTP{Status: 503}, &ErrHTTP{Status: 503},
	}}
	llm := WithRetry(inner, RetryBaseDelay(time.Millisecond), RetryMaxAttempts(2))

	_, err := llm.Complete(context.Background(), CompletionRequest{})
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != 503 {
		t.Fatalf("err = %v, want 503 after exhaustion", err)
	}
	if inner.calls != 2 {
		t.Errorf("calls = %d, want 2", inner.calls)
	}
}

func TestWithRetryPassesThroughNonTransient(t *testing.T) {
	inner := &flakyLLM{errs: []error{&ErrHTTP{Status: 400, Body: "bad request"}}}
	llm := WithRetry(inner, RetryBaseDelay(time.Millisecond))

	_, err := llm.Complete(context.Background(), CompletionRequest{})
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != 400 {
		t.Fatalf("err = %v, want 400 untouched", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestWithRetryHonorsRetryAfterFloor(t *testing.T) {
	err := &ErrHTTP{Status: 429, RetryAfter: time.Hour}
	if got := retryDelay(time.Millisecond, 0, err); got != time.Hour {
		t.Errorf("retryDelay = %v, want Retry-After floor", got)
	}
	if got := retryDelay(time.Second, 0, &ErrHTTP{Status: 429}); got < time.Second {
		t.Errorf("retryDelay = %v, want at least base", got)
	}
}

func TestWithRetryRespectsCancellation(t *testing.T) {
	inner := &flakyLLM{errs: []error{&ErrHTTP{Status: 429}, &ErrHTTP{Status: 429}}}
	llm := WithRetry(inner, RetryBaseDelay(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := llm.Complete(ctx, CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 before backoff cancellation", inner.calls)
	}
}
