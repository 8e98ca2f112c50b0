package nlp

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	calls    int
}

func (f *flakyClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient")
	}
	return &Response{Content: "ok"}, nil
}

func (f *flakyClient) ChatStream(ctx context.Context, messages []Message, fn func(string) error) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	return fn("ok")
}

func (f *flakyClient) Close() error { return nil }

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryClientRecovers(t *testing.T) {
	flaky := &flakyClient{failures: 2}
	r := NewRetryClient(flaky, fastRetryConfig())

	resp, err := r.Chat(context.Background(), []Message{NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}
	if flaky.calls != 3 {
		t.Errorf("calls = %d, want 3", flaky.calls)
	}
}

func TestRetryClientExhausts(t *testing.T) {
	flaky := &flakyClient{failures: 10}
	r := NewRetryClient(flaky, fastRetryConfig())

	_, err := r.Chat(context.Background(), []Message{NewUserMessage("hi")})
	if err == nil {
		t.Fatal("want error after exhausting retries")
	}
	if flaky.calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + 3 retries)", flaky.calls)
	}
}

func TestRetryClientHonorsCancellation(t *testing.T) {
	flaky := &flakyClient{failures: 10}
	r := NewRetryClient(flaky, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      time.Hour,
		MaxDelay:          time.Hour,
		BackoffMultiplier: 2.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Chat(ctx, []Message{NewUserMessage("hi")})
	if err == nil {
		t.Fatal("want error")
	}
	if time.Since(start) > time.Second {
		t.Error("retry did not stop on context cancellation")
	}
}

func TestCalculateDelayGrowth(t *testing.T) {
	r := NewRetryClient(&flakyClient{}, &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	})
	if d := r.calculateDelay(1); d != time.Second {
		t.Errorf("delay(1) = %v", d)
	}
	if d := r.calculateDelay(2); d != 2*time.Second {
		t.Errorf("delay(2) = %v", d)
	}
	if d := r.calculateDelay(10); d != 10*time.Second {
		t.Errorf("delay(10) = %v, want capped", d)
	}
}
