package nlp

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default 3).
	MaxRetries int
	// InitialDelay is the delay before the first retry (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries (default 60s).
	MaxDelay time.Duration
	// BackoffMultiplier is the exponential backoff factor (default 2).
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient wraps a Client and retries failed calls with
// exponential backoff.
type RetryClient struct {
	client Client
	config *RetryConfig
}

// NewRetryClient creates a retrying wrapper around client.
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 60 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	return &RetryClient{client: client, config: config}
}

func (r *RetryClient) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	return time.Duration(delay)
}

func (r *RetryClient) run(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.calculateDelay(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}
		if lastErr = call(); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", r.config.MaxRetries+1, lastErr)
}

// Chat implements Client with retry logic.
func (r *RetryClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	var resp *Response
	err := r.run(ctx, func() error {
		var callErr error
		resp, callErr = r.client.Chat(ctx, messages)
		return callErr
	})
	return resp, err
}

// ChatStream implements Client. Streams are not resumed mid-flight;
// a failed stream is restarted from the beginning on retry, so fn may
// observe fragments from an aborted earlier attempt only if it was
// already invoked before the failure.
func (r *RetryClient) ChatStream(ctx context.Context, messages []Message, fn func(fragment string) error) error {
	return r.run(ctx, func() error {
		return r.client.ChatStream(ctx, messages, fn)
	})
}

// Close closes the wrapped client.
func (r *RetryClient) Close() error {
	return r.client.Close()
}
