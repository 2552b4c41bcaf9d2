// Package retry wraps avast/retry-go behind a small interface with functional
// options. The transport uses it to poll for conditions that become true
// later, such as a transaction receipt appearing after inclusion.
//
// Basic usage:
//
//	r := retry.New(retry.WithAttempts(0), retry.WithFixedDelay(time.Second))
//	err := r.Execute(ctx, func() error {
//	    return checkReceipt()
//	})
package retry

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// Retry executes an operation until it succeeds, the attempts run out or the
// context is done.
type Retry interface {
	Execute(ctx context.Context, operation func() error) error
}

type config struct {
	attempts    uint          // 0 retries until the context is done
	delay       time.Duration // base delay between attempts
	maxDelay    time.Duration // cap for exponential backoff
	fixed       bool          // use a constant delay instead of backoff
	lastErrOnly bool          // return only the final error
	retryIf     func(error) bool
}

// Option configures a Retry.
type Option func(*config)

type retrier struct {
	cfg config
}

var _ Retry = (*retrier)(nil)

// New returns a Retry. Defaults: 3 attempts, 1s base delay with exponential
// backoff capped at 5s, last error only, every error retried.
func New(opts ...Option) Retry {
	cfg := config{
		attempts:    3,
		delay:       1 * time.Second,
		maxDelay:    5 * time.Second,
		lastErrOnly: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &retrier{cfg: cfg}
}

func (r *retrier) Execute(ctx context.Context, operation func() error) error {
	delayType := retry.BackOffDelay
	if r.cfg.fixed {
		delayType = retry.FixedDelay
	}
	options := []retry.Option{
		retry.Attempts(r.cfg.attempts),
		retry.Delay(r.cfg.delay),
		retry.MaxDelay(r.cfg.maxDelay),
		retry.DelayType(delayType),
		retry.LastErrorOnly(r.cfg.lastErrOnly),
		retry.Context(ctx),
	}
	if r.cfg.retryIf != nil {
		options = append(options, retry.RetryIf(r.cfg.retryIf))
	}
	return retry.Do(operation, options...)
}

// WithAttempts sets the maximum number of attempts including the first one.
// Zero means unlimited.
func WithAttempts(n uint) Option {
	return func(c *config) {
		c.attempts = n
	}
}

// WithDelay sets the base delay between attempts.
func WithDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}

// WithMaxDelay caps the exponential backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) {
		c.maxDelay = d
	}
}

// WithFixedDelay waits exactly d between attempts.
func WithFixedDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
		c.fixed = true
	}
}

// WithRetryIf restricts retries to errors for which fn returns true.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *config) {
		c.retryIf = fn
	}
}
