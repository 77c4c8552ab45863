package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"duochat/internal/domain"
	"duochat/internal/metrics"
	"duochat/internal/speaker"
)

// Caller wraps a provider call with bounded retries, exponential backoff,
// a hard per-attempt timeout, and a one-shot alternation format repair.
type Caller struct {
	maxRetries int
	timeout    time.Duration
	logger     *slog.Logger

	// sleep is the interruptible backoff wait; swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCaller creates a caller. maxRetries is the number of retries after the
// first attempt; timeout bounds each individual attempt.
func NewCaller(maxRetries int, timeout time.Duration, logger *slog.Logger) *Caller {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Caller{
		maxRetries: maxRetries,
		timeout:    timeout,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Invoke calls the provider with the given turns. On a first-attempt
// alternation violation it retries exactly once with the turns folded for
// strict alternation; that repair attempt is not counted against the retry
// budget. All scheduled retries use the original, unrepaired turns. Returns
// *CallError once the budget is exhausted.
func (c *Caller) Invoke(ctx context.Context, p domain.Provider, turns []domain.Turn) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Warn("provider call failed, backing off",
				"provider", p.Name(), "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			metrics.RetriesTotal.WithLabelValues(p.Name()).Inc()
			if err := c.sleep(ctx, backoff); err != nil {
				return "", &CallError{Provider: p.Name(), Attempts: attempt, Err: err}
			}
		}

		text, err := c.attempt(ctx, p, turns)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt == 0 && AlternationViolation(err) {
			c.logger.Info("alternation violation, retrying with folded turns",
				"provider", p.Name())
			metrics.FormatRepairsTotal.WithLabelValues(p.Name()).Inc()
			folded := speaker.FoldForAlternation(turns, p.DisplayName())
			text, ferr := c.attempt(ctx, p, folded)
			if ferr == nil {
				return text, nil
			}
			lastErr = ferr
		}
	}

	return "", &CallError{Provider: p.Name(), Attempts: c.maxRetries + 1, Err: lastErr}
}

// attempt races one Complete call against the per-attempt timeout. A
// timed-out call is abandoned; its late result, if any, is discarded into
// the buffered channel.
func (c *Caller) attempt(ctx context.Context, p domain.Provider, turns []domain.Turn) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		text, err := p.Complete(attemptCtx, turns)
		done <- result{text, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-attemptCtx.Done():
		res = result{err: fmt.Errorf("timeout after %s: %w", c.timeout, attemptCtx.Err())}
	}

	status := "ok"
	if res.err != nil {
		status = "error"
	}
	metrics.ProviderRequestsTotal.WithLabelValues(p.Name(), status).Inc()
	metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	return res.text, res.err
}
