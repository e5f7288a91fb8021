package source

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// ProbePolicy controls the startup connectivity probe against the
// source API. It applies only to the initial probe; the poll loop and
// the relay send path never retry.
type ProbePolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultProbePolicy returns the default probe policy: 5 attempts,
// 1s initial delay, 2x multiplier, 15s max delay.
func DefaultProbePolicy() *ProbePolicy {
	return &ProbePolicy{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     15 * time.Second,
	}
}

// NextDelay returns the backoff delay for the given attempt number
// (1-indexed), capped at MaxDelay.
func (p *ProbePolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// ProbeWithRetry calls the source's info endpoint until it answers or
// the policy is exhausted. Returns the last error if the source never
// becomes reachable.
func (p *ProbePolicy) ProbeWithRetry(ctx context.Context, client *Client) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		info, err := client.Info(ctx)
		if err == nil {
			slog.Info("connected to activity source", "info", string(info))
			return nil
		}
		lastErr = err
		if attempt < p.MaxAttempts {
			delay := p.NextDelay(attempt)
			slog.Warn("source not reachable, retrying", "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
