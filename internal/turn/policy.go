// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"time"
)

const (
	// DefaultMaxAttempts is how many requests a turn makes before giving up.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is multiplied by the attempt number between attempts.
	DefaultBaseDelay = 800 * time.Millisecond

	// DefaultStreamTypingDelay paces the replay after a streamed reply.
	DefaultStreamTypingDelay = 6 * time.Millisecond

	// DefaultWholeTypingDelay paces the replay after a whole-body reply.
	DefaultWholeTypingDelay = 8 * time.Millisecond
)

// RetryPolicy is a fixed linear backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns three attempts spaced 800ms, then 1600ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// Delay is the wait after the given failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseDelay
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}
