// Package entitlement decides whether a new practice session may start.
package entitlement

import (
	"context"
	"fmt"
	"time"
)

// DefaultWindow is the trailing period a daily quota counts over.
const DefaultWindow = 24 * time.Hour

// Decision is the outcome of one gate check. Remaining is -1 when unlimited.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
	Reason    string `json:"reason,omitempty"`
}

// Gate is consulted once before a session starts.
type Gate interface {
	Check(ctx context.Context) (Decision, error)
}

// Counter reports how many sessions started at or after a point in time.
type Counter interface {
	CountSessionsSince(ctx context.Context, since time.Time) (int, error)
}

// Unlimited always allows.
type Unlimited struct{}

func (Unlimited) Check(context.Context) (Decision, error) {
	return Decision{Allowed: true, Remaining: -1}, nil
}

// Quota limits sessions per trailing window.
type Quota struct {
	counter Counter
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewQuota returns a gate allowing limit sessions per window. limit <= 0 is unlimited.
func NewQuota(counter Counter, limit int, window time.Duration) *Quota {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Quota{counter: counter, limit: limit, window: window, now: time.Now}
}

func (q *Quota) Check(ctx context.Context) (Decision, error) {
	if q.limit <= 0 {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	used, err := q.counter.CountSessionsSince(ctx, q.now().Add(-q.window))
	if err != nil {
		return Decision{}, fmt.Errorf("count recent sessions: %w", err)
	}

	remaining := max(q.limit-used, 0)
	d := Decision{Allowed: remaining > 0, Remaining: remaining, Limit: q.limit}
	if !d.Allowed {
		d.Reason = fmt.Sprintf("practice quota reached: %d of %d sessions in the last %s", used, q.limit, formatWindow(q.window))
	}
	return d, nil
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
