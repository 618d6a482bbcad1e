// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

// Package health tracks the availability of an external dependency from the
// failures and successes its caller observes.
package health

import (
	"sync"
	"time"
)

// Metrics exposes the current health state of a dependency for monitoring
// and operator visibility. All fields are point-in-time snapshots safe
// to serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// DefaultCooldown is how long a dependency is reported unavailable after a
// failure, absent a success.
const DefaultCooldown = 30 * time.Second

// Tracker records failures and successes of one dependency. A failure marks
// the dependency unavailable for the cooldown period; any success clears it
// immediately. The zero value is not usable; use NewTracker.
type Tracker struct {
	mu            sync.Mutex
	cooldown      time.Duration
	failureCount  int64
	lastFailureAt time.Time
	cooldownUntil time.Time
}

func NewTracker(cooldown time.Duration) *Tracker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Tracker{cooldown: cooldown}
}

func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.failureCount++
	t.lastFailureAt = now
	t.cooldownUntil = now.Add(t.cooldown)
}

func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cooldownUntil = time.Time{}
}

// Available reports whether the dependency is currently usable: either it
// never failed, a success cleared the cooldown, or the cooldown expired.
func (t *Tracker) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cooldownUntil.IsZero() || time.Now().After(t.cooldownUntil)
}

// Snapshot returns the current metrics.
func (t *Tracker) Snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := Metrics{
		FailureCount: t.failureCount,
		Available:    t.cooldownUntil.IsZero() || time.Now().After(t.cooldownUntil),
	}
	if !t.lastFailureAt.IsZero() {
		at := t.lastFailureAt
		m.LastFailureAt = &at
	}
	if !t.cooldownUntil.IsZero() {
		until := t.cooldownUntil
		m.CooldownUntil = &until
	}
	return m
}
