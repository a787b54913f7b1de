package limiter

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process limiter with a sliding failure window and lockout.
// It guards client-side login/register attempts before any network call.
type Memory struct {
	mu       sync.Mutex
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time

	entries map[string]*entry
}

type entry struct {
	fails        int
	firstFail    time.Time
	blockedUntil time.Time
}

// NewMemory constructs an in-memory limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
		entries:  map[string]*entry{},
	}
}

// Allow reports whether an attempt for account is currently permitted.
func (m *Memory) Allow(_ context.Context, account string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[account]
	if !ok {
		return true, 0, nil
	}
	now := m.now()
	if now.Before(e.blockedUntil) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for account.
func (m *Memory) Success(_ context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, account)
	return nil
}

// Failure records a failed attempt; once maxFails accumulate inside the
// window the account is blocked for blockFor.
func (m *Memory) Failure(_ context.Context, account string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e, ok := m.entries[account]
	if !ok || now.Sub(e.firstFail) > m.window {
		e = &entry{firstFail: now}
		m.entries[account] = e
	}
	e.fails++
	if e.fails >= m.maxFails {
		e.blockedUntil = now.Add(m.blockFor)
		return true, m.blockFor, nil
	}
	return false, 0, nil
}
