package throttle

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCooldown   = 24 * time.Hour
	DefaultMaxEntries = 100_000
)

// Store enforces at most one notification per key within a cooldown window.
// State is process-local and lost on restart.
type Store interface {
	// ShouldNotify reports whether key is outside its cooldown window.
	ShouldNotify(key string) bool
	// RecordNotified stamps key with the current time.
	RecordNotified(key string)
	// Acquire is ShouldNotify and RecordNotified as one atomic step.
	Acquire(key string) bool
	// Revert forgets a stamp made by Acquire, e.g. after a failed send.
	Revert(key string)
}

// Memory is a Store backed by a size-bounded LRU whose entries expire after
// the cooldown, so idle senders do not accumulate.
type Memory struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last *expirable.LRU[string, time.Time]
}

// NewMemory creates a Memory store. Non-positive arguments use the defaults.
func NewMemory(cooldown time.Duration, maxEntries int) *Memory {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		cooldown: cooldown,
		now:      time.Now,
		last:     expirable.NewLRU[string, time.Time](maxEntries, nil, cooldown),
	}
}

// Cooldown returns the configured window.
func (m *Memory) Cooldown() time.Duration { return m.cooldown }

func (m *Memory) ShouldNotify(key string) bool {
	key = normalize(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowedLocked(key, m.now())
}

func (m *Memory) RecordNotified(key string) {
	key = normalize(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last.Add(key, m.now())
}

func (m *Memory) Acquire(key string) bool {
	key = normalize(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !m.allowedLocked(key, now) {
		return false
	}
	m.last.Add(key, now)
	return true
}

func (m *Memory) Revert(key string) {
	key = normalize(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last.Remove(key)
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	return m.last.Len()
}

// allowedLocked: the window is half-open, a send exactly cooldown after the
// previous one is allowed.
func (m *Memory) allowedLocked(key string, now time.Time) bool {
	last, ok := m.last.Get(key)
	if !ok {
		return true
	}
	return now.Sub(last) >= m.cooldown
}

func normalize(key string) string {
	return strings.TrimSpace(key)
}

var _ Store = (*Memory)(nil)
