// Package storage keeps the announcement ledger: article IDs already sent to
// downstream sinks. It never stores article bodies.
package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Ledger records which article IDs were announced, with a retention TTL.
type Ledger interface {
	Close() error
	// Unseen returns the subset of ids not recorded (or expired), in input order.
	Unseen(ids []string) ([]string, error)
	// Record marks ids as announced from now until now+TTL.
	Record(ids []string) error
}

// Options controls retention characteristics for concrete ledger implementations.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	// Now overrides the clock; tests only.
	Now func() time.Time
}

const (
	TypeMemory = "memory"
	TypeBBolt  = "bbolt"

	defaultTTL             = 5 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewLedger creates the configured ledger backend. "none" keeps the ledger in memory.
func NewLedger(typ, path string, opts Options) (Ledger, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", TypeMemory:
		return newMemoryLedger(opts), nil
	case TypeBBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

type memoryLedger struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

func newMemoryLedger(opts Options) *memoryLedger {
	return &memoryLedger{expiry: make(map[string]time.Time), ttl: opts.TTL, now: opts.Now}
}

func (m *memoryLedger) Close() error { return nil }

func (m *memoryLedger) Unseen(ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		exp, ok := m.expiry[id]
		if ok && exp.After(now) {
			continue
		}
		if ok {
			delete(m.expiry, id)
		}
		out = append(out, id)
	}
	return out, nil
}

func (m *memoryLedger) Record(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp := m.now().Add(m.ttl)
	for _, id := range ids {
		m.expiry[id] = exp
	}
	return nil
}
