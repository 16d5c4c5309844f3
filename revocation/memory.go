package revocation

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local Store. Entries are purged by the cache janitor
// once their ttl has elapsed. Revocations do not propagate to other instances.
type Memory struct {
	c          *gocache.Cache
	defaultTTL time.Duration
}

// NewMemory builds a Memory store. cleanup is the janitor interval.
func NewMemory(defaultTTL, cleanup time.Duration) *Memory {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Memory{c: gocache.New(defaultTTL, cleanup), defaultTTL: defaultTTL}
}

// Revoke records token for ttl, or the default ttl when ttl is not positive.
// An existing entry is only ever extended.
func (m *Memory) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if token == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	k := fingerprint(token)
	if _, exp, ok := m.c.GetWithExpiration(k); ok {
		// keep the longer of the two lifetimes
		if exp.IsZero() || !exp.Before(time.Now().Add(ttl)) {
			return nil
		}
	}
	m.c.Set(k, struct{}{}, ttl)
	return nil
}

// IsRevoked reports whether token has a live entry. It never fails.
func (m *Memory) IsRevoked(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	_, found := m.c.Get(fingerprint(token))
	return found, nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}
