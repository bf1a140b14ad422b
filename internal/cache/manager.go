package cache

import (
	"log/slog"
	"path"
	"time"

	"github.com/sanjaynair/amlscope/internal/metrics"
)

// Manager is the content-addressed cache consulted before every expensive
// or externally billed operation. Keys are derived from a digest of the
// operation's semantic input, so identical inputs collide on the same entry
// regardless of call site or call order.
//
// A nil or unreachable backing store degrades to miss-on-get and no-op on
// set/delete; callers never branch on cache availability.
type Manager struct {
	store Store
}

// New returns a Manager over store. A nil store yields a fully degraded
// manager, which is valid.
func New(store Store) *Manager {
	return &Manager{store: store}
}

// Key derives the namespace-qualified content-addressed key for input.
func (m *Manager) Key(namespace string, input any) (string, error) {
	d, err := digest(input)
	if err != nil {
		return "", err
	}
	return namespace + ":" + d, nil
}

// Get returns the cached value for (namespace, input), or a miss.
func (m *Manager) Get(namespace string, input any) ([]byte, bool) {
	if m.store == nil {
		metrics.CacheRequests.WithLabelValues(namespace, "miss").Inc()
		return nil, false
	}
	key, err := m.Key(namespace, input)
	if err != nil {
		slog.Warn("cache key derivation failed", "namespace", namespace, "err", err)
		metrics.CacheRequests.WithLabelValues(namespace, "miss").Inc()
		return nil, false
	}
	val, ok := m.store.Get(key)
	if ok {
		metrics.CacheRequests.WithLabelValues(namespace, "hit").Inc()
	} else {
		metrics.CacheRequests.WithLabelValues(namespace, "miss").Inc()
	}
	return val, ok
}

// GetText is Get returning the value as a string.
func (m *Manager) GetText(namespace string, input any) (string, bool) {
	b, ok := m.Get(namespace, input)
	if !ok {
		return "", false
	}
	return string(b), true
}

// Set stores val under (namespace, input) for ttl.
func (m *Manager) Set(namespace string, input any, val []byte, ttl time.Duration) {
	if m.store == nil {
		return
	}
	key, err := m.Key(namespace, input)
	if err != nil {
		slog.Warn("cache key derivation failed", "namespace", namespace, "err", err)
		return
	}
	m.store.Set(key, val, ttl)
}

// SetText is Set for string values.
func (m *Manager) SetText(namespace string, input any, val string, ttl time.Duration) {
	m.Set(namespace, input, []byte(val), ttl)
}

// Delete removes the entry for (namespace, input), if present.
func (m *Manager) Delete(namespace string, input any) {
	if m.store == nil {
		return
	}
	key, err := m.Key(namespace, input)
	if err != nil {
		return
	}
	m.store.Delete(key)
}

// ClearPattern deletes all entries whose namespace-qualified key matches
// the glob (path.Match syntax, e.g. "websearch:*") and returns the count.
func (m *Manager) ClearPattern(glob string) int {
	if m.store == nil {
		return 0
	}
	// path.Match errors only on a bad pattern, so one probe validates the
	// glob for the whole key set.
	if _, err := path.Match(glob, ""); err != nil {
		slog.Warn("cache clear skipped, invalid pattern", "glob", glob, "err", err)
		return 0
	}
	count := 0
	for _, key := range m.store.Keys() {
		if ok, _ := path.Match(glob, key); ok {
			m.store.Delete(key)
			count++
		}
	}
	return count
}
