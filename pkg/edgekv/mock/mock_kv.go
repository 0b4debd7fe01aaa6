package mock

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/StratoEdge/edgekv_sdk_go/internal/devseed"
	"github.com/StratoEdge/edgekv_sdk_go/pkg/edgekv"
)

// Errors reported by the store. The HTTP handler maps them onto the
// envelope error codes of the hosted API.
var (
	ErrNamespaceNotFound = errors.New("mock edgekv: namespace not found")
	ErrKeyNotFound       = errors.New("mock edgekv: key not found")
	ErrBadCursor         = errors.New("mock edgekv: unknown cursor")
)

type entry struct {
	value     string
	metadata  map[string]any
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// cursorTTL bounds how long a listing cursor stays replayable. Stale
// state is pruned lazily on the next listing call, the same way expired
// entries are.
const cursorTTL = time.Hour

// cursorState pins a resumable listing position. The tokens handed out
// are opaque; the mapping back to a position lives only here and is
// dropped once the cursor ages out.
type cursorState struct {
	namespaceID string
	prefix      string
	lastKey     string
	createdAt   time.Time
}

// Mock implements an in-memory EdgeKV tenant: a set of namespaces with
// the TTL, metadata and pagination semantics of the hosted store.
type Mock struct {
	mu         sync.Mutex
	namespaces map[string]map[string]*entry
	cursors    map[string]cursorState
	now        func() time.Time
}

// Option configures the mock instance.
type Option func(*Mock)

// WithClock overrides the clock used for TTL bookkeeping (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// New creates a mock with no namespaces. Operations against namespaces
// that were never created fail the way the remote API does.
func New(opts ...Option) *Mock {
	m := &Mock{
		namespaces: make(map[string]map[string]*entry),
		cursors:    make(map[string]cursorState),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mock) clock() time.Time {
	if m.now == nil {
		return time.Now().UTC()
	}
	return m.now()
}

// CreateNamespace registers an empty namespace. Creating one that
// already exists is a no-op.
func (m *Mock) CreateNamespace(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("mock edgekv: namespace id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.namespaces[id]; !ok {
		m.namespaces[id] = make(map[string]*entry)
	}
	return nil
}

// Seed loads entries into a namespace, creating it if needed. Relative
// expiries (expiration_ttl, seconds) count from the mock's clock and win
// over absolute ones, mirroring the write endpoint.
func (m *Mock) Seed(namespaceID string, entries []devseed.Entry) error {
	if strings.TrimSpace(namespaceID) == "" {
		return fmt.Errorf("mock edgekv: namespace id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns := m.namespaces[namespaceID]
	if ns == nil {
		ns = make(map[string]*entry)
		m.namespaces[namespaceID] = ns
	}

	now := m.clock()
	for _, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("mock edgekv: seed entry missing key")
		}
		var expires time.Time
		switch {
		case e.ExpirationTTL > 0:
			expires = now.Add(time.Duration(e.ExpirationTTL) * time.Second)
		case e.Expiration > 0:
			expires = time.Unix(e.Expiration, 0).UTC()
		}
		var meta map[string]any
		if len(e.Metadata) > 0 {
			meta = make(map[string]any, len(e.Metadata))
			for k, v := range e.Metadata {
				meta[k] = v
			}
		}
		ns[e.Key] = &entry{value: e.Value, metadata: meta, expiresAt: expires}
	}
	return nil
}

// Get returns the raw value stored under key.
func (m *Mock) Get(namespaceID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespaceID]
	if !ok {
		return "", ErrNamespaceNotFound
	}
	ent, ok := ns[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	if ent.expired(m.clock()) {
		delete(ns, key)
		return "", ErrKeyNotFound
	}
	return ent.value, nil
}

// Set stores value under key. A zero expiresAt means the key never
// expires.
func (m *Mock) Set(namespaceID, key, value string, expiresAt time.Time) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("mock edgekv: key is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespaceID]
	if !ok {
		return ErrNamespaceNotFound
	}
	ns[key] = &entry{value: value, expiresAt: expiresAt}
	return nil
}

// Delete removes the given keys and reports how many of them held a live
// value. Missing keys are skipped silently, like the bulk endpoint.
func (m *Mock) Delete(namespaceID string, keys []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespaceID]
	if !ok {
		return 0, ErrNamespaceNotFound
	}

	now := m.clock()
	deleted := 0
	for _, key := range keys {
		ent, ok := ns[key]
		if !ok {
			continue
		}
		if !ent.expired(now) {
			deleted++
		}
		delete(ns, key)
	}
	return deleted, nil
}

// ListPage returns one page of keys sorted by name. A limit of zero or
// less falls back to the API default of 1000. The returned cursor is an
// opaque token that resumes the same namespace, prefix and position when
// passed back; an empty cursor means the listing is exhausted. Cursors
// stay replayable for cursorTTL after issue and are then rejected like
// any unknown token.
func (m *Mock) ListPage(namespaceID string, limit int, cursor, prefix string) ([]edgekv.KeyInfo, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	m.pruneCursors(now)

	ns, ok := m.namespaces[namespaceID]
	if !ok {
		return nil, "", ErrNamespaceNotFound
	}

	after := ""
	if cursor != "" {
		state, ok := m.cursors[cursor]
		if !ok || state.namespaceID != namespaceID {
			return nil, "", ErrBadCursor
		}
		prefix = state.prefix
		after = state.lastKey
	}

	keys := make([]string, 0, len(ns))
	for key, ent := range ns {
		if ent.expired(now) {
			delete(ns, key)
			continue
		}
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := 0
	if after != "" {
		idx := sort.SearchStrings(keys, after)
		for idx < len(keys) && keys[idx] <= after {
			idx++
		}
		start = idx
	}

	if limit <= 0 {
		limit = 1000
	}
	end := len(keys)
	if start+limit < end {
		end = start + limit
	}

	page := make([]edgekv.KeyInfo, 0, end-start)
	for _, key := range keys[start:end] {
		ent := ns[key]
		info := edgekv.KeyInfo{Name: key}
		if !ent.expiresAt.IsZero() {
			info.Expiration = ent.expiresAt.Unix()
		}
		if len(ent.metadata) > 0 {
			meta := make(map[string]any, len(ent.metadata))
			for k, v := range ent.metadata {
				meta[k] = v
			}
			info.Metadata = meta
		}
		page = append(page, info)
	}

	next := ""
	if end < len(keys) && end > start {
		next = uuid.NewString()
		m.cursors[next] = cursorState{
			namespaceID: namespaceID,
			prefix:      prefix,
			lastKey:     keys[end-1],
			createdAt:   now,
		}
	}
	return page, next, nil
}

// pruneCursors drops cursor state older than cursorTTL. Caller holds
// the lock.
func (m *Mock) pruneCursors(now time.Time) {
	for token, state := range m.cursors {
		if now.Sub(state.createdAt) > cursorTTL {
			delete(m.cursors, token)
		}
	}
}
