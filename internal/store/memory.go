package store

import (
	"sort"
	"sync"
	"time"
)

// SubscriberBuffer is the number of changes a subscriber may fall behind
// before it is cut off.
const SubscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. Changes are keyed by [Change.Key], with new changes
// replacing previous values.
//
// Subscribers receive updates via buffered channels (buffer size
// [SubscriberBuffer]). Updates are sent non-blocking. The console publishes
// each change once, so a dropped update would leave a client stale for good:
// a subscriber whose buffer is full is cut off instead, its channel closed,
// and it resynchronises from [MemoryStore.GetAll].
type MemoryStore struct {
	mu          sync.RWMutex
	changes     map[string]Change
	subscribers map[chan Change]struct{}
	subMu       sync.RWMutex
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		changes:     make(map[string]Change),
		subscribers: make(map[chan Change]struct{}),
		now:         time.Now,
	}
}

// Update stores a [Change] and notifies all subscribers.
//
// A zero At is stamped with the current time.
func (m *MemoryStore) Update(change Change) {
	if change.At.IsZero() {
		change.At = m.now()
	}

	m.mu.Lock()
	m.changes[change.Key()] = change
	m.mu.Unlock()

	m.notifySubscribers(change)
}

// GetAll returns a snapshot of all currently stored changes, ordered by key.
func (m *MemoryStore) GetAll() []Change {
	m.mu.RLock()
	changes := make([]Change, 0, len(m.changes))
	for _, c := range m.changes {
		changes = append(changes, c)
	}
	m.mu.RUnlock()

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Key() < changes[j].Key()
	})
	return changes
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of [SubscriberBuffer] changes. If the
// buffer fills the channel is closed; everything sent before the close was
// delivered in order.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Change {
	ch := make(chan Change, SubscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Change) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the change to all active subscribers.
//
// This is non-blocking: a subscriber whose buffer is full is removed and its
// channel closed, so it learns it missed the change.
func (m *MemoryStore) notifySubscribers(change Change) {
	var overflowed []chan Change

	m.subMu.RLock()
	for ch := range m.subscribers {
		select {
		case ch <- change:
		default:
			overflowed = append(overflowed, ch)
		}
	}
	m.subMu.RUnlock()

	if len(overflowed) == 0 {
		return
	}
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range overflowed {
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
	}
}
