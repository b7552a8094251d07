package livestream

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

// Handle is a writable, closable live connection owned by one user.
type Handle interface {
	Send(f Frame) error
	Close() error
}

// Entry is the registry's record of a user's current connection.
type Entry struct {
	UserID    string
	Handle    Handle
	CreatedAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// Registry maps a user id to that user's single current live connection.
// The most recent Register wins: the handle it replaces is closed so writes
// never land on a stale connection. Users are spread across shards so that
// operations on different users do not contend on one lock.
type Registry struct {
	shards [shardCount]*shard
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

// Register makes h the current connection for userID. A previously
// registered handle for the same user is closed.
func (r *Registry) Register(userID string, h Handle) {
	s := r.shardFor(userID)
	s.mu.Lock()
	prev, existed := s.entries[userID]
	s.entries[userID] = Entry{UserID: userID, Handle: h, CreatedAt: time.Now()}
	s.mu.Unlock()

	if existed && prev.Handle != h {
		prev.Handle.Close()
	}
}

// Lookup returns the current handle for userID. Absence is normal: the user
// is simply not connected.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	s := r.shardFor(userID)
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.Handle, true
}

// Unregister removes whatever connection userID has. Removing an absent user
// is a no-op.
func (r *Registry) Unregister(userID string) {
	s := r.shardFor(userID)
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
}

// Release removes userID's entry only if it still points at h. A connection
// that has already been superseded must not evict its replacement.
func (r *Registry) Release(userID string, h Handle) bool {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok || e.Handle != h {
		return false
	}
	delete(s.entries, userID)
	return true
}

// Deliver writes f to userID's current connection. It reports whether a
// frame was written. A write failure means the transport is gone: the handle
// is released and closed, and the failure is not propagated.
func (r *Registry) Deliver(userID string, f Frame) bool {
	h, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	if err := h.Send(f); err != nil {
		r.Release(userID, h)
		h.Close()
		return false
	}
	return true
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
