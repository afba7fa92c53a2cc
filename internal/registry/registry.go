package registry

import (
	"sort"
	"sync"
)

// Handle is one live, authenticated real-time connection owned by a
// user. A user may own several handles at once (multi-device). Push is
// best-effort: a failed push means the handle is presumed dead and
// will be removed by its own disconnect event.
type Handle interface {
	ID() string
	UserID() string
	Push(event string, payload interface{}) error
}

// Registry is the process-wide table of live connections, a
// concurrency-safe multi-map from user id to connection handles. All
// mutation happens inside a single short critical section; no lock is
// ever held across a network call.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]Handle // userID -> connID -> handle
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		conns: make(map[string]map[string]Handle),
	}
}

// Add inserts a handle, idempotently. It reports whether the owning
// user came online with this handle, i.e. had no live connection
// before.
func (r *Registry) Add(h Handle) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userConns, ok := r.conns[h.UserID()]
	if !ok {
		userConns = make(map[string]Handle)
		r.conns[h.UserID()] = userConns
	}

	cameOnline = len(userConns) == 0
	userConns[h.ID()] = h
	return cameOnline
}

// Remove deletes a handle from its owner's set. It is idempotent:
// removing an unknown handle is a no-op. It reports whether the owning
// user went offline, i.e. this was its last live connection.
func (r *Registry) Remove(h Handle) (wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userConns, ok := r.conns[h.UserID()]
	if !ok {
		return false
	}
	if _, ok := userConns[h.ID()]; !ok {
		return false
	}

	delete(userConns, h.ID())
	if len(userConns) == 0 {
		delete(r.conns, h.UserID())
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Snapshot returns the sorted set of online user ids as it existed at
// some single instant.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		ids = append(ids, userID)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// HandlesFor returns the live handles owned by the given user. The
// returned slice is a copy; pushing to it happens outside the lock.
func (r *Registry) HandlesFor(userID string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userConns := r.conns[userID]
	if len(userConns) == 0 {
		return nil
	}

	handles := make([]Handle, 0, len(userConns))
	for _, h := range userConns {
		handles = append(handles, h)
	}
	return handles
}

// Handles returns every live handle across all users.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var handles []Handle
	for _, userConns := range r.conns {
		for _, h := range userConns {
			handles = append(handles, h)
		}
	}
	return handles
}
