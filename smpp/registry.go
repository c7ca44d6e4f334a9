package smpp

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/atomic"
)

// ErrRegistryClosed is returned by Add after CloseAll.
var ErrRegistryClosed = errors.New("smpp: registry closed")

// Registry keeps the live sessions of one server.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   *atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		closed:   atomic.NewBool(false),
	}
}

// Add registers s and arranges for its removal when it closes. Closed
// sessions are refused.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if s.isClosed() {
		r.mu.Unlock()
		return ErrClosed
	}
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	s.onClose(r.Remove)
	return nil
}

// Remove drops s from the registry.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	if r.sessions[s.ID()] == s {
		delete(r.sessions, s.ID())
	}
	r.mu.Unlock()
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if ok && s.isClosed() {
		return nil, false
	}
	return s, ok
}

// Sessions lists the sessions whose transport is still open, oldest first.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if !s.isClosed() {
			list = append(list, s)
		}
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt().Before(list[j].CreatedAt())
	})
	return list
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session and refuses further Adds.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed.Store(true)
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()
	for _, s := range list {
		s.Close()
	}
}
