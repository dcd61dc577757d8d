package bridge

import (
	"context"
	"sync"
)

// Registry tracks live sessions so the server can report them and cancel
// them all on shutdown.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	live     int
	drained  chan struct{} // closed when live drops to zero
}

type trackedSession struct {
	session *Session
	cancel  context.CancelFunc
	once    sync.Once
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*trackedSession)}
}

// Register adds a session. The returned func removes it and is safe to call
// more than once.
func (r *Registry) Register(s *Session, cancel context.CancelFunc) (unregister func()) {
	entry := &trackedSession{session: s, cancel: cancel}

	r.mu.Lock()
	old := r.sessions[s.ID]
	r.sessions[s.ID] = entry
	if r.live == 0 {
		r.drained = make(chan struct{})
	}
	r.live++
	r.mu.Unlock()

	if old != nil {
		r.unregister(s.ID, old)
	}
	return func() { r.unregister(s.ID, entry) }
}

func (r *Registry) unregister(id string, entry *trackedSession) {
	entry.once.Do(func() {
		r.mu.Lock()
		if r.sessions[id] == entry {
			delete(r.sessions, id)
		}
		r.live--
		if r.live == 0 {
			close(r.drained)
		}
		r.mu.Unlock()
	})
}

// Serve runs s to completion under the registry.
func (r *Registry) Serve(ctx context.Context, s *Session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unregister := r.Register(s, cancel)
	defer unregister()
	return s.Run(ctx)
}

// Count is the number of sessions currently registered.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// States counts live sessions per lifecycle state.
func (r *Registry) States() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.sessions))
	for _, entry := range r.sessions {
		out[entry.session.State().String()]++
	}
	return out
}

// CancelAll cancels every live session and reports how many it reached.
// Sessions unregister themselves as they finish.
func (r *Registry) CancelAll() (canceled int) {
	var cancels []context.CancelFunc
	r.mu.Lock()
	for _, entry := range r.sessions {
		if entry.cancel != nil {
			cancels = append(cancels, entry.cancel)
		}
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered or ctx ends.
// It reports whether the registry drained.
func (r *Registry) Wait(ctx context.Context) bool {
	r.mu.Lock()
	if r.live == 0 {
		r.mu.Unlock()
		return true
	}
	drained := r.drained
	r.mu.Unlock()

	select {
	case <-drained:
		return true
	case <-ctx.Done():
		return false
	}
}
