package knowledge

import (
	"sync"
	"sync/atomic"
)

// Registry holds the table new sessions open against. Swapping never touches tables
// that sessions already hold.
type Registry struct {
	current atomic.Pointer[Table]

	mu    sync.Mutex
	hooks []func(*Table)
}

func NewRegistry(t *Table) *Registry {
	r := &Registry{}
	r.current.Store(t)
	return r
}

func (r *Registry) Current() *Table {
	return r.current.Load()
}

func (r *Registry) Swap(t *Table) {
	if t == nil {
		return
	}
	r.current.Store(t)

	r.mu.Lock()
	hooks := append([]func(*Table){}, r.hooks...)
	r.mu.Unlock()
	for _, h := range hooks {
		h(t)
	}
}

// OnSwap registers a hook called after every successful swap.
func (r *Registry) OnSwap(hook func(*Table)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}
