package task

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// returned by Get for an unknown task identifier
var ErrNotFound = errors.New("task not found")

// Registry is the process-wide map from task identifier to task state. Each
// task's record is mutated only by the goroutine driving it, so the lock only
// guards the map and the copy-in/copy-out of individual records.
//
// Retention is the explicit eviction policy: terminal tasks older than the
// retention window are removed by EvictExpired. Zero retention keeps tasks
// for the process lifetime, which means memory grows with task count.
type Registry struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	retention time.Duration
}

func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		tasks:     make(map[string]*Task),
		retention: retention,
	}
}

// Create registers a new pending task and returns its snapshot.
func (r *Registry) Create() Task {
	t := &Task{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	return t.clone()
}

// Get returns a deep-copied snapshot of the task state.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t.clone(), nil
}

// Update applies fn to the task record under the registry lock. Updates to a
// task already in a terminal state are ignored; terminal states are absorbing.
func (r *Registry) Update(id string, fn func(*Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status.Terminal() {
		return nil
	}
	fn(t)
	return nil
}

// EvictExpired removes terminal tasks whose completion is older than the
// retention window. With zero retention it is a no-op.
func (r *Registry) EvictExpired(now time.Time) int {
	if r.retention <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, t := range r.tasks {
		if t.Status.Terminal() && !t.CompletedAt.IsZero() && now.Sub(t.CompletedAt) > r.retention {
			delete(r.tasks, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of retained tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
