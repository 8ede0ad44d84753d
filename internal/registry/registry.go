// Package registry owns the authoritative in-memory project state.
// It is the single source of truth for reads; persistence is a derived
// mirror maintained by the lifecycle controller.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	lterrors "github.com/p-blackswan/livetrack/internal/errors"
	"github.com/p-blackswan/livetrack/internal/models"
)

// entry pairs a project's state with its own lock so that mutations on
// one project never block mutations on another.
type entry struct {
	mu    sync.RWMutex
	state models.ProjectState
}

// Registry maps project ids to live project state.
type Registry struct {
	entries sync.Map // id → *entry
	listMu  sync.RWMutex
	order   []*entry // insertion order, for List
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Create generates a new project in the initializing state and returns
// its snapshot.
func (r *Registry) Create(name string) models.ProjectState {
	e := &entry{
		state: models.ProjectState{
			ID:        uuid.New().String(),
			Name:      name,
			Status:    models.StatusInitializing,
			Progress:  0,
			Timestamp: time.Now().UTC(),
		},
	}

	r.entries.Store(e.state.ID, e)
	r.listMu.Lock()
	r.order = append(r.order, e)
	r.listMu.Unlock()

	return e.state.Clone()
}

// Adopt inserts an existing project state, keeping its id. Used to
// rehydrate persisted projects at startup. Returns false if the id is
// already present.
func (r *Registry) Adopt(state models.ProjectState) bool {
	e := &entry{state: state.Clone()}
	if _, loaded := r.entries.LoadOrStore(state.ID, e); loaded {
		return false
	}
	r.listMu.Lock()
	r.order = append(r.order, e)
	r.listMu.Unlock()
	return true
}

// Get returns a snapshot of the project, or ErrProjectNotFound.
func (r *Registry) Get(id string) (models.ProjectState, error) {
	val, ok := r.entries.Load(id)
	if !ok {
		return models.ProjectState{}, lterrors.ErrProjectNotFound
	}
	e := val.(*entry)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone(), nil
}

// List returns snapshots of all projects in insertion order.
func (r *Registry) List() []models.ProjectState {
	r.listMu.RLock()
	entries := make([]*entry, len(r.order))
	copy(entries, r.order)
	r.listMu.RUnlock()

	out := make([]models.ProjectState, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		out = append(out, e.state.Clone())
		e.mu.RUnlock()
	}
	return out
}

// Len returns the number of tracked projects.
func (r *Registry) Len() int {
	r.listMu.RLock()
	defer r.listMu.RUnlock()
	return len(r.order)
}

// Apply runs fn on the project's state under that entry's exclusive lock
// and returns the post-mutation snapshot. Mutations on different ids
// proceed in parallel. This is the only sanctioned way to change a
// project's fields. If fn returns an error the state is left untouched
// and the error is passed through.
func (r *Registry) Apply(id string, fn func(*models.ProjectState) error) (models.ProjectState, error) {
	val, ok := r.entries.Load(id)
	if !ok {
		return models.ProjectState{}, lterrors.ErrProjectNotFound
	}
	e := val.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.state.Clone()
	if err := fn(&next); err != nil {
		return models.ProjectState{}, err
	}
	next.Timestamp = time.Now().UTC()
	e.state = next
	return next.Clone(), nil
}
