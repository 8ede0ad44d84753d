// Package lifecycle implements the project state machine. Every operation
// is a composite of registry mutation, write-through persistence, and
// event emission, executed in that order. A persistence failure is logged
// and counted but never rolls back the in-memory mutation: the registry
// stays authoritative for live display.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	lterrors "github.com/p-blackswan/livetrack/internal/errors"
	"github.com/p-blackswan/livetrack/internal/metrics"
	"github.com/p-blackswan/livetrack/internal/models"
	"github.com/p-blackswan/livetrack/internal/registry"
)

// maxLogEntries bounds a project's log buffer; oldest entries are evicted
// first.
const maxLogEntries = 100

const logTimeFormat = "15:04:05"

// ProjectStore is the persistence adapter consumed by the controller.
// Both calls are fire-and-report: errors are surfaced to the controller
// for logging only.
type ProjectStore interface {
	SaveProject(p models.ProjectState) error
	UpdateProjectFields(id string, fields map[string]any) error
}

// Publisher fans an event out to live subscribers.
type Publisher interface {
	Publish(ev models.LiveEvent)
}

// Controller performs validated transitions on project state.
type Controller struct {
	registry *registry.Registry
	store    ProjectStore
	bus      Publisher
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// New creates a controller. store, bus, and metrics may be nil.
func New(reg *registry.Registry, store ProjectStore, bus Publisher, m *metrics.Metrics, logger zerolog.Logger) *Controller {
	return &Controller{
		registry: reg,
		store:    store,
		bus:      bus,
		metrics:  m,
		logger:   logger.With().Str("component", "lifecycle").Logger(),
	}
}

// CreateProject registers a new project in the initializing state and
// emits project_created with the full snapshot.
func (c *Controller) CreateProject(name string) models.ProjectState {
	snap := c.registry.Create(name)

	if c.store != nil {
		if err := c.store.SaveProject(snap); err != nil {
			c.reportStoreError("insert", snap.ID, err)
		}
	}
	if c.metrics != nil {
		c.metrics.ProjectsTracked.Set(float64(c.registry.Len()))
	}

	c.publish(models.NewProjectCreated(snap))

	c.logger.Info().Str("project_id", snap.ID).Str("name", name).Msg("project created")
	return snap
}

// UpdateProgress sets progress and the current step description. Callers
// are trusted: out-of-range or decreasing progress is not rejected.
func (c *Controller) UpdateProgress(id string, progress float64, step string) (models.ProjectState, error) {
	snap, err := c.apply(id, func(p *models.ProjectState) error {
		p.Progress = progress
		p.CurrentStep = step
		return nil
	})
	if err != nil {
		return models.ProjectState{}, err
	}

	c.patch(id, map[string]any{
		"progress":     progress,
		"current_step": step,
	})
	c.publish(models.NewProgressUpdate(id, progress, step))
	return snap, nil
}

// AddLog appends a timestamped log entry, evicting from the front once
// the buffer exceeds its bound. The emitted log_added event carries only
// the new entry.
func (c *Controller) AddLog(id, message string) (models.ProjectState, error) {
	entry := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(logTimeFormat), message)

	snap, err := c.apply(id, func(p *models.ProjectState) error {
		p.Logs = append(p.Logs, entry)
		if len(p.Logs) > maxLogEntries {
			p.Logs = p.Logs[len(p.Logs)-maxLogEntries:]
		}
		return nil
	})
	if err != nil {
		return models.ProjectState{}, err
	}

	c.patch(id, map[string]any{"logs": snap.Logs})
	c.publish(models.NewLogAdded(id, entry))
	return snap, nil
}

// AddError appends a timestamped error entry and forces the project into
// the error status. Error is not terminal: log and progress events are
// still accepted afterwards.
func (c *Controller) AddError(id, message string) (models.ProjectState, error) {
	entry := fmt.Sprintf("[%s] ERROR: %s", time.Now().UTC().Format(logTimeFormat), message)

	snap, err := c.apply(id, func(p *models.ProjectState) error {
		p.Errors = append(p.Errors, entry)
		p.Status = models.StatusError
		return nil
	})
	if err != nil {
		return models.ProjectState{}, err
	}

	c.patch(id, map[string]any{
		"errors": snap.Errors,
		"status": string(models.StatusError),
	})
	c.publish(models.NewErrorAdded(id, entry))

	c.logger.Warn().Str("project_id", id).Str("error", message).Msg("project error recorded")
	return snap, nil
}

// Transition moves the project along the build pipeline
// (initializing → building → running). Completion goes through
// CompleteProject. A bare status change emits a project_state snapshot.
func (c *Controller) Transition(id string, next models.Status) (models.ProjectState, error) {
	snap, err := c.apply(id, func(p *models.ProjectState) error {
		if !validTransition(p.Status, next) {
			return fmt.Errorf("%w: %s → %s", lterrors.ErrInvalidInput, p.Status, next)
		}
		p.Status = next
		return nil
	})
	if err != nil {
		return models.ProjectState{}, err
	}

	c.patch(id, map[string]any{"status": string(next)})
	c.publish(models.NewProjectSnapshot(snap))
	return snap, nil
}

// CompleteProject marks the project completed at 100% progress. Completed
// is terminal: every later lifecycle call on this id fails with
// ErrAlreadyTerminal.
func (c *Controller) CompleteProject(id string) (models.ProjectState, error) {
	snap, err := c.apply(id, func(p *models.ProjectState) error {
		p.Status = models.StatusCompleted
		p.Progress = 100.0
		p.CurrentStep = "Project completed"
		return nil
	})
	if err != nil {
		return models.ProjectState{}, err
	}

	c.patch(id, map[string]any{
		"status":       string(models.StatusCompleted),
		"progress":     100.0,
		"current_step": snap.CurrentStep,
	})
	c.publish(models.NewProjectCompleted(snap))

	c.logger.Info().Str("project_id", id).Msg("project completed")
	return snap, nil
}

// RecordFileCreated adds a file path to the project's created set and
// emits file_created. Duplicate paths are ignored without an event.
func (c *Controller) RecordFileCreated(id, path string) (models.ProjectState, error) {
	return c.recordFile(id, path, false)
}

// RecordFileModified adds a file path to the project's modified set and
// emits file_modified. Duplicate paths are ignored without an event.
func (c *Controller) RecordFileModified(id, path string) (models.ProjectState, error) {
	return c.recordFile(id, path, true)
}

func (c *Controller) recordFile(id, path string, modified bool) (models.ProjectState, error) {
	added := false
	snap, err := c.apply(id, func(p *models.ProjectState) error {
		set := &p.CreatedFiles
		if modified {
			set = &p.ModifiedFiles
		}
		for _, existing := range *set {
			if existing == path {
				return nil
			}
		}
		*set = append(*set, path)
		added = true
		return nil
	})
	if err != nil {
		return models.ProjectState{}, err
	}
	if !added {
		return snap, nil
	}

	if modified {
		c.patch(id, map[string]any{"modified_files": snap.ModifiedFiles})
		c.publish(models.NewFileModified(id, path))
	} else {
		c.patch(id, map[string]any{"created_files": snap.CreatedFiles})
		c.publish(models.NewFileCreated(id, path))
	}
	return snap, nil
}

// GetProject returns the current snapshot for id.
func (c *Controller) GetProject(id string) (models.ProjectState, error) {
	return c.registry.Get(id)
}

// ListProjects returns snapshots of all tracked projects.
func (c *Controller) ListProjects() []models.ProjectState {
	return c.registry.List()
}

// apply wraps Registry.Apply with the terminal-state guard shared by all
// lifecycle mutations.
func (c *Controller) apply(id string, fn func(*models.ProjectState) error) (models.ProjectState, error) {
	return c.registry.Apply(id, func(p *models.ProjectState) error {
		if p.Status.Terminal() {
			return lterrors.ErrAlreadyTerminal
		}
		return fn(p)
	})
}

func (c *Controller) patch(id string, fields map[string]any) {
	if c.store == nil {
		return
	}
	if err := c.store.UpdateProjectFields(id, fields); err != nil {
		c.reportStoreError("patch", id, err)
	}
}

// publish runs after the registry entry lock is released, so two racing
// mutators on the same project may emit their events in either order and
// the last event seen need not match the final registry state. Observers
// that need the settled state read the project_state snapshot replayed on
// subscribe or GET the project.
func (c *Controller) publish(ev models.LiveEvent) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func (c *Controller) reportStoreError(op, id string, err error) {
	storeErr := lterrors.NewStoreError(op, id, err)
	c.logger.Error().Err(storeErr).Msg("persistence write failed")
	if c.metrics != nil {
		c.metrics.RecordStoreError(op)
	}
}

func validTransition(from, to models.Status) bool {
	switch to {
	case models.StatusBuilding:
		return from == models.StatusInitializing
	case models.StatusRunning:
		return from == models.StatusBuilding
	case models.StatusError:
		return !from.Terminal()
	default:
		return false
	}
}
