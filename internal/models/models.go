// Package models defines the project state and live event types shared
// across the registry, lifecycle controller, event bus, and gateway.
package models

import "time"

// Status is the lifecycle state of a project.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusBuilding     Status = "building"
	StatusRunning      Status = "running"
	StatusError        Status = "error"
	StatusCompleted    Status = "completed"
)

// Terminal reports whether no further lifecycle transitions are accepted.
// Only completed is terminal; error still receives log and progress events.
func (s Status) Terminal() bool { return s == StatusCompleted }

// ProjectState is the authoritative in-memory state of one tracked project.
// It is mutated exclusively through the lifecycle controller.
type ProjectState struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        Status    `json:"status"`
	Progress      float64   `json:"progress"`
	CurrentStep   string    `json:"current_step"`
	CreatedFiles  []string  `json:"created_files"`
	ModifiedFiles []string  `json:"modified_files"`
	Errors        []string  `json:"errors"`
	Logs          []string  `json:"logs"`
	Timestamp     time.Time `json:"timestamp"`
}

// Clone returns a deep copy safe to hand out as a snapshot.
func (p ProjectState) Clone() ProjectState {
	c := p
	c.CreatedFiles = append([]string(nil), p.CreatedFiles...)
	c.ModifiedFiles = append([]string(nil), p.ModifiedFiles...)
	c.Errors = append([]string(nil), p.Errors...)
	c.Logs = append([]string(nil), p.Logs...)
	return c
}
