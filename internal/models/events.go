package models

import "time"

// EventType identifies the kind of live event.
type EventType string

const (
	EventProjectCreated   EventType = "project_created"
	EventProgressUpdate   EventType = "progress_update"
	EventLogAdded         EventType = "log_added"
	EventErrorAdded       EventType = "error_added"
	EventProjectCompleted EventType = "project_completed"
	EventProjectState     EventType = "project_state"
	EventFileCreated      EventType = "file_created"
	EventFileModified     EventType = "file_modified"
)

// LiveEvent is an immutable change notification fanned out to subscribers.
// Data holds the payload shape fixed by Type; the constructors below are
// the only way events are built, so each type carries exactly one shape.
type LiveEvent struct {
	Type      EventType `json:"event_type"`
	ProjectID string    `json:"project_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// ProgressPayload accompanies progress_update events.
type ProgressPayload struct {
	Progress float64 `json:"progress"`
	Step     string  `json:"step"`
}

// LogPayload accompanies log_added events. Only the new entry is sent,
// not the full list, to bound message size.
type LogPayload struct {
	Log string `json:"log"`
}

// ErrorPayload accompanies error_added events.
type ErrorPayload struct {
	Error string `json:"error"`
}

// FilePayload accompanies file_created and file_modified events.
type FilePayload struct {
	FilePath string `json:"file_path"`
}

func newEvent(t EventType, projectID string, data any) LiveEvent {
	return LiveEvent{
		Type:      t,
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewProjectCreated builds a project_created event carrying a full snapshot.
func NewProjectCreated(snap ProjectState) LiveEvent {
	return newEvent(EventProjectCreated, snap.ID, snap)
}

// NewProgressUpdate builds a progress_update event.
func NewProgressUpdate(projectID string, progress float64, step string) LiveEvent {
	return newEvent(EventProgressUpdate, projectID, ProgressPayload{Progress: progress, Step: step})
}

// NewLogAdded builds a log_added event for one new entry.
func NewLogAdded(projectID, entry string) LiveEvent {
	return newEvent(EventLogAdded, projectID, LogPayload{Log: entry})
}

// NewErrorAdded builds an error_added event for one new entry.
func NewErrorAdded(projectID, entry string) LiveEvent {
	return newEvent(EventErrorAdded, projectID, ErrorPayload{Error: entry})
}

// NewProjectCompleted builds a project_completed event carrying a full snapshot.
func NewProjectCompleted(snap ProjectState) LiveEvent {
	return newEvent(EventProjectCompleted, snap.ID, snap)
}

// NewProjectSnapshot builds the project_state event replayed to new subscribers.
func NewProjectSnapshot(snap ProjectState) LiveEvent {
	return newEvent(EventProjectState, snap.ID, snap)
}

// NewFileCreated builds a file_created event.
func NewFileCreated(projectID, path string) LiveEvent {
	return newEvent(EventFileCreated, projectID, FilePayload{FilePath: path})
}

// NewFileModified builds a file_modified event.
func NewFileModified(projectID, path string) LiveEvent {
	return newEvent(EventFileModified, projectID, FilePayload{FilePath: path})
}
