package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	for _, s := range []Status{StatusInitializing, StatusBuilding, StatusRunning, StatusError} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestProjectState_Clone(t *testing.T) {
	p := ProjectState{
		ID:           "p1",
		Logs:         []string{"one"},
		CreatedFiles: []string{"src/"},
	}

	c := p.Clone()
	c.Logs[0] = "tampered"
	c.CreatedFiles = append(c.CreatedFiles, "extra")

	assert.Equal(t, []string{"one"}, p.Logs)
	assert.Equal(t, []string{"src/"}, p.CreatedFiles)
}

func TestLiveEvent_WireFormat(t *testing.T) {
	ev := NewProgressUpdate("p1", 15, "folders")

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "progress_update", decoded["event_type"])
	assert.Equal(t, "p1", decoded["project_id"])
	assert.Contains(t, decoded, "timestamp")

	data, ok := decoded["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 15.0, data["progress"])
	assert.Equal(t, "folders", data["step"])
}

func TestLiveEvent_SnapshotCarriesProjectID(t *testing.T) {
	ev := NewProjectSnapshot(ProjectState{ID: "p1", Name: "demo"})
	assert.Equal(t, EventProjectState, ev.Type)
	assert.Equal(t, "p1", ev.ProjectID)
	assert.False(t, ev.Timestamp.IsZero())
}
