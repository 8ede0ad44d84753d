package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/livetrack/internal/bus"
	"github.com/p-blackswan/livetrack/internal/lifecycle"
	"github.com/p-blackswan/livetrack/internal/models"
	"github.com/p-blackswan/livetrack/internal/registry"
)

type noopStore struct{}

func (noopStore) SaveProject(models.ProjectState) error            { return nil }
func (noopStore) UpdateProjectFields(string, map[string]any) error { return nil }

func newTestSimulator(t *testing.T) (*Simulator, *lifecycle.Controller) {
	t.Helper()
	eventBus := bus.New(16, nil, zerolog.Nop())
	t.Cleanup(eventBus.Close)
	controller := lifecycle.New(registry.New(), noopStore{}, eventBus, nil, zerolog.Nop())
	sim := New(controller, time.Microsecond, time.Microsecond, zerolog.Nop())
	return sim, controller
}

func TestSimulator_RunCompletesProject(t *testing.T) {
	sim, controller := newTestSimulator(t)
	snap := controller.CreateProject("demo")

	require.NoError(t, sim.Run(context.Background(), snap.ID))

	got, err := controller.GetProject(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 100.0, got.Progress)
	assert.Equal(t, "Project completed", got.CurrentStep)
}

func TestSimulator_RecordsStageFiles(t *testing.T) {
	sim, controller := newTestSimulator(t)
	snap := controller.CreateProject("demo")

	require.NoError(t, sim.Run(context.Background(), snap.ID))

	got, err := controller.GetProject(snap.ID)
	require.NoError(t, err)

	var total int
	for _, files := range stageFiles {
		total += len(files)
	}
	assert.Len(t, got.CreatedFiles, total)
	assert.Contains(t, got.CreatedFiles, "package.json")
	assert.Contains(t, got.CreatedFiles, "src/components/App.jsx")
	assert.Contains(t, got.CreatedFiles, "src/Router.jsx")
}

func TestSimulator_LogsEveryStepAndFile(t *testing.T) {
	sim, controller := newTestSimulator(t)
	snap := controller.CreateProject("demo")

	require.NoError(t, sim.Run(context.Background(), snap.ID))

	got, err := controller.GetProject(snap.ID)
	require.NoError(t, err)

	var fileCount int
	for _, files := range stageFiles {
		fileCount += len(files)
	}
	want := len(buildSteps) + fileCount + len(optimizations)
	assert.Len(t, got.Logs, want)
}

func TestSimulator_ContextCancellationStopsRun(t *testing.T) {
	sim, controller := newTestSimulator(t)
	snap := controller.CreateProject("demo")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sim.Run(ctx, snap.ID)
	assert.ErrorIs(t, err, context.Canceled)

	got, err := controller.GetProject(snap.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.StatusCompleted, got.Status)
}

func TestSimulator_StopsWhenProjectCompletedExternally(t *testing.T) {
	sim, controller := newTestSimulator(t)
	snap := controller.CreateProject("demo")

	_, err := controller.CompleteProject(snap.ID)
	require.NoError(t, err)

	err = sim.Run(context.Background(), snap.ID)
	assert.Error(t, err)
}
