// Package simulator drives a scripted react-app build through the
// lifecycle controller: progress steps, per-file logs, and stage file
// batches, ending in completion. It exists to exercise the live pipeline;
// the generated content itself is placeholder.
package simulator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/livetrack/internal/lifecycle"
	"github.com/p-blackswan/livetrack/internal/models"
)

type step struct {
	label    string
	progress float64
}

var buildSteps = []step{
	{"Initializing project", 5},
	{"Creating folder structure", 15},
	{"Generating package.json", 25},
	{"Creating React components", 35},
	{"Configuring styles and CSS", 45},
	{"Configuring build tools", 55},
	{"Creating responsive components", 65},
	{"Configuring routes and navigation", 75},
	{"Optimizing performance", 85},
	{"Finalizing configuration", 95},
	{"Project completed", 100},
}

var stageFiles = map[float64][]string{
	15: {"src/", "src/components/", "src/pages/", "src/utils/", "public/", "src/assets/"},
	25: {"package.json"},
	35: {
		"src/components/App.jsx", "src/components/Header.jsx", "src/components/Footer.jsx",
		"src/components/Sidebar.jsx", "src/components/MainContent.jsx", "src/components/Button.jsx",
		"src/components/Modal.jsx", "src/components/Card.jsx",
	},
	45: {
		"src/App.css", "src/index.css", "src/components.css",
		"src/responsive.css", "src/animations.css", "src/variables.css",
	},
	55: {"webpack.config.js", "babel.config.js", ".env", "tsconfig.json"},
	65: {
		"src/components/MobileNav.jsx", "src/components/TabletLayout.jsx",
		"src/components/DesktopHeader.jsx", "src/components/ResponsiveGrid.jsx",
	},
	75: {"src/Router.jsx", "src/routes/index.js", "src/pages/Home.jsx", "src/pages/About.jsx"},
}

var optimizations = []string{
	"Lazy loading components", "Code splitting", "Bundle optimization",
	"Cache configuration", "Performance monitoring",
}

// Simulator runs scripted builds against the lifecycle controller.
type Simulator struct {
	controller   *lifecycle.Controller
	stepInterval time.Duration
	fileInterval time.Duration
	logger       zerolog.Logger
}

// New creates a simulator. Intervals at or below zero fall back to the
// original pacing (200ms per step, 50ms per file).
func New(controller *lifecycle.Controller, stepInterval, fileInterval time.Duration, logger zerolog.Logger) *Simulator {
	if stepInterval <= 0 {
		stepInterval = 200 * time.Millisecond
	}
	if fileInterval <= 0 {
		fileInterval = 50 * time.Millisecond
	}
	return &Simulator{
		controller:   controller,
		stepInterval: stepInterval,
		fileInterval: fileInterval,
		logger:       logger.With().Str("component", "simulator").Logger(),
	}
}

// Run drives one project through the full build script. It returns early
// on context cancellation or when the project stops accepting mutations.
func (s *Simulator) Run(ctx context.Context, projectID string) error {
	for _, st := range buildSteps {
		if _, err := s.controller.UpdateProgress(projectID, st.progress, st.label); err != nil {
			return err
		}
		if _, err := s.controller.AddLog(projectID, st.label); err != nil {
			return err
		}

		switch st.progress {
		case 15:
			if _, err := s.controller.Transition(projectID, models.StatusBuilding); err != nil {
				return err
			}
		case 95:
			if _, err := s.controller.Transition(projectID, models.StatusRunning); err != nil {
				return err
			}
		}

		if err := sleep(ctx, s.stepInterval); err != nil {
			return err
		}

		if files, ok := stageFiles[st.progress]; ok {
			if err := s.createFiles(ctx, projectID, files); err != nil {
				return err
			}
		}
		if st.progress == 85 {
			for _, opt := range optimizations {
				if _, err := s.controller.AddLog(projectID, "Optimizing: "+opt); err != nil {
					return err
				}
				if err := sleep(ctx, s.fileInterval); err != nil {
					return err
				}
			}
		}
	}

	if _, err := s.controller.CompleteProject(projectID); err != nil {
		return err
	}

	s.logger.Info().Str("project_id", projectID).Msg("simulated build finished")
	return nil
}

func (s *Simulator) createFiles(ctx context.Context, projectID string, files []string) error {
	for _, f := range files {
		if _, err := s.controller.AddLog(projectID, "Creating: "+f); err != nil {
			return err
		}
		if _, err := s.controller.RecordFileCreated(projectID, f); err != nil {
			return err
		}
		if err := sleep(ctx, s.fileInterval); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
