package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	lterrors "github.com/p-blackswan/livetrack/internal/errors"
	"github.com/p-blackswan/livetrack/internal/health"
	"github.com/p-blackswan/livetrack/internal/lifecycle"
)

// defaultProjectType is the only project type with a scripted build.
const defaultProjectType = "react_app"

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	controller *lifecycle.Controller
	checker    *health.Checker
	startBuild func(projectID string)
	logger     zerolog.Logger
}

// NewHandlers creates a new Handlers instance. startBuild is invoked for
// every project whose type has a scripted build; nil disables it.
func NewHandlers(controller *lifecycle.Controller, checker *health.Checker, startBuild func(projectID string), logger zerolog.Logger) *Handlers {
	return &Handlers{
		controller: controller,
		checker:    checker,
		startBuild: startBuild,
		logger:     logger.With().Str("component", "handlers").Logger(),
	}
}

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if req.Name == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_name", "Bad Request",
			"Project name is required")
	}
	if req.ProjectType == "" {
		req.ProjectType = defaultProjectType
	}

	snap := h.controller.CreateProject(req.Name)

	if req.ProjectType == defaultProjectType && h.startBuild != nil {
		h.startBuild(snap.ID)
	}

	return c.Status(fiber.StatusCreated).JSON(CreateProjectResponse{
		ProjectID: snap.ID,
		Status:    "created",
	})
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	projects := h.controller.ListProjects()
	return c.JSON(ProjectListResponse{
		Projects: projects,
		Total:    len(projects),
	})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	id := c.Params("id")
	snap, err := h.controller.GetProject(id)
	if err != nil {
		return h.lifecycleProblem(c, err)
	}
	return c.JSON(ProjectResponse{Project: snap})
}

// UpdateProgress handles POST /api/v1/projects/:id/progress.
func (h *Handlers) UpdateProgress(c *fiber.Ctx) error {
	var req ProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	snap, err := h.controller.UpdateProgress(c.Params("id"), req.Progress, req.Step)
	if err != nil {
		return h.lifecycleProblem(c, err)
	}
	return c.JSON(ProjectResponse{Project: snap})
}

// AddLog handles POST /api/v1/projects/:id/logs.
func (h *Handlers) AddLog(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Message == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_message", "Bad Request",
			"Message is required")
	}

	snap, err := h.controller.AddLog(c.Params("id"), req.Message)
	if err != nil {
		return h.lifecycleProblem(c, err)
	}
	return c.JSON(ProjectResponse{Project: snap})
}

// AddError handles POST /api/v1/projects/:id/errors.
func (h *Handlers) AddError(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Message == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_message", "Bad Request",
			"Message is required")
	}

	snap, err := h.controller.AddError(c.Params("id"), req.Message)
	if err != nil {
		return h.lifecycleProblem(c, err)
	}
	return c.JSON(ProjectResponse{Project: snap})
}

// CompleteProject handles POST /api/v1/projects/:id/complete.
func (h *Handlers) CompleteProject(c *fiber.Ctx) error {
	snap, err := h.controller.CompleteProject(c.Params("id"))
	if err != nil {
		return h.lifecycleProblem(c, err)
	}
	return c.JSON(ProjectResponse{Project: snap})
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.checker != nil && !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// lifecycleProblem maps controller errors onto problem responses.
func (h *Handlers) lifecycleProblem(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, lterrors.ErrProjectNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"project_not_found", "Not Found", err.Error())
	case errors.Is(err, lterrors.ErrAlreadyTerminal):
		return problemResponse(c, fiber.StatusConflict,
			"already_completed", "Conflict", err.Error())
	case errors.Is(err, lterrors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_input", "Bad Request", err.Error())
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled lifecycle error")
		return problemResponse(c, fiber.StatusInternalServerError,
			"internal_error", "Internal Server Error", "An internal error occurred")
	}
}
