// Package api exposes the REST surface for project lifecycle operations.
package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/livetrack/internal/models"
)

// --- Request DTOs ---

// CreateProjectRequest is the payload for POST /api/v1/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	ProjectType string `json:"project_type"`
}

// ProgressRequest is the payload for POST /api/v1/projects/:id/progress.
type ProgressRequest struct {
	Progress float64 `json:"progress"`
	Step     string  `json:"step"`
}

// MessageRequest is the payload for the log and error endpoints.
type MessageRequest struct {
	Message string `json:"message"`
}

// --- Response DTOs ---

// ProjectResponse wraps a project snapshot.
type ProjectResponse struct {
	Project models.ProjectState `json:"project"`
}

// ProjectListResponse wraps all tracked projects.
type ProjectListResponse struct {
	Projects []models.ProjectState `json:"projects"`
	Total    int                   `json:"total"`
}

// CreateProjectResponse is the response for POST /api/v1/projects.
type CreateProjectResponse struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func problemResponse(c *fiber.Ctx, status int, problemType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}
