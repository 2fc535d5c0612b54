package api

import "github.com/codeready-toolchain/repairagent/pkg/models"

// RunResponse is returned by POST /api/v1/runs.
type RunResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// RunStatusResponse is returned by GET /api/v1/runs/:id.
type RunStatusResponse struct {
	RunID    string            `json:"runId"`
	GroupID  string            `json:"groupId"`
	Status   models.RunStatus  `json:"status"`
	State    models.GraphState `json:"state"`
}

// CancelResponse is returned by POST /api/v1/runs/:id/cancel.
type CancelResponse struct {
	RunID   string `json:"runId"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents the status of a single health check component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
