package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// submitRunHandler handles POST /api/v1/runs. Creates a repair session
// and returns immediately with its run ID; the graph driver executes
// asynchronously through pkg/orchestrator.Pool.
func (s *Server) submitRunHandler(c *gin.Context) {
	var req SubmitRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := models.Config{
		Host:             req.Host,
		Token:            req.Token,
		RepoURL:          req.RepoURL,
		ExecutionBackend: req.ExecutionBackend,
		LLMProvider:      req.LLMProvider,
		LLMModel:         req.LLMModel,
		MaxIterations:    req.MaxIterations,
	}
	group := models.RunGroup{MainRunID: req.MainRunID, RunIDs: req.RunIDs}

	runID, err := s.pool.Admit(c.Request.Context(), cfg, group)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, &RunResponse{RunID: runID, Status: string(models.StatusWorking)})
}

// getRunHandler handles GET /api/v1/runs/:id.
func (s *Server) getRunHandler(c *gin.Context) {
	runID := c.Param("id")

	run, err := s.store.GetAgentRun(c.Request.Context(), runID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, &RunStatusResponse{
		RunID:   run.ID,
		GroupID: run.GroupID,
		Status:  run.Status,
		State:   run.State,
	})
}

// cancelRunHandler handles POST /api/v1/runs/:id/cancel.
func (s *Server) cancelRunHandler(c *gin.Context) {
	runID := c.Param("id")

	if !s.pool.CancelSession(runID) {
		c.JSON(http.StatusConflict, gin.H{"error": "run is not active on this process"})
		return
	}

	c.JSON(http.StatusOK, &CancelResponse{RunID: runID, Message: "cancellation requested"})
}
