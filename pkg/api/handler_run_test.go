package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

type fakePool struct {
	cancelled map[string]bool
}

func (f *fakePool) Admit(ctx context.Context, cfg models.Config, group models.RunGroup) (string, error) {
	return "", nil
}

func (f *fakePool) CancelSession(runID string) bool {
	return f.cancelled[runID]
}

// We only test request validation here — it returns 400 before
// touching the pool or store. Happy-path admission is covered by
// pkg/orchestrator's own tests.
func TestSubmitRunHandlerRejectsMissingRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{}

	tests := []struct {
		name string
		body string
	}{
		{name: "missing repoUrl", body: `{"host":"github.com","mainRunId":"run-1"}`},
		{name: "missing mainRunId", body: `{"host":"github.com","repoUrl":"https://github.com/o/r"}`},
		{name: "missing host", body: `{"repoUrl":"https://github.com/o/r","mainRunId":"run-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			s.submitRunHandler(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCancelRunHandlerReturnsConflictWhenNotActive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{pool: &fakePool{cancelled: map[string]bool{}}}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/runs/run-1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	s.cancelRunHandler(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelRunHandlerReturnsOKWhenActive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{pool: &fakePool{cancelled: map[string]bool{"run-1": true}}}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/runs/run-1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	s.cancelRunHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
}
