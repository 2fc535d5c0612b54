package api

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
)

// writeError maps a domain error to an HTTP status and JSON body,
// following the teacher's mapServiceError dispatch-by-type pattern.
func writeError(c *gin.Context, err error) {
	var overloaded *repairerrors.OverloadedError
	if stderrors.As(err, &overloaded) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	}

	var clientErr *repairerrors.ClientError
	if stderrors.As(err, &clientErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if stderrors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	slog.Error("unexpected api error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
