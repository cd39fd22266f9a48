package query

import (
	"log/slog"
	"net/http"

	v1 "github.com/Warrelis/huba/internal/api/v1"
	httperr "github.com/Warrelis/huba/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// QueryHandler handles HTTP POST requests for query execution.
//
// Query-level outcomes travel in-band: the response body is always a
// QueryResponse with its own status code, and the HTTP status stays 200 so
// upstream tiers can distinguish transport failure (no QueryResponse at
// all) from an in-band error. Only malformed JSON gets an HTTP error.
func (s *Service) QueryHandler(c *gin.Context) {
	var q v1.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		slog.Warn("Invalid query body received", "error", err)
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON body",
			Details:   err.Error(),
		})
		return
	}

	resp := s.node.Query(c.Request.Context(), &q)

	if resp.Failed() {
		slog.Warn("Query failed",
			"table", q.Table,
			"status", resp.StatusCode,
			"error", resp.Error)
	} else {
		slog.Info("Query executed",
			"table", q.Table,
			"rows", len(resp.Rows),
			"status", resp.StatusCode)
	}

	c.JSON(http.StatusOK, resp)
}
