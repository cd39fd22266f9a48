package ingestion

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	v1 "github.com/Warrelis/huba/internal/api/v1"
	httperr "github.com/Warrelis/huba/internal/core/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgIngestFailed   = "Failed to ingest batch"
)

// ingestionError carries the structured HTTP error shape from a helper back to the handler.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestHandler handles HTTP POST requests for batch ingestion.
func (s *Service) IngestHandler(c *gin.Context) {
	batch, payloadSize, err := s.parseBatch(c)
	if err != nil {
		writeError(c, err)
		return
	}

	slog.Info("Received batch",
		"batch_id", batch.ID,
		"messages", len(batch.Messages),
		"payload_size", payloadSize)

	resp, ingestErr := s.node.Ingest(c.Request.Context(), batch)
	if ingestErr != nil {
		slog.Error("Batch ingest failed", "error", ingestErr, "batch_id", batch.ID)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgIngestFailed,
		})
		return
	}

	if resp.Rejected > 0 {
		slog.Warn("Batch partially rejected",
			"batch_id", batch.ID,
			"accepted", resp.Accepted,
			"rejected", resp.Rejected)
	}

	c.JSON(http.StatusAccepted, resp)
}

// parseBatch reads the raw request body and binds it into a LogBatch,
// assigning a batch ID when the client left it empty. Returns the parsed
// batch and the raw payload size (used for structured logging upstream).
func (s *Service) parseBatch(c *gin.Context) (*v1.LogBatch, int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	var batch v1.LogBatch
	if err := json.Unmarshal(bodyBytes, &batch); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	return &batch, len(bodyBytes), nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
