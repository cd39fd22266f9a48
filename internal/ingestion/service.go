package ingestion

import (
	"github.com/Warrelis/huba/internal/node"
	"github.com/gin-gonic/gin"
)

type Service struct {
	node             node.Node
	maxBodySizeBytes int
}

func NewService(n node.Node, maxBodySizeMB int) *Service {
	if n == nil {
		panic("ingestion: node must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		node:             n,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/ingest", s.IngestHandler)
}
