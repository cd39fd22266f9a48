package query

import (
	"github.com/Warrelis/huba/internal/node"
	"github.com/gin-gonic/gin"
)

// Service exposes the query endpoint of one tier. The same handler serves
// leaves, aggregators, and the root: tier behavior lives in the node.
type Service struct {
	node node.Node
}

func NewService(n node.Node) *Service {
	if n == nil {
		panic("query: node must not be nil")
	}
	return &Service{node: n}
}

// RegisterRoutes registers the query service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/query", s.QueryHandler)
}
