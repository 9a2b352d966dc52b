// Package server is the thin HTTP layer over the contract engine. Route
// shapes follow the original API surface; all domain logic lives in the
// packages it delegates to.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentientrolodex/backend/pkg/agent"
	"github.com/sentientrolodex/backend/pkg/auth"
	"github.com/sentientrolodex/backend/pkg/ingestion"
	"github.com/sentientrolodex/backend/pkg/store"
	"github.com/sentientrolodex/backend/pkg/view"
)

// Server holds the state for the REST API server.
type Server struct {
	auth      *auth.Service
	orch      *ingestion.Orchestrator
	agg       *view.Aggregator
	analyzer  *agent.Analyzer
	contracts *store.Store
	router    *gin.Engine
}

// NewServer creates a new Server instance.
func NewServer(authSvc *auth.Service, orch *ingestion.Orchestrator, agg *view.Aggregator, analyzer *agent.Analyzer, s *store.Store) *Server {
	r := gin.Default()
	srv := &Server{
		auth:      authSvc,
		orch:      orch,
		agg:       agg,
		analyzer:  analyzer,
		contracts: s,
		router:    r,
	}
	srv.setupRoutes()
	return srv
}

// Run starts the server on the specified address.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api/v1")

	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/logout", s.handleLogout)

	api.POST("/contracts/create-space", s.handleCreateSpace)
	api.POST("/contracts/add_contracts/:space_id", s.handleAddContract)
	api.GET("/contracts/:space_id", s.handleGetContracts)
	api.PUT("/contracts/update/:space_id", s.handleUpdateSpace)
	api.PUT("/contracts/override/:contract_id", s.handleOverrideContract)
	api.DELETE("/contracts/:contract_id", s.handleDeleteContract)

	api.GET("/user/:user_id", s.handleGetUser)
	api.GET("/search", s.handleSearch)

	api.POST("/agents/:contract_id", s.handleStartAgent)
	api.GET("/agents/status/:agent_id", s.handleAgentStatus)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}
