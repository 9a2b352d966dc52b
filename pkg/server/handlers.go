package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sentientrolodex/backend/pkg/common/errors"
)

const sessionCookie = "access_token"

func handleError(c *gin.Context, err error) {
	appErr := errors.MapError(err)
	c.JSON(appErr.Code, gin.H{"detail": appErr.Message})
}

// currentUser resolves the caller from the session cookie, with a bearer
// header fallback for non-browser clients.
func (s *Server) currentUser(c *gin.Context) (string, error) {
	token, _ := c.Cookie(sessionCookie)
	if token == "" {
		header := c.GetHeader("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
		if token == header {
			token = ""
		}
	}
	user, err := s.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	userID, err := s.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User registered successfully", "user_id": userID})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	token, err := s.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	c.SetCookie(sessionCookie, token, 0, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": token})
}

func (s *Server) handleLogout(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (s *Server) handleCreateSpace(c *gin.Context) {
	userID, err := s.currentUser(c)
	if err != nil {
		handleError(c, err)
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	spaceID, warnings, err := s.orch.CreateSpace(c.Request.Context(), userID, req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":           "Contract space created successfully",
		"contract_space_id": spaceID,
		"warnings":          warnings,
	})
}

func (s *Server) handleAddContract(c *gin.Context) {
	spaceID := c.Param("space_id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing uploaded file", err))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		handleError(c, err)
		return
	}
	defer f.Close()
	document, err := io.ReadAll(f)
	if err != nil {
		handleError(c, err)
		return
	}

	mediaType := fileHeader.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "application/pdf"
	}

	contractID, warnings, err := s.orch.Ingest(c.Request.Context(), spaceID, document, mediaType)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Contract ingested successfully",
		"contract_id": contractID,
		"warnings":    warnings,
	})
}

func (s *Server) handleGetContracts(c *gin.Context) {
	sv, err := s.agg.BuildSpaceView(c.Request.Context(), c.Param("space_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Contracts retrieved successfully",
		"space":     gin.H{"id": sv.ID, "name": sv.Name},
		"contracts": sv.Contracts,
	})
}

func (s *Server) handleUpdateSpace(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	if err := s.contracts.UpdateSpace(c.Request.Context(), c.Param("space_id"), patch); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contract space updated successfully"})
}

func (s *Server) handleOverrideContract(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	if err := s.contracts.UpdateContractMetadata(c.Request.Context(), c.Param("contract_id"), patch); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contract metadata updated successfully"})
}

func (s *Server) handleDeleteContract(c *gin.Context) {
	if err := s.orch.Remove(c.Request.Context(), c.Param("contract_id")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contract deleted successfully"})
}

func (s *Server) handleGetUser(c *gin.Context) {
	uv, err := s.agg.BuildUserView(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, uv)
}

func (s *Server) handleSearch(c *gin.Context) {
	keyword := c.Query("q")
	if strings.TrimSpace(keyword) == "" {
		c.JSON(http.StatusOK, gin.H{"results": []any{}})
		return
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		limit = 10
	}

	results, err := s.agg.SearchSpaces(c.Request.Context(), keyword, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleStartAgent(c *gin.Context) {
	runID, err := s.analyzer.Start(c.Request.Context(), c.Param("contract_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Agent initiated", "agent_id": runID})
}

func (s *Server) handleAgentStatus(c *gin.Context) {
	run, err := s.analyzer.Status(c.Param("agent_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
