package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
)

type upsertUserRequest struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

func (s *Server) UpsertUser(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req upsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reviewerSvc.Upsert(c.Request.Context(), reviewerdomain.UpsertRequest{
		ID:          id,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Enabled:     req.Enabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListUsers(c *gin.Context) {
	enabledOnly, err := parseOptionalBool(c.Query("enabled_only"))
	if err != nil {
		AbortWithError(c, newValidationError("enabled_only", "invalid_enabled_only", "invalid enabled_only"))
		return
	}

	req := reviewerdomain.ListRequest{Role: strings.TrimSpace(c.Query("role"))}
	if enabledOnly != nil {
		req.EnabledOnly = *enabledOnly
	}

	items, err := s.reviewerSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetUser(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reviewerSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetQuarterlyStatus(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	q, err := quarterParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.caseAuditSvc.QuarterlyStatus(c.Request.Context(), id, q)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
