package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/claimaudit/internal/audit/domain"
	caseauditdomain "github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/pkg/db/pagination"
)

// targetTypeRecord matches the target type the lifecycle writes to the trail.
const targetTypeRecord = "case_audit_record"

type actionRequest struct {
	Kind            string                         `json:"kind"`
	Review          *caseauditdomain.ReviewPayload `json:"review,omitempty"`
	ExpectedVersion *int64                         `json:"expected_version,omitempty"`
}

func (s *Server) ListRecords(c *gin.Context) {
	var req caseauditdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.caseAuditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Records, "page_info": resp.PageInfo})
}

func (s *Server) GetRecord(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.caseAuditSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) CanAct(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision, err := s.caseAuditSvc.CanAct(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": decision})
}

func (s *Server) ActOnRecord(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.caseAuditSvc.Act(c.Request.Context(), caseauditdomain.ActionRequest{
		RecordID:        id,
		ActorID:         currentUserID(c),
		Kind:            caseauditdomain.ActionKind(strings.TrimSpace(req.Kind)),
		Review:          req.Review,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

// ListRecordEvents returns the trail of one record, newest first.
func (s *Server) ListRecordEvents(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	if _, err := s.caseAuditSvc.Get(ctx, id); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(ctx, auditdomain.ListRequest{
		Pagination: page,
		Action:     strings.TrimSpace(c.Query("action")),
		TargetType: targetTypeRecord,
		TargetID:   id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Entries, "page_info": resp.PageInfo})
}
