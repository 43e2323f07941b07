package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	caseauditdomain "github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/quarter"
)

// candidateStore accepts new entries for the case feed.
type candidateStore interface {
	Add(ctx context.Context, cases []caseauditdomain.CandidateCase) (int, error)
}

type planBatchRequest struct {
	// PreLoadedCount is derived from stored records when omitted.
	PreLoadedCount *int `json:"pre_loaded_count,omitempty"`
}

type importPreloadedRequest struct {
	Records []caseauditdomain.CaseAuditRecord `json:"records"`
}

type addCandidatesRequest struct {
	Cases []caseauditdomain.CandidateCase `json:"cases"`
}

func (s *Server) PlanBatch(c *gin.Context) {
	q, err := quarterParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req planBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	var records []caseauditdomain.CaseAuditRecord
	if req.PreLoadedCount == nil {
		records, err = s.batchSvc.BuildQuarter(ctx, q)
	} else {
		records, err = s.batchSvc.Plan(ctx, q, *req.PreLoadedCount)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": records, "quarter": q.String()})
}

func (s *Server) ImportPreloaded(c *gin.Context) {
	q, err := quarterParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req importPreloadedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	for i := range req.Records {
		r := &req.Records[i]
		if r.Quarter == (quarter.Period{}) {
			r.Quarter = q
			continue
		}
		if r.Quarter != q {
			AbortWithError(c, fmt.Errorf("record %q in %s: %w", r.ID, r.Quarter, caseauditdomain.ErrInvalidRecord))
			return
		}
	}

	records, err := s.batchSvc.ImportPreloaded(c.Request.Context(), req.Records)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": records})
}

func (s *Server) AddCandidates(c *gin.Context) {
	var req addCandidatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Cases) == 0 {
		AbortWithError(c, newValidationError("cases", "required", "cases is required"))
		return
	}

	added, err := s.candidates.Add(c.Request.Context(), req.Cases)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"added": added})
}
