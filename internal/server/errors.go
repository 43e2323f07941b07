package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/claimaudit/internal/audit/domain"
	caseauditdomain "github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"github.com/smallbiznis/claimaudit/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, caseauditdomain.ErrPermissionDenied):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    caseauditdomain.ErrPermissionDenied.Error(),
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, caseauditdomain.ErrConcurrentModification),
		errors.Is(err, caseauditdomain.ErrInvalidTransition),
		errors.Is(err, caseauditdomain.ErrDuplicateCase),
		errors.Is(err, caseauditdomain.ErrBatchInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    conflictCode(err),
			Message: "conflict",
		}
	case errors.Is(err, caseauditdomain.ErrIncompleteReview),
		errors.Is(err, caseauditdomain.ErrSelectionExhausted):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Code:    unprocessableCode(err),
			Message: "request cannot be processed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog gives the request logger a stable type and code.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if code == "" && status >= http.StatusInternalServerError {
		code = "internal_error"
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	quarter.ErrInvalidQuarterFormat,
	pagination.ErrInvalidPageToken,
	caseauditdomain.ErrInvalidFilter,
	caseauditdomain.ErrInvalidActionKind,
	caseauditdomain.ErrInvalidReview,
	caseauditdomain.ErrInvalidActor,
	caseauditdomain.ErrInvalidRecord,
	caseauditdomain.ErrInvalidPreloaded,
	caseauditdomain.ErrInvalidCandidate,
	reviewerdomain.ErrInvalidUserID,
	reviewerdomain.ErrInvalidRole,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidAction,
	auditdomain.ErrInvalidTarget,
}

func validationErrorCode(err error) (string, bool) {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

func validationErrorField(code string) string {
	switch code {
	case quarter.ErrInvalidQuarterFormat.Error():
		return "quarter"
	case caseauditdomain.ErrInvalidActionKind.Error():
		return "kind"
	case caseauditdomain.ErrInvalidActor.Error():
		return "actor"
	case caseauditdomain.ErrInvalidPreloaded.Error():
		return "pre_loaded_count"
	case ErrInvalidRequest.Error():
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, caseauditdomain.ErrCaseNotFound),
		errors.Is(err, reviewerdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictCode(err error) string {
	for _, sentinel := range []error{
		caseauditdomain.ErrConcurrentModification,
		caseauditdomain.ErrInvalidTransition,
		caseauditdomain.ErrDuplicateCase,
		caseauditdomain.ErrBatchInProgress,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "conflict"
}

func unprocessableCode(err error) string {
	if errors.Is(err, caseauditdomain.ErrSelectionExhausted) {
		return caseauditdomain.ErrSelectionExhausted.Error()
	}
	return caseauditdomain.ErrIncompleteReview.Error()
}
