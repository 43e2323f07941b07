package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/claimaudit/internal/quarter"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func quarterParam(c *gin.Context) (quarter.Period, error) {
	return quarter.Parse(strings.TrimSpace(c.Param("quarter")))
}

func idParam(c *gin.Context) (string, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return "", newValidationError("id", "required", "id is required")
	}
	return id, nil
}
