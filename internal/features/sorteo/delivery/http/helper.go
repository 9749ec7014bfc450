package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "sorteos-backend/internal/common/errors"
)

// paramID parses a positive int64 path parameter.
func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewValidationError("limit", "must be a non-negative integer")
	}
	return n, nil
}
