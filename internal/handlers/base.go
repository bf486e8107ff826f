package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/TheraFlow-Health/assessment-service/internal/services"
	"github.com/TheraFlow-Health/assessment-service/internal/utils"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

// ErrorResponse is the common error payload
type ErrorResponse struct {
	Message string      `json:"message"`
	Details string      `json:"details,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// SuccessResponse wraps data payloads that carry a message
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the shared handler plumbing
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs a handler entry with request context
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	h.logger.Info(msg, args...)
}

// parseIDParam parses a numeric path parameter. On failure it writes a 400
// response and returns 0; callers must return immediately on 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
			Details: "must be a positive integer",
		})
		return 0
	}
	return uint(id)
}

// ParseStringIDParam reads a string path parameter, writing a 400 on empty
func ParseStringIDParam(c *gin.Context, name string) string {
	value := c.Param(name)
	if value == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
		})
	}
	return value
}

// currentUserID extracts the authenticated user from the request context.
// Writes a 401 and returns false when missing.
func (h *BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID.(string), true
}

// parsePagination reads limit/offset query parameters with sane bounds
func parsePagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// LogError logs a handler-level failure with request context
func (h *BaseHandler) LogError(c *gin.Context, err error, msg string) {
	h.logger.Error(msg, "error", err, "method", c.Request.Method, "path", c.FullPath())
}

// parseUintQuery reads an optional numeric query parameter
func parseUintQuery(c *gin.Context, name string) *uint {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	id := uint(value)
	return &id
}

// handleServiceError maps service errors onto HTTP status codes
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Errors:  validationErrs,
		})
		return
	}

	var permErr *services.PermissionError
	if errors.As(err, &permErr) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Permission denied",
			Details: permErr.Reason,
		})
		return
	}

	var ruleErr *services.BusinessRuleError
	if errors.As(err, &ruleErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: ruleErr.Message,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrAssessmentNotFound),
		errors.Is(err, services.ErrLinkNotFound),
		errors.Is(err, services.ErrSubmissionNotFound),
		errors.Is(err, services.ErrClientNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: err.Error(),
		})

	case errors.Is(err, services.ErrQuestionInUse),
		errors.Is(err, services.ErrQuestionAlreadyLinked),
		errors.Is(err, services.ErrDuplicateSubmission):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
		})

	default:
		h.logger.Error("Unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
