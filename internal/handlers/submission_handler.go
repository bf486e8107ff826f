package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/services"
	"github.com/TheraFlow-Health/assessment-service/internal/utils"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type SubmissionHandler struct {
	BaseHandler
	submissionService services.SubmissionService
	validator         *validator.Validator
}

func NewSubmissionHandler(
	submissionService services.SubmissionService,
	validator *validator.Validator,
	logger utils.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:       NewBaseHandler(logger),
		submissionService: submissionService,
		validator:         validator,
	}
}

// CreateSubmission records a submission on behalf of a known client
// @Summary Create submission
// @Description Records an in-session submission captured by the therapist for an existing client
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param submission body services.CreateSubmissionRequest true "Submission data"
// @Success 201 {object} services.SubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id}/submissions [post]
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	var req services.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating submission", "assessment_id", assessmentID, "client_id", req.ClientID)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	submission, err := h.submissionService.Create(c.Request.Context(), assessmentID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}

// GetSubmission retrieves a submission with its responses
// @Summary Get submission
// @Tags submissions
// @Produce json
// @Param id path uint true "Submission ID"
// @Success 200 {object} services.SubmissionResponse
// @Failure 404 {object} ErrorResponse
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	submission, err := h.submissionService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// ListSubmissionsByAssessment lists submissions for an assessment
// @Summary List submissions by assessment
// @Tags submissions
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param client_id query uint false "Filter by client"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} services.SubmissionListResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/submissions [get]
func (h *SubmissionHandler) ListSubmissionsByAssessment(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.parseSubmissionFilters(c)
	submissions, err := h.submissionService.ListByAssessment(c.Request.Context(), assessmentID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submissions)
}

// ListSubmissionsByClient lists a client's submission history
// @Summary List submissions by client
// @Tags submissions
// @Produce json
// @Param id path uint true "Client ID"
// @Success 200 {object} services.SubmissionListResponse
// @Failure 404 {object} ErrorResponse
// @Router /clients/{id}/submissions [get]
func (h *SubmissionHandler) ListSubmissionsByClient(c *gin.Context) {
	clientID := h.parseIDParam(c, "id")
	if clientID == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.parseSubmissionFilters(c)
	submissions, err := h.submissionService.ListByClient(c.Request.Context(), clientID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submissions)
}

// AnnotateSubmission attaches therapist notes and a score
// @Summary Annotate submission
// @Description Updates therapist notes and score on a submission. Client responses are immutable.
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Param annotation body services.AnnotateSubmissionRequest true "Notes and score"
// @Success 200 {object} services.SubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /submissions/{id}/annotate [put]
func (h *SubmissionHandler) AnnotateSubmission(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.AnnotateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Annotating submission", "submission_id", id)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	submission, err := h.submissionService.Annotate(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

func (h *SubmissionHandler) parseSubmissionFilters(c *gin.Context) repositories.SubmissionFilters {
	var filters repositories.SubmissionFilters

	if clientID := parseUintQuery(c, "client_id"); clientID != nil {
		filters.ClientID = clientID
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.DateTo = &t
		}
	}

	filters.Limit, filters.Offset = parsePagination(c)
	filters.SortBy = c.DefaultQuery("sort_by", "submitted_at")
	filters.SortOrder = c.DefaultQuery("sort_order", "desc")

	return filters
}
