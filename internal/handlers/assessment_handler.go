package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/services"
	"github.com/TheraFlow-Health/assessment-service/internal/utils"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type AssessmentHandler struct {
	BaseHandler
	assessmentService services.AssessmentService
	linkService       services.AssessmentQuestionService
	exportService     services.ExportService
	validator         *validator.Validator
}

func NewAssessmentHandler(
	assessmentService services.AssessmentService,
	linkService services.AssessmentQuestionService,
	exportService services.ExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *AssessmentHandler {
	return &AssessmentHandler{
		BaseHandler:       NewBaseHandler(logger),
		assessmentService: assessmentService,
		linkService:       linkService,
		exportService:     exportService,
		validator:         validator,
	}
}

// CreateAssessment creates a new assessment
// @Summary Create assessment
// @Description Creates a new assessment, optionally linking questions in one call
// @Tags assessments
// @Accept json
// @Produce json
// @Param assessment body services.CreateAssessmentRequest true "Assessment data"
// @Success 201 {object} services.AssessmentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /assessments [post]
func (h *AssessmentHandler) CreateAssessment(c *gin.Context) {
	var req services.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	assessment, err := h.assessmentService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, assessment)
}

// GetAssessment retrieves an assessment by ID
// @Summary Get assessment
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} services.AssessmentResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	assessment, err := h.assessmentService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// GetAssessmentWithQuestions retrieves an assessment with its effective questions
// @Summary Get assessment with questions
// @Description Retrieves an assessment including the ordered question list with overrides applied
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} services.AssessmentResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/details [get]
func (h *AssessmentHandler) GetAssessmentWithQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting assessment with questions", "assessment_id", id)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	assessment, err := h.assessmentService.GetByIDWithQuestions(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// UpdateAssessment updates an existing assessment
// @Summary Update assessment
// @Tags assessments
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param assessment body services.UpdateAssessmentRequest true "Assessment update data"
// @Success 200 {object} services.AssessmentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id} [put]
func (h *AssessmentHandler) UpdateAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating assessment", "assessment_id", id)

	var req services.UpdateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	assessment, err := h.assessmentService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// DeleteAssessment deletes an assessment and its question links
// @Summary Delete assessment
// @Description Deletes an assessment. Its question links are removed; the questions themselves survive.
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id} [delete]
func (h *AssessmentHandler) DeleteAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting assessment", "assessment_id", id)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.assessmentService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListAssessments lists assessments with filters
// @Summary List assessments
// @Tags assessments
// @Produce json
// @Param is_active query bool false "Filter by active flag"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} services.AssessmentListResponse
// @Router /assessments [get]
func (h *AssessmentHandler) ListAssessments(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.parseAssessmentFilters(c)
	assessments, err := h.assessmentService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessments)
}

// SearchAssessments searches assessments by title
// @Summary Search assessments
// @Tags assessments
// @Produce json
// @Param q query string true "Search query"
// @Success 200 {object} services.AssessmentListResponse
// @Failure 400 {object} ErrorResponse
// @Router /assessments/search [get]
func (h *AssessmentHandler) SearchAssessments(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Search query parameter 'q' is required",
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.parseAssessmentFilters(c)
	assessments, err := h.assessmentService.Search(c.Request.Context(), query, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessments)
}

// ToggleActive flips the accepting-submissions flag
// @Summary Toggle active state
// @Description Activates or deactivates an assessment. Inactive assessments reject public access.
// @Tags assessments
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param state body object{is_active=bool} true "Desired state"
// @Success 200 {object} services.AssessmentResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/activate [put]
func (h *AssessmentHandler) ToggleActive(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Toggling assessment active state", "assessment_id", id, "is_active", req.IsActive)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	assessment, err := h.assessmentService.ToggleActive(c.Request.Context(), id, req.IsActive, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// GenerateShareToken issues a new public share token
// @Summary Generate share token
// @Description Generates a fresh share token for the assessment, replacing any previous one
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} services.ShareTokenResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/share-token [post]
func (h *AssessmentHandler) GenerateShareToken(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Generating share token", "assessment_id", id)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	token, err := h.assessmentService.GenerateShareToken(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, token)
}

// RevokeShareToken invalidates the current share token
// @Summary Revoke share token
// @Description Revokes the current share token. The public link stops working immediately.
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/share-token [delete]
func (h *AssessmentHandler) RevokeShareToken(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Revoking share token", "assessment_id", id)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.assessmentService.RevokeShareToken(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Share token revoked successfully",
	})
}

// GetAssessmentStats retrieves assessment statistics
// @Summary Get assessment statistics
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} repositories.AssessmentStats
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/stats [get]
func (h *AssessmentHandler) GetAssessmentStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.assessmentService.GetStats(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ===== QUESTION LINK MANAGEMENT =====

// LinkQuestion attaches an existing question to an assessment
// @Summary Link question
// @Description Links an existing question to the assessment at the next free position
// @Tags assessment-questions
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param link body services.LinkQuestionRequest true "Link data"
// @Success 201 {object} services.LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id}/questions [post]
func (h *AssessmentHandler) LinkQuestion(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	var req services.LinkQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Linking question to assessment", "assessment_id", assessmentID, "question_id", req.QuestionID)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	link, err := h.linkService.Link(c.Request.Context(), assessmentID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// LinkNewQuestion creates a question and links it in one transaction
// @Summary Create and link question
// @Description Creates a brand new question and links it to the assessment atomically
// @Tags assessment-questions
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param request body services.LinkNewQuestionRequest true "Question and link data"
// @Success 201 {object} services.LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/questions/new [post]
func (h *AssessmentHandler) LinkNewQuestion(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	var req services.LinkNewQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating and linking new question", "assessment_id", assessmentID)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	link, err := h.linkService.LinkNew(c.Request.Context(), assessmentID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// UpdateLink updates per-assessment question settings
// @Summary Update question link
// @Description Updates overrides, required flag, points or conditional logic for a linked question
// @Tags assessment-questions
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param link_id path uint true "Link ID"
// @Param link body services.UpdateLinkRequest true "Link update data"
// @Success 200 {object} services.LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/questions/{link_id} [put]
func (h *AssessmentHandler) UpdateLink(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	linkID := h.parseIDParam(c, "link_id")
	if linkID == 0 {
		return
	}

	var req services.UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating question link", "assessment_id", assessmentID, "link_id", linkID)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	link, err := h.linkService.UpdateLink(c.Request.Context(), linkID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

// UnlinkQuestion detaches a question from an assessment
// @Summary Unlink question
// @Description Removes a question link. Remaining links are renumbered to stay contiguous. With delete_question=true the base question is deleted too, unless another assessment still uses it.
// @Tags assessment-questions
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param link_id path uint true "Link ID"
// @Param delete_question query bool false "Also delete the question when no other links remain"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/questions/{link_id} [delete]
func (h *AssessmentHandler) UnlinkQuestion(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	linkID := h.parseIDParam(c, "link_id")
	if linkID == 0 {
		return
	}

	deleteQuestion := c.Query("delete_question") == "true"

	h.LogRequest(c, "Unlinking question", "assessment_id", assessmentID, "link_id", linkID, "delete_question", deleteQuestion)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.linkService.Unlink(c.Request.Context(), linkID, deleteQuestion, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ReorderQuestions applies a complete new ordering
// @Summary Reorder questions
// @Description Reorders all question links. The request must cover every link exactly once with positions 1..N.
// @Tags assessment-questions
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param orders body services.ReorderRequest true "Complete order assignment"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/questions/reorder [put]
func (h *AssessmentHandler) ReorderQuestions(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	var req services.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Reordering assessment questions", "assessment_id", assessmentID)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.linkService.Reorder(c.Request.Context(), assessmentID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Questions reordered successfully",
	})
}

// DuplicateQuestion copies a linked question into a standalone editable one
// @Summary Duplicate linked question
// @Description Creates an independent copy of a linked question, seeded from its effective view, and links the copy
// @Tags assessment-questions
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param link_id path uint true "Link ID"
// @Success 201 {object} services.LinkResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/questions/{link_id}/duplicate [post]
func (h *AssessmentHandler) DuplicateQuestion(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	linkID := h.parseIDParam(c, "link_id")
	if linkID == 0 {
		return
	}

	h.LogRequest(c, "Duplicating linked question", "assessment_id", assessmentID, "link_id", linkID)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	link, err := h.linkService.Duplicate(c.Request.Context(), linkID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// GetEffectiveQuestions returns the merged question list
// @Summary Get effective questions
// @Description Returns the assessment's questions in display order with overrides applied
// @Tags assessment-questions
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {array} models.EffectiveQuestion
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/questions [get]
func (h *AssessmentHandler) GetEffectiveQuestions(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	questions, err := h.linkService.EffectiveQuestions(c.Request.Context(), assessmentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// ExportSubmissions downloads all submissions as a spreadsheet
// @Summary Export submissions
// @Description Exports every submission of the assessment as an xlsx workbook
// @Tags assessments
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Assessment ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/export [get]
func (h *AssessmentHandler) ExportSubmissions(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	h.LogRequest(c, "Exporting submissions", "assessment_id", assessmentID)

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportSubmissions(c.Request.Context(), assessmentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *AssessmentHandler) parseAssessmentFilters(c *gin.Context) repositories.AssessmentFilters {
	var filters repositories.AssessmentFilters

	if active := c.Query("is_active"); active != "" {
		isActive := active == "true"
		filters.IsActive = &isActive
	}
	if creatorID := c.Query("creator_id"); creatorID != "" {
		filters.CreatedBy = &creatorID
	}
	if category := c.Query("category"); category != "" {
		filters.Category = &category
	}

	filters.Limit, filters.Offset = parsePagination(c)
	filters.SortBy = c.DefaultQuery("sort_by", "created_at")
	filters.SortOrder = c.DefaultQuery("sort_order", "desc")

	return filters
}
