package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
	}
}

// ExportSubmissions writes every submission of an assessment into an xlsx
// workbook, one row per submission with a column per question in display
// order. Returns the file bytes and a suggested filename.
func (s *exportService) ExportSubmissions(ctx context.Context, assessmentID uint, userID string) ([]byte, string, error) {
	s.logger.Info("Exporting submissions", "assessment_id", assessmentID, "user_id", userID)

	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrAssessmentNotFound
		}
		return nil, "", fmt.Errorf("failed to get assessment: %w", err)
	}

	if assessment.CreatedBy != userID {
		user, err := s.repo.User().GetByID(ctx, userID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to get user: %w", err)
		}
		if user.Role != models.RoleAdmin {
			return nil, "", NewPermissionError(userID, assessmentID, "assessment", "export", "not owner or insufficient permissions")
		}
	}

	submissions, _, err := s.repo.Submission().ListByAssessment(ctx, assessmentID, repositories.SubmissionFilters{
		Limit:     10000,
		SortBy:    "submitted_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list submissions: %w", err)
	}

	effective := make([]*models.EffectiveQuestion, len(assessment.Questions))
	for i := range assessment.Questions {
		effective[i] = assessment.Questions[i].Effective()
	}

	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Submissions"
	file.SetSheetName("Sheet1", sheet)

	headers := []string{"Submission ID", "Client", "Client Code", "Submitted At", "Score", "Notes"}
	for _, eq := range effective {
		headers = append(headers, eq.Text)
	}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		file.SetCellValue(sheet, cell, header)
	}

	for row, submission := range submissions {
		full, err := s.repo.Submission().GetByIDWithResponses(ctx, submission.ID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load submission %d: %w", submission.ID, err)
		}

		values := buildExportRow(full, effective)
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			file.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	filename := fmt.Sprintf("assessment-%d-submissions-%s.xlsx", assessmentID, time.Now().UTC().Format("2006-01-02"))

	s.logger.Info("Submissions exported", "assessment_id", assessmentID, "rows", len(submissions))
	return buf.Bytes(), filename, nil
}

func buildExportRow(submission *models.Submission, effective []*models.EffectiveQuestion) []interface{} {
	clientName := ""
	clientCode := ""
	if submission.Client != nil {
		clientName = submission.Client.FullName
		clientCode = submission.Client.ClientCode
	}

	score := ""
	if submission.Score != nil {
		score = fmt.Sprintf("%.2f", *submission.Score)
	}
	notes := ""
	if submission.TherapistNotes != nil {
		notes = *submission.TherapistNotes
	}

	values := []interface{}{
		submission.ID,
		clientName,
		clientCode,
		submission.SubmittedAt.Format(time.RFC3339),
		score,
		notes,
	}

	byQuestion := make(map[uint]models.Response, len(submission.Responses))
	for _, r := range submission.Responses {
		byQuestion[r.QuestionID] = r
	}

	for _, eq := range effective {
		response, ok := byQuestion[eq.QuestionID]
		if !ok {
			values = append(values, "")
			continue
		}
		values = append(values, formatResponseValue(response.Value))
	}

	return values
}

// formatResponseValue renders a stored JSON answer as a readable cell value
func formatResponseValue(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}

	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	default:
		return string(raw)
	}
}
