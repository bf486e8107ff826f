package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by services. Handlers map these onto HTTP status
// codes.
var (
	ErrQuestionNotFound   = errors.New("question not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrLinkNotFound       = errors.New("assessment question link not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrClientNotFound     = errors.New("client not found")

	// ErrQuestionInUse guards question deletion while assessments reference it
	ErrQuestionInUse = errors.New("question is used by one or more assessments")

	// ErrQuestionAlreadyLinked rejects linking the same question twice
	ErrQuestionAlreadyLinked = errors.New("question is already linked to this assessment")

	// ErrDuplicateSubmission enforces the single-submission policy
	ErrDuplicateSubmission = errors.New("client has already submitted this assessment")
)

// PermissionError describes a denied operation on a resource
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsPermissionError reports whether err is a PermissionError
func IsPermissionError(err error) bool {
	var permErr *PermissionError
	return errors.As(err, &permErr)
}

// BusinessRuleError describes a rejected operation that is syntactically
// valid but violates a domain rule.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

// IsBusinessRuleError reports whether err is a BusinessRuleError
func IsBusinessRuleError(err error) bool {
	var ruleErr *BusinessRuleError
	return errors.As(err, &ruleErr)
}
