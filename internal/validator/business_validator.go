package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateQuestionCreate validates question creation business rules
func (bv *BusinessValidator) ValidateQuestionCreate(req *QuestionCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.ValidateQuestionOptions(models.QuestionType(req.Type), req.Options)...)

	return errors
}

// ValidateAssessmentCreate validates assessment creation business rules
func (bv *BusinessValidator) ValidateAssessmentCreate(req *AssessmentCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	// Reject duplicate questions in the initial link list
	seen := make(map[uint]bool)
	for i, link := range req.Questions {
		if seen[link.QuestionID] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("questions[%d].question_id", i),
				Message: "question is already included in this assessment",
				Value:   link.QuestionID,
				Rule:    "unique_question",
			})
		}
		seen[link.QuestionID] = true
	}

	return errors
}

// ValidateQuestionOptions checks that the options payload is well formed for
// the question type. Choice and rating questions require options; text and
// yes/no questions must not carry any.
func (bv *BusinessValidator) ValidateQuestionOptions(qType models.QuestionType, options interface{}) ValidationErrors {
	var errors ValidationErrors

	switch qType {
	case models.MultipleChoice:
		var opts models.MultipleChoiceOptions
		if err := decodeOptions(options, &opts); err != nil {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: "invalid options for multiple choice question",
				Rule:    "question_options",
			})
			return errors
		}
		if len(opts.Choices) < 2 {
			errors = append(errors, ValidationError{
				Field:   "options.choices",
				Message: "multiple choice questions need at least 2 choices",
				Value:   len(opts.Choices),
				Rule:    "question_options",
			})
		}
		for i, choice := range opts.Choices {
			if strings.TrimSpace(choice) == "" {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("options.choices[%d]", i),
					Message: "choice cannot be empty",
					Rule:    "question_options",
				})
			}
		}

	case models.Rating:
		var opts models.RatingOptions
		if err := decodeOptions(options, &opts); err != nil {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: "invalid options for rating question",
				Rule:    "question_options",
			})
			return errors
		}
		if opts.Min >= opts.Max {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: "rating minimum must be less than maximum",
				Value:   fmt.Sprintf("min=%d max=%d", opts.Min, opts.Max),
				Rule:    "question_options",
			})
		}
		if opts.Max-opts.Min > 100 {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: "rating scale cannot span more than 100 points",
				Rule:    "question_options",
			})
		}

	case models.YesNo, models.FreeText:
		if options != nil {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: fmt.Sprintf("%s questions do not take options", qType),
				Rule:    "question_options",
			})
		}
	}

	return errors
}

// ValidateReorder checks that the requested order assignment is a complete
// permutation 1..N over exactly the assessment's current links.
func (bv *BusinessValidator) ValidateReorder(req *ReorderRequest, existingLinkIDs []uint) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	if len(errors) > 0 {
		return errors
	}

	if len(req.Orders) != len(existingLinkIDs) {
		errors = append(errors, ValidationError{
			Field:   "orders",
			Message: fmt.Sprintf("must cover all %d questions in the assessment", len(existingLinkIDs)),
			Value:   len(req.Orders),
			Rule:    "reorder_complete",
		})
		return errors
	}

	existing := make(map[uint]bool, len(existingLinkIDs))
	for _, id := range existingLinkIDs {
		existing[id] = true
	}

	seenLinks := make(map[uint]bool, len(req.Orders))
	seenOrders := make(map[int]bool, len(req.Orders))
	for i, o := range req.Orders {
		if !existing[o.LinkID] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("orders[%d].link_id", i),
				Message: "link does not belong to this assessment",
				Value:   o.LinkID,
				Rule:    "reorder_membership",
			})
		}
		if seenLinks[o.LinkID] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("orders[%d].link_id", i),
				Message: "link appears more than once",
				Value:   o.LinkID,
				Rule:    "reorder_membership",
			})
		}
		seenLinks[o.LinkID] = true

		if o.Order < 1 || o.Order > len(req.Orders) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("orders[%d].order", i),
				Message: fmt.Sprintf("order must be between 1 and %d", len(req.Orders)),
				Value:   o.Order,
				Rule:    "reorder_range",
			})
		}
		if seenOrders[o.Order] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("orders[%d].order", i),
				Message: "order position assigned more than once",
				Value:   o.Order,
				Rule:    "reorder_range",
			})
		}
		seenOrders[o.Order] = true
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Question type validation
	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		qType := models.QuestionType(fl.Field().String())
		switch qType {
		case models.MultipleChoice, models.YesNo, models.FreeText, models.Rating:
			return true
		}
		return false
	})

	// Question text validation (1-2000 characters after trimming)
	bv.validate.RegisterValidation("question_text", func(fl validator.FieldLevel) bool {
		text := strings.TrimSpace(fl.Field().String())
		return len(text) >= 1 && len(text) <= 2000
	})

	// Title validation (1-200 characters after trimming)
	bv.validate.RegisterValidation("assessment_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})
}

// decodeOptions round-trips an arbitrary payload into a typed options struct
func decodeOptions(options interface{}, target interface{}) error {
	if options == nil {
		return fmt.Errorf("options are required")
	}

	raw, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("failed to decode options: %w", err)
	}
	return nil
}
