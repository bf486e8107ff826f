package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockRepository is an in-memory repositories.Repository used across the
// service tests. Write operations mimic the postgres layer's semantics:
// Add assigns the next contiguous order, Renumber closes gaps, submission
// Create persists the whole graph.
type mockRepository struct {
	questions   map[uint]*models.Question
	assessments map[uint]*models.Assessment
	links       map[uint]*models.AssessmentQuestion
	submissions map[uint]*models.Submission
	clients     map[uint]*models.Client
	users       map[string]*models.User

	nextQuestionID   uint
	nextAssessmentID uint
	nextLinkID       uint
	nextSubmissionID uint
	nextClientID     uint
	nextResponseID   uint
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		questions:   make(map[uint]*models.Question),
		assessments: make(map[uint]*models.Assessment),
		links:       make(map[uint]*models.AssessmentQuestion),
		submissions: make(map[uint]*models.Submission),
		clients:     make(map[uint]*models.Client),
		users: map[string]*models.User{
			"therapist-1": {ID: "therapist-1", FullName: "Dana Reyes", Email: "dana@practice.test", Role: models.RoleTherapist},
			"therapist-2": {ID: "therapist-2", FullName: "Sam Okafor", Email: "sam@practice.test", Role: models.RoleTherapist},
			"assistant-1": {ID: "assistant-1", FullName: "Kim Tran", Email: "kim@practice.test", Role: models.RoleAssistant},
			"admin-1":     {ID: "admin-1", FullName: "Ava Brooks", Email: "ava@practice.test", Role: models.RoleAdmin},
		},
	}
}

func (m *mockRepository) Assessment() repositories.AssessmentRepository { return &mockAssessmentRepo{m} }
func (m *mockRepository) Question() repositories.QuestionRepository     { return &mockQuestionRepo{m} }
func (m *mockRepository) AssessmentQuestion() repositories.AssessmentQuestionRepository {
	return &mockLinkRepo{m}
}
func (m *mockRepository) Submission() repositories.SubmissionRepository { return &mockSubmissionRepo{m} }
func (m *mockRepository) Client() repositories.ClientRepository         { return &mockClientRepo{m} }
func (m *mockRepository) User() repositories.UserRepository             { return &mockUserRepo{m} }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

// ===== FIXTURE HELPERS =====

func (m *mockRepository) seedQuestion(q *models.Question) *models.Question {
	m.nextQuestionID++
	q.ID = m.nextQuestionID
	m.questions[q.ID] = q
	return q
}

func (m *mockRepository) seedAssessment(a *models.Assessment) *models.Assessment {
	m.nextAssessmentID++
	a.ID = m.nextAssessmentID
	m.assessments[a.ID] = a
	return a
}

func (m *mockRepository) seedClient(c *models.Client) *models.Client {
	m.nextClientID++
	c.ID = m.nextClientID
	m.clients[c.ID] = c
	return c
}

func (m *mockRepository) linksForAssessment(assessmentID uint) []*models.AssessmentQuestion {
	var links []*models.AssessmentQuestion
	for _, link := range m.links {
		if link.AssessmentID == assessmentID {
			link.Question = m.questions[link.QuestionID]
			links = append(links, link)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Order < links[j].Order })
	return links
}

// ===== QUESTION REPO =====

type mockQuestionRepo struct{ m *mockRepository }

func (r *mockQuestionRepo) Create(ctx context.Context, question *models.Question) error {
	r.m.seedQuestion(question)
	return nil
}

func (r *mockQuestionRepo) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	q, ok := r.m.questions[id]
	if !ok {
		return nil, repositories.NewNotFoundError("question", id)
	}
	return q, nil
}

func (r *mockQuestionRepo) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	var out []*models.Question
	for _, id := range ids {
		if q, ok := r.m.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *mockQuestionRepo) Update(ctx context.Context, question *models.Question) error {
	if _, ok := r.m.questions[question.ID]; !ok {
		return repositories.NewNotFoundError("question", question.ID)
	}
	r.m.questions[question.ID] = question
	return nil
}

func (r *mockQuestionRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := r.m.questions[id]; !ok {
		return repositories.NewNotFoundError("question", id)
	}
	delete(r.m.questions, id)
	return nil
}

func (r *mockQuestionRepo) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	var out []*models.Question
	for _, q := range r.m.questions {
		if filters.CreatedBy != nil && q.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.IsLibraryItem != nil && q.IsLibraryItem != *filters.IsLibraryItem {
			continue
		}
		if filters.Type != nil && q.Type != *filters.Type {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockQuestionRepo) GetByCreator(ctx context.Context, creatorID string, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	filters.CreatedBy = &creatorID
	return r.List(ctx, filters)
}

func (r *mockQuestionRepo) GetLibrary(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	library := true
	filters.IsLibraryItem = &library
	return r.List(ctx, filters)
}

func (r *mockQuestionRepo) Search(ctx context.Context, query string, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	all, _, _ := r.List(ctx, filters)
	var out []*models.Question
	for _, q := range all {
		if strings.Contains(strings.ToLower(q.Text), strings.ToLower(query)) {
			out = append(out, q)
		}
	}
	return out, int64(len(out)), nil
}

func (r *mockQuestionRepo) IsUsedInAssessments(ctx context.Context, id uint) (bool, error) {
	for _, link := range r.m.links {
		if link.QuestionID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockQuestionRepo) GetUsageCount(ctx context.Context, id uint) (int, error) {
	count := 0
	for _, link := range r.m.links {
		if link.QuestionID == id {
			count++
		}
	}
	return count, nil
}

func (r *mockQuestionRepo) GetUsageStats(ctx context.Context, creatorID string) (*repositories.QuestionUsageStats, error) {
	return &repositories.QuestionUsageStats{QuestionsByType: map[models.QuestionType]int{}}, nil
}

// ===== ASSESSMENT REPO =====

type mockAssessmentRepo struct{ m *mockRepository }

func (r *mockAssessmentRepo) Create(ctx context.Context, assessment *models.Assessment) error {
	r.m.seedAssessment(assessment)
	return nil
}

func (r *mockAssessmentRepo) GetByID(ctx context.Context, id uint) (*models.Assessment, error) {
	a, ok := r.m.assessments[id]
	if !ok {
		return nil, repositories.NewNotFoundError("assessment", id)
	}
	return a, nil
}

func (r *mockAssessmentRepo) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Assessment, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	links := r.m.linksForAssessment(id)
	a.Questions = make([]models.AssessmentQuestion, len(links))
	for i, link := range links {
		a.Questions[i] = *link
	}
	return a, nil
}

func (r *mockAssessmentRepo) Update(ctx context.Context, assessment *models.Assessment) error {
	if _, ok := r.m.assessments[assessment.ID]; !ok {
		return repositories.NewNotFoundError("assessment", assessment.ID)
	}
	r.m.assessments[assessment.ID] = assessment
	return nil
}

func (r *mockAssessmentRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := r.m.assessments[id]; !ok {
		return repositories.NewNotFoundError("assessment", id)
	}
	delete(r.m.assessments, id)
	for linkID, link := range r.m.links {
		if link.AssessmentID == id {
			delete(r.m.links, linkID)
		}
	}
	return nil
}

func (r *mockAssessmentRepo) List(ctx context.Context, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	var out []*models.Assessment
	for _, a := range r.m.assessments {
		if filters.CreatedBy != nil && a.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.IsActive != nil && a.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockAssessmentRepo) GetByCreator(ctx context.Context, creatorID string, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	filters.CreatedBy = &creatorID
	return r.List(ctx, filters)
}

func (r *mockAssessmentRepo) Search(ctx context.Context, query string, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	all, _, _ := r.List(ctx, filters)
	var out []*models.Assessment
	for _, a := range all {
		if strings.Contains(strings.ToLower(a.Title), strings.ToLower(query)) {
			out = append(out, a)
		}
	}
	return out, int64(len(out)), nil
}

func (r *mockAssessmentRepo) SetActive(ctx context.Context, id uint, active bool) error {
	a, ok := r.m.assessments[id]
	if !ok {
		return repositories.NewNotFoundError("assessment", id)
	}
	a.IsActive = active
	return nil
}

func (r *mockAssessmentRepo) SetShareToken(ctx context.Context, id uint, token *string) error {
	a, ok := r.m.assessments[id]
	if !ok {
		return repositories.NewNotFoundError("assessment", id)
	}
	a.ShareToken = token
	return nil
}

func (r *mockAssessmentRepo) GetByShareToken(ctx context.Context, token string) (*models.Assessment, error) {
	for _, a := range r.m.assessments {
		if a.ShareToken != nil && *a.ShareToken == token {
			return r.GetByIDWithQuestions(ctx, a.ID)
		}
	}
	return nil, repositories.NewNotFoundError("assessment", token)
}

func (r *mockAssessmentRepo) GetStats(ctx context.Context, id uint) (*repositories.AssessmentStats, error) {
	stats := &repositories.AssessmentStats{}
	for _, link := range r.m.links {
		if link.AssessmentID == id {
			stats.QuestionCount++
		}
	}
	clients := make(map[uint]bool)
	for _, sub := range r.m.submissions {
		if sub.AssessmentID == id {
			stats.SubmissionCount++
			clients[sub.ClientID] = true
		}
	}
	stats.UniqueClients = len(clients)
	return stats, nil
}

func (r *mockAssessmentRepo) GetCreatorStats(ctx context.Context, creatorID string) (*repositories.CreatorStats, error) {
	return &repositories.CreatorStats{}, nil
}

// ===== LINK REPO =====

type mockLinkRepo struct{ m *mockRepository }

func (r *mockLinkRepo) Add(ctx context.Context, link *models.AssessmentQuestion) error {
	maxOrder := 0
	for _, existing := range r.m.links {
		if existing.AssessmentID == link.AssessmentID && existing.Order > maxOrder {
			maxOrder = existing.Order
		}
	}
	r.m.nextLinkID++
	link.ID = r.m.nextLinkID
	link.Order = maxOrder + 1
	r.m.links[link.ID] = link
	return nil
}

func (r *mockLinkRepo) GetByID(ctx context.Context, id uint) (*models.AssessmentQuestion, error) {
	link, ok := r.m.links[id]
	if !ok {
		return nil, repositories.NewNotFoundError("assessment question", id)
	}
	link.Question = r.m.questions[link.QuestionID]
	return link, nil
}

func (r *mockLinkRepo) GetByAssessment(ctx context.Context, assessmentID uint) ([]*models.AssessmentQuestion, error) {
	return r.m.linksForAssessment(assessmentID), nil
}

func (r *mockLinkRepo) Update(ctx context.Context, link *models.AssessmentQuestion) error {
	if _, ok := r.m.links[link.ID]; !ok {
		return repositories.NewNotFoundError("assessment question", link.ID)
	}
	r.m.links[link.ID] = link
	return nil
}

func (r *mockLinkRepo) Remove(ctx context.Context, id uint) error {
	if _, ok := r.m.links[id]; !ok {
		return repositories.NewNotFoundError("assessment question", id)
	}
	delete(r.m.links, id)
	return nil
}

func (r *mockLinkRepo) Renumber(ctx context.Context, assessmentID uint) error {
	links := r.m.linksForAssessment(assessmentID)
	for i, link := range links {
		link.Order = i + 1
	}
	return nil
}

func (r *mockLinkRepo) UpdateOrders(ctx context.Context, assessmentID uint, orders []repositories.LinkOrder) error {
	for _, o := range orders {
		link, ok := r.m.links[o.LinkID]
		if !ok || link.AssessmentID != assessmentID {
			return repositories.NewNotFoundError("assessment question", o.LinkID)
		}
		link.Order = o.Order
	}
	return nil
}

func (r *mockLinkRepo) Exists(ctx context.Context, assessmentID, questionID uint) (bool, error) {
	for _, link := range r.m.links {
		if link.AssessmentID == assessmentID && link.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockLinkRepo) CountByAssessment(ctx context.Context, assessmentID uint) (int64, error) {
	var count int64
	for _, link := range r.m.links {
		if link.AssessmentID == assessmentID {
			count++
		}
	}
	return count, nil
}

func (r *mockLinkRepo) CountByQuestion(ctx context.Context, questionID uint) (int64, error) {
	var count int64
	for _, link := range r.m.links {
		if link.QuestionID == questionID {
			count++
		}
	}
	return count, nil
}

// ===== SUBMISSION REPO =====

type mockSubmissionRepo struct{ m *mockRepository }

func (r *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	r.m.nextSubmissionID++
	submission.ID = r.m.nextSubmissionID
	for i := range submission.Responses {
		r.m.nextResponseID++
		submission.Responses[i].ID = r.m.nextResponseID
		submission.Responses[i].SubmissionID = submission.ID
	}
	r.m.submissions[submission.ID] = submission
	return nil
}

func (r *mockSubmissionRepo) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	sub, ok := r.m.submissions[id]
	if !ok {
		return nil, repositories.NewNotFoundError("submission", id)
	}
	return sub, nil
}

func (r *mockSubmissionRepo) GetByIDWithResponses(ctx context.Context, id uint) (*models.Submission, error) {
	sub, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Client = r.m.clients[sub.ClientID]
	return sub, nil
}

func (r *mockSubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	if _, ok := r.m.submissions[submission.ID]; !ok {
		return repositories.NewNotFoundError("submission", submission.ID)
	}
	r.m.submissions[submission.ID] = submission
	return nil
}

func (r *mockSubmissionRepo) ListByAssessment(ctx context.Context, assessmentID uint, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	var out []*models.Submission
	for _, sub := range r.m.submissions {
		if sub.AssessmentID != assessmentID {
			continue
		}
		if filters.ClientID != nil && sub.ClientID != *filters.ClientID {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockSubmissionRepo) ListByClient(ctx context.Context, clientID uint, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	var out []*models.Submission
	for _, sub := range r.m.submissions {
		if sub.ClientID == clientID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockSubmissionRepo) ExistsForClient(ctx context.Context, assessmentID, clientID uint) (bool, error) {
	for _, sub := range r.m.submissions {
		if sub.AssessmentID == assessmentID && sub.ClientID == clientID {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockSubmissionRepo) CountByAssessment(ctx context.Context, assessmentID uint) (int64, error) {
	var count int64
	for _, sub := range r.m.submissions {
		if sub.AssessmentID == assessmentID {
			count++
		}
	}
	return count, nil
}

func (r *mockSubmissionRepo) CountByClient(ctx context.Context, clientID uint) (int64, error) {
	var count int64
	for _, sub := range r.m.submissions {
		if sub.ClientID == clientID {
			count++
		}
	}
	return count, nil
}

// ===== CLIENT REPO =====

type mockClientRepo struct{ m *mockRepository }

func (r *mockClientRepo) Create(ctx context.Context, client *models.Client) error {
	r.m.seedClient(client)
	return nil
}

func (r *mockClientRepo) GetByID(ctx context.Context, id uint) (*models.Client, error) {
	c, ok := r.m.clients[id]
	if !ok {
		return nil, repositories.NewNotFoundError("client", id)
	}
	return c, nil
}

func (r *mockClientRepo) Update(ctx context.Context, client *models.Client) error {
	if _, ok := r.m.clients[client.ID]; !ok {
		return repositories.NewNotFoundError("client", client.ID)
	}
	r.m.clients[client.ID] = client
	return nil
}

func (r *mockClientRepo) GetByEmail(ctx context.Context, therapistID, email string) (*models.Client, error) {
	for _, c := range r.m.clients {
		if c.TherapistID == therapistID && strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}
	return nil, repositories.NewNotFoundError("client", email)
}

func (r *mockClientRepo) List(ctx context.Context, therapistID string, filters repositories.ClientFilters) ([]*models.Client, int64, error) {
	var out []*models.Client
	for _, c := range r.m.clients {
		if c.TherapistID != therapistID {
			continue
		}
		if filters.Status != nil && c.Status != *filters.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockClientRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	for _, c := range r.m.clients {
		if c.ClientCode == code {
			return true, nil
		}
	}
	return false, nil
}

// ===== USER REPO =====

type mockUserRepo struct{ m *mockRepository }

func (r *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.m.users[id]
	if !ok {
		return nil, repositories.NewNotFoundError("user", id)
	}
	return u, nil
}

func (r *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, repositories.NewNotFoundError("user", email)
}

func (r *mockUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *mockUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	var out []*models.User
	for _, u := range r.m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockUserRepo) Search(ctx context.Context, query string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	var out []*models.User
	for _, u := range r.m.users {
		if strings.Contains(strings.ToLower(u.FullName), strings.ToLower(query)) {
			out = append(out, u)
		}
	}
	return out, int64(len(out)), nil
}

func (r *mockUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, ok := r.m.users[id]
	return ok, nil
}

func (r *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	u, ok := r.m.users[id]
	return ok && u.Role == role, nil
}
