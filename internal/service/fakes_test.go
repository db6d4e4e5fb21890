package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/dto"
	"github.com/insight-lab/research-go-api/internal/models"
	"github.com/insight-lab/research-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// fakeTransactor runs the function straight through; rollback behavior is
// covered against a real database in the repository and handler tests.
type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeAssignmentRepo struct {
	assignments map[uint]models.Assignment
	nextID      uint
	createErr   error
	updateCalls int
}

func newFakeAssignmentRepo(assignments ...models.Assignment) *fakeAssignmentRepo {
	repo := &fakeAssignmentRepo{assignments: make(map[uint]models.Assignment), nextID: 1}
	for _, assignment := range assignments {
		repo.assignments[assignment.ID] = assignment
		if assignment.ID >= repo.nextID {
			repo.nextID = assignment.ID + 1
		}
	}
	return repo
}

func (f *fakeAssignmentRepo) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (f *fakeAssignmentRepo) List(ctx context.Context, filter repository.AssignmentFilter) ([]models.Assignment, error) {
	var result []models.Assignment
	for _, assignment := range f.assignments {
		if filter.ParticipantID != nil && assignment.ParticipantID != *filter.ParticipantID {
			continue
		}
		if filter.ResearcherID != nil && assignment.ResearcherID != *filter.ResearcherID {
			continue
		}
		if filter.QuizID != nil && assignment.QuizID != *filter.QuizID {
			continue
		}
		if filter.StudyID != nil && (assignment.StudyID == nil || *assignment.StudyID != *filter.StudyID) {
			continue
		}
		if filter.Status != nil && assignment.Status != *filter.Status {
			continue
		}
		result = append(result, assignment)
	}
	return result, nil
}

func (f *fakeAssignmentRepo) ExistsByParticipantAndQuiz(ctx context.Context, participantID, quizID uint) (bool, error) {
	for _, assignment := range f.assignments {
		if assignment.ParticipantID == participantID && assignment.QuizID == quizID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if f.createErr != nil {
		return f.createErr
	}
	assignment.ID = f.nextID
	f.nextID++
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	f.updateCalls++
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := f.assignments[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.assignments, id)
	return nil
}

type fakeQuizRepo struct {
	quizzes map[uint]models.Quiz
	reads   int
}

func newFakeQuizRepo(quizzes ...models.Quiz) *fakeQuizRepo {
	repo := &fakeQuizRepo{quizzes: make(map[uint]models.Quiz)}
	for _, quiz := range quizzes {
		repo.quizzes[quiz.ID] = quiz
	}
	return repo
}

func (f *fakeQuizRepo) GetByID(ctx context.Context, id uint) (models.Quiz, error) {
	quiz, ok := f.quizzes[id]
	if !ok {
		return models.Quiz{}, gorm.ErrRecordNotFound
	}
	return quiz, nil
}

func (f *fakeQuizRepo) GetWithQuestions(ctx context.Context, id uint) (models.Quiz, error) {
	f.reads++
	return f.GetByID(ctx, id)
}

type fakeUserRepo struct {
	users map[uint]models.User
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[uint]models.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uint) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

type fakeStudyRepo struct {
	studies map[uint]models.Study
}

func newFakeStudyRepo(studies ...models.Study) *fakeStudyRepo {
	repo := &fakeStudyRepo{studies: make(map[uint]models.Study)}
	for _, study := range studies {
		repo.studies[study.ID] = study
	}
	return repo
}

func (f *fakeStudyRepo) GetByID(ctx context.Context, id uint) (models.Study, error) {
	study, ok := f.studies[id]
	if !ok {
		return models.Study{}, gorm.ErrRecordNotFound
	}
	return study, nil
}

func (f *fakeStudyRepo) AdvanceLifecycle(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fakeEnrollmentRepo struct {
	enrollments []models.StudyEnrollment
}

func (f *fakeEnrollmentRepo) GetByStudyAndParticipant(ctx context.Context, studyID, participantID uint) (models.StudyEnrollment, error) {
	for _, enrollment := range f.enrollments {
		if enrollment.StudyID == studyID && enrollment.ParticipantID == participantID {
			return enrollment, nil
		}
	}
	return models.StudyEnrollment{}, gorm.ErrRecordNotFound
}

type fakeSubmissionRepo struct {
	submissions     map[uint]models.Submission
	nextID          uint
	createErr       error
	lookupMisses    int
	updateCalls     int
	updateWithCalls int
	lastAssignment  *models.Assignment
}

func newFakeSubmissionRepo(submissions ...models.Submission) *fakeSubmissionRepo {
	repo := &fakeSubmissionRepo{submissions: make(map[uint]models.Submission), nextID: 1}
	for _, submission := range submissions {
		repo.submissions[submission.ID] = submission
		if submission.ID >= repo.nextID {
			repo.nextID = submission.ID + 1
		}
	}
	return repo
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	submission, ok := f.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (f *fakeSubmissionRepo) GetByAssignmentAndAttempt(ctx context.Context, assignmentID uint, attemptNumber int) (models.Submission, error) {
	// lookupMisses simulates a concurrent writer winning the race between
	// the existence check and the insert.
	if f.lookupMisses > 0 {
		f.lookupMisses--
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID && submission.AttemptNumber == attemptNumber {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) List(ctx context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	var result []models.Submission
	for _, submission := range f.submissions {
		if filter.Status != nil && submission.Status != *filter.Status {
			continue
		}
		result = append(result, submission)
	}
	return result, nil
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.submissions {
		if existing.AssignmentID == submission.AssignmentID && existing.AttemptNumber == submission.AttemptNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	submission.ID = f.nextID
	f.nextID++
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	f.updateCalls++
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) UpdateWithAssignment(ctx context.Context, submission *models.Submission, assignment *models.Assignment) error {
	f.updateWithCalls++
	f.submissions[submission.ID] = *submission
	f.lastAssignment = assignment
	return nil
}

type fakeAnswerRepo struct {
	answers map[uint]models.Answer
	nextID  uint
}

func newFakeAnswerRepo(answers ...models.Answer) *fakeAnswerRepo {
	repo := &fakeAnswerRepo{answers: make(map[uint]models.Answer), nextID: 1}
	for _, answer := range answers {
		repo.answers[answer.ID] = answer
		if answer.ID >= repo.nextID {
			repo.nextID = answer.ID + 1
		}
	}
	return repo
}

func (f *fakeAnswerRepo) GetByID(ctx context.Context, id uint) (models.Answer, error) {
	answer, ok := f.answers[id]
	if !ok {
		return models.Answer{}, gorm.ErrRecordNotFound
	}
	return answer, nil
}

func (f *fakeAnswerRepo) GetBySubmissionAndQuestion(ctx context.Context, submissionID, questionID uint) (models.Answer, error) {
	for _, answer := range f.answers {
		if answer.SubmissionID == submissionID && answer.QuestionID == questionID {
			return answer, nil
		}
	}
	return models.Answer{}, gorm.ErrRecordNotFound
}

func (f *fakeAnswerRepo) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Answer, error) {
	var result []models.Answer
	for id := uint(1); id < f.nextID; id++ {
		if answer, ok := f.answers[id]; ok && answer.SubmissionID == submissionID {
			result = append(result, answer)
		}
	}
	return result, nil
}

func (f *fakeAnswerRepo) Save(ctx context.Context, answer *models.Answer) error {
	if answer.ID == 0 {
		answer.ID = f.nextID
		f.nextID++
	}
	f.answers[answer.ID] = *answer
	return nil
}

func (f *fakeAnswerRepo) SumPointsEarned(ctx context.Context, submissionID uint) (float64, error) {
	var total float64
	for _, answer := range f.answers {
		if answer.SubmissionID == submissionID && answer.PointsEarned != nil {
			total += *answer.PointsEarned
		}
	}
	return total, nil
}

func (f *fakeAnswerRepo) CountRequiringManualGrading(ctx context.Context, submissionID uint) (int64, error) {
	var count int64
	for _, answer := range f.answers {
		if answer.SubmissionID == submissionID && answer.RequiresManualGrading {
			count++
		}
	}
	return count, nil
}

type fakeGradingActionRepo struct {
	actions []models.GradingAction
}

func (f *fakeGradingActionRepo) Create(ctx context.Context, action *models.GradingAction) error {
	action.ID = uint(len(f.actions) + 1)
	f.actions = append(f.actions, *action)
	return nil
}

// ListBySubmission returns newest first, matching the persisted trail order.
func (f *fakeGradingActionRepo) ListBySubmission(ctx context.Context, submissionID uint) ([]models.GradingAction, error) {
	var result []models.GradingAction
	for i := len(f.actions) - 1; i >= 0; i-- {
		if f.actions[i].SubmissionID == submissionID {
			result = append(result, f.actions[i])
		}
	}
	return result, nil
}

func (f *fakeGradingActionRepo) ListByResearcher(ctx context.Context, researcherID uint) ([]models.GradingAction, error) {
	return f.actions, nil
}

func (f *fakeGradingActionRepo) byType(actionType string) []models.GradingAction {
	var result []models.GradingAction
	for _, action := range f.actions {
		if action.ActionType == actionType {
			result = append(result, action)
		}
	}
	return result
}

type fakeGradingFeedbackRepo struct {
	feedback []models.GradingFeedback
}

func (f *fakeGradingFeedbackRepo) Create(ctx context.Context, feedback *models.GradingFeedback) error {
	feedback.ID = uint(len(f.feedback) + 1)
	f.feedback = append(f.feedback, *feedback)
	return nil
}

func (f *fakeGradingFeedbackRepo) ListByAnswer(ctx context.Context, answerID uint) ([]models.GradingFeedback, error) {
	var result []models.GradingFeedback
	for _, entry := range f.feedback {
		if entry.AnswerID == answerID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type fakeNotifier struct {
	published []dto.NotificationCreateRequest
}

func (f *fakeNotifier) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	f.published = append(f.published, payload)
	return dto.NotificationResponse{RecipientID: payload.RecipientID, Type: payload.Type}, nil
}

func (f *fakeNotifier) byType(notificationType string) []dto.NotificationCreateRequest {
	var result []dto.NotificationCreateRequest
	for _, payload := range f.published {
		if payload.Type == notificationType {
			result = append(result, payload)
		}
	}
	return result
}

type fakeGrader struct {
	graded []uint
	result models.Submission
	err    error
}

func (f *fakeGrader) AutoGrade(ctx context.Context, submissionID uint) (models.Submission, error) {
	f.graded = append(f.graded, submissionID)
	if f.err != nil {
		return models.Submission{}, f.err
	}
	return f.result, nil
}
