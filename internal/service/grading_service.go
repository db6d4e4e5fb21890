package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/dto"
	"github.com/insight-lab/research-go-api/internal/models"
	"github.com/insight-lab/research-go-api/internal/observability"
	"github.com/insight-lab/research-go-api/internal/repository"
)

// ErrAnswerNotFound indicates the answer was not located.
var ErrAnswerNotFound = errors.New("answer not found")

// ErrAnswerNotInSubmission indicates the answer belongs to another submission.
var ErrAnswerNotInSubmission = errors.New("answer does not belong to this submission")

// ErrPointsOutOfRange indicates awarded points exceed the question maximum.
var ErrPointsOutOfRange = errors.New("points exceed the question maximum")

// ErrPendingManualGrading indicates answers still await a human grader.
var ErrPendingManualGrading = errors.New("submission has answers awaiting manual grading")

// GradingService grades submitted attempts: machine grading of objective
// questions, manual grading of the rest, and final release of results.
type GradingService interface {
	Grader
	ManualGrade(ctx context.Context, actor Actor, submissionID uint, payload dto.ManualGradeRequest) (dto.SubmissionResponse, error)
	BulkGrade(ctx context.Context, actor Actor, submissionID uint, payload dto.BulkGradeRequest) (dto.SubmissionResponse, error)
	Finalize(ctx context.Context, actor Actor, submissionID uint, payload dto.FinalizeRequest) (dto.SubmissionResponse, error)
	GetSubmissionForGrading(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error)
	ListSubmissions(ctx context.Context, actor Actor, status *models.SubmissionStatus) ([]dto.SubmissionSummaryResponse, error)
	GetGradingHistory(ctx context.Context, actor Actor, submissionID uint) ([]dto.GradingActionResponse, error)
	ListGradingActivity(ctx context.Context, actor Actor) ([]dto.GradingActionResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	answers     repository.AnswerRepository
	actions     repository.GradingActionRepository
	feedback    repository.GradingFeedbackRepository
	tx          repository.Transactor
	quizzes     QuizReader
	notifier    Notifier
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	answers repository.AnswerRepository,
	actions repository.GradingActionRepository,
	feedback repository.GradingFeedbackRepository,
	tx repository.Transactor,
	quizzes QuizReader,
	notifier Notifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		submissions: submissions,
		assignments: assignments,
		answers:     answers,
		actions:     actions,
		feedback:    feedback,
		tx:          tx,
		quizzes:     quizzes,
		notifier:    notifier,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		tracer:      otel.Tracer("grading-service"),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

// AutoGrade machine-grades every objective answer of a submitted attempt.
// When nothing is left for a human grader the attempt is closed out
// immediately and results are released to the participant.
func (s *gradingService) AutoGrade(ctx context.Context, submissionID uint) (models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "grading.auto_grade",
		trace.WithAttributes(attribute.Int("submission.id", int(submissionID))))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	if submission.Status != models.SubmissionSubmitted {
		return models.Submission{}, ErrInvalidSubmissionState
	}

	quiz, err := s.quizzes.GetWithQuestions(ctx, submission.QuizID)
	if err != nil {
		return models.Submission{}, err
	}

	answers, err := s.answers.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return models.Submission{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return models.Submission{}, err
	}

	var earned float64
	manualCount := 0
	possible := quizTotalPoints(quiz)

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for i := range answers {
			answer := &answers[i]

			question, ok := quiz.QuestionByID(answer.QuestionID)
			if !ok {
				continue
			}

			points := 0.0
			if question.IsObjective() {
				correct := gradeObjectiveAnswer(question, *answer)
				if correct {
					points = float64(question.Points)
				}
				answer.IsCorrect = &correct
				answer.RequiresManualGrading = false
				earned += points
			} else {
				// Provisional zero until a human grades it.
				manualCount++
			}
			answer.PointsEarned = &points

			if err := s.answers.Save(ctx, answer); err != nil {
				return err
			}

			// One trail row per answer, attributed to the participant whose
			// submit triggered grading.
			before := 0.0
			action := models.GradingAction{
				SubmissionID: submission.ID,
				AnswerID:     &answer.ID,
				GraderID:     submission.ParticipantID,
				ActionType:   models.ActionAutoGrade,
				PointsBefore: &before,
				PointsAfter:  &points,
			}
			if err := s.actions.Create(ctx, &action); err != nil {
				return err
			}
		}

		autoScore := percentScore(earned, possible)
		submission.AutoScore = &autoScore
		submission.TotalPointsEarned = int(earned)
		submission.TotalPointsPossible = possible
		submission.RequiresManualGrading = manualCount > 0
		submission.Answers = answers

		if submission.RequiresManualGrading {
			return s.submissions.Update(ctx, &submission)
		}

		// Fully objective quiz: close out without a human in the loop.
		submission.FinalScore = &autoScore
		submission.Passed = ComputePass(&autoScore, quiz)
		submission.MarkGraded(s.now())

		return s.applyOutcome(ctx, &submission, &assignment, quiz)
	})
	if err != nil {
		return models.Submission{}, err
	}

	if submission.RequiresManualGrading {
		s.logger.Info().
			Uint("submission_id", submission.ID).
			Int("manual_answers", manualCount).
			Msg("auto-grading done, manual grading pending")
		return submission, nil
	}

	s.notifyGraded(ctx, assignment, submission)
	observability.SubmissionsGradedTotal().WithLabelValues("auto").Inc()

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Float64("score", *submission.FinalScore).
		Msg("submission auto-graded and released")

	return submission, nil
}

func (s *gradingService) ManualGrade(ctx context.Context, actor Actor, submissionID uint, payload dto.ManualGradeRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.getGradable(ctx, actor, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.gradeAnswer(ctx, actor, &submission, payload); err != nil {
			return err
		}
		return s.recalculateScore(ctx, &submission)
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *gradingService) BulkGrade(ctx context.Context, actor Actor, submissionID uint, payload dto.BulkGradeRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.bulk_grade",
		trace.WithAttributes(
			attribute.Int("submission.id", int(submissionID)),
			attribute.Int("grades", len(payload.Grades)),
		))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.getGradable(ctx, actor, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	// All grades in the batch commit together or not at all.
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, grade := range payload.Grades {
			if err := s.gradeAnswer(ctx, actor, &submission, grade); err != nil {
				return fmt.Errorf("answer %d: %w", grade.AnswerID, err)
			}
		}

		if comment := strings.TrimSpace(s.sanitizer.Sanitize(payload.OverallFeedback)); comment != "" {
			action := models.GradingAction{
				SubmissionID: submission.ID,
				GraderID:     actor.ID,
				ActionType:   models.ActionFeedbackAdded,
				Feedback:     comment,
			}
			if err := s.actions.Create(ctx, &action); err != nil {
				return err
			}
		}

		return s.recalculateScore(ctx, &submission)
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

// Finalize closes out grading once every answer has a grade. The final score
// is the manual score when one exists, else the auto score. The assignment
// outcome and the participant notification are applied only when the result
// is returned to the participant.
func (s *gradingService) Finalize(ctx context.Context, actor Actor, submissionID uint, payload dto.FinalizeRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.finalize",
		trace.WithAttributes(attribute.Int("submission.id", int(submissionID))))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.getOwnedSubmission(ctx, actor, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if submission.Status != models.SubmissionSubmitted && submission.Status != models.SubmissionGraded {
		return dto.SubmissionResponse{}, ErrInvalidSubmissionState
	}

	pending, err := s.answers.CountRequiringManualGrading(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if pending > 0 {
		return dto.SubmissionResponse{}, ErrPendingManualGrading
	}

	quiz, err := s.quizzes.GetWithQuestions(ctx, submission.QuizID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	finalScore := submission.AutoScore
	if submission.ManualScore != nil {
		finalScore = submission.ManualScore
	}

	submission.FinalScore = finalScore
	submission.Passed = ComputePass(finalScore, quiz)
	submission.RequiresManualGrading = false

	now := s.now()
	if submission.Status == models.SubmissionSubmitted {
		submission.MarkGraded(now)
	}

	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// Assignment completion and level storage happen only on release.
		// Finalizing without returning keeps the graded result with the
		// researcher.
		if payload.ReturnToParticipant {
			submission.Return()
			if err := s.applyOutcome(ctx, &submission, &assignment, quiz); err != nil {
				return err
			}
		} else if err := s.submissions.Update(ctx, &submission); err != nil {
			return err
		}

		action := models.GradingAction{
			SubmissionID: submission.ID,
			GraderID:     actor.ID,
			ActionType:   models.ActionFinalized,
			PointsAfter:  finalScore,
			Feedback:     strings.TrimSpace(s.sanitizer.Sanitize(payload.FinalComments)),
		}
		return s.actions.Create(ctx, &action)
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if payload.ReturnToParticipant {
		s.notifyGraded(ctx, assignment, submission)
	}
	observability.SubmissionsGradedTotal().WithLabelValues("manual").Inc()

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("status", string(submission.Status)).
		Msg("submission finalized")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *gradingService) GetSubmissionForGrading(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error) {
	submission, err := s.getOwnedSubmission(ctx, actor, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	answers, err := s.answers.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	submission.Answers = answers

	return dto.NewSubmissionResponse(submission), nil
}

func (s *gradingService) ListSubmissions(ctx context.Context, actor Actor, status *models.SubmissionStatus) ([]dto.SubmissionSummaryResponse, error) {
	if actor.Role != models.RoleResearcher {
		return nil, ErrNotResearcher
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		ResearcherID: &actor.ID,
		Status:       status,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.SubmissionSummaryResponse, 0, len(submissions))
	for _, submission := range submissions {
		summaries = append(summaries, dto.NewSubmissionSummaryResponse(submission))
	}
	return summaries, nil
}

func (s *gradingService) GetGradingHistory(ctx context.Context, actor Actor, submissionID uint) ([]dto.GradingActionResponse, error) {
	if _, err := s.getOwnedSubmission(ctx, actor, submissionID); err != nil {
		return nil, err
	}

	actions, err := s.actions.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	return toActionResponses(actions), nil
}

func (s *gradingService) ListGradingActivity(ctx context.Context, actor Actor) ([]dto.GradingActionResponse, error) {
	if actor.Role != models.RoleResearcher {
		return nil, ErrNotResearcher
	}

	actions, err := s.actions.ListByResearcher(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	return toActionResponses(actions), nil
}

// gradeAnswer records one manual grade with its audit trail row. The first
// grade of an answer is MANUAL_GRADE; regrades are GRADE_ADJUSTMENT.
func (s *gradingService) gradeAnswer(ctx context.Context, actor Actor, submission *models.Submission, payload dto.ManualGradeRequest) error {
	answer, err := s.answers.GetByID(ctx, payload.AnswerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnswerNotFound
		}
		return err
	}

	if answer.SubmissionID != submission.ID {
		return ErrAnswerNotInSubmission
	}

	if payload.PointsEarned > float64(answer.PointsPossible) {
		return ErrPointsOutOfRange
	}

	// Auto-grading leaves a provisional zero on answers awaiting a human,
	// so the pending flag, not the points, tells a first grade from a
	// regrade.
	actionType := models.ActionManualGrade
	if !answer.RequiresManualGrading {
		actionType = models.ActionGradeAdjustment
	}
	pointsBefore := answer.PointsEarned

	points := payload.PointsEarned
	// Partial credit still counts as correct.
	correct := points > 0

	answer.PointsEarned = &points
	answer.IsCorrect = &correct
	answer.RequiresManualGrading = false

	if err := s.answers.Save(ctx, &answer); err != nil {
		return err
	}

	feedbackText := strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback))

	action := models.GradingAction{
		SubmissionID: submission.ID,
		AnswerID:     &answer.ID,
		GraderID:     actor.ID,
		ActionType:   actionType,
		PointsBefore: pointsBefore,
		PointsAfter:  &points,
		Feedback:     feedbackText,
		Notes:        strings.TrimSpace(s.sanitizer.Sanitize(payload.Notes)),
	}
	if err := s.actions.Create(ctx, &action); err != nil {
		return err
	}

	if feedbackText != "" {
		record := models.GradingFeedback{
			AnswerID:      answer.ID,
			GraderID:      actor.ID,
			FeedbackText:  feedbackText,
			PointsAwarded: &points,
		}
		if err := s.feedback.Create(ctx, &record); err != nil {
			return err
		}
	}

	return nil
}

// recalculateScore refreshes the submission aggregates after manual grades.
func (s *gradingService) recalculateScore(ctx context.Context, submission *models.Submission) error {
	earned, err := s.answers.SumPointsEarned(ctx, submission.ID)
	if err != nil {
		return err
	}

	pending, err := s.answers.CountRequiringManualGrading(ctx, submission.ID)
	if err != nil {
		return err
	}

	possible := submission.TotalPointsPossible
	if possible == 0 {
		quiz, err := s.quizzes.GetWithQuestions(ctx, submission.QuizID)
		if err != nil {
			return err
		}
		possible = quizTotalPoints(quiz)
	}

	score := percentScore(earned, possible)
	submission.ManualScore = &score
	submission.TotalPointsEarned = int(earned)
	submission.TotalPointsPossible = possible
	submission.RequiresManualGrading = pending > 0

	return s.submissions.Update(ctx, submission)
}

// applyOutcome writes the graded submission and its assignment lifecycle
// change in one transaction.
func (s *gradingService) applyOutcome(ctx context.Context, submission *models.Submission, assignment *models.Assignment, quiz models.Quiz) error {
	level := DetermineLevel(submission.FinalScore, quiz, submission.Passed)

	if assignment.Status == models.AssignmentInProgress {
		assignment.Complete(submission.FinalScore, submission.Passed, level, s.now())
	} else {
		// Regrades after completion revise the outcome in place.
		assignment.Score = submission.FinalScore
		assignment.Passed = submission.Passed
		assignment.Level = level
	}

	return s.submissions.UpdateWithAssignment(ctx, submission, assignment)
}

func (s *gradingService) getGradable(ctx context.Context, actor Actor, submissionID uint) (models.Submission, error) {
	submission, err := s.getOwnedSubmission(ctx, actor, submissionID)
	if err != nil {
		return models.Submission{}, err
	}

	if submission.Status != models.SubmissionSubmitted && submission.Status != models.SubmissionGraded {
		return models.Submission{}, ErrInvalidSubmissionState
	}

	return submission, nil
}

// getOwnedSubmission loads a submission and verifies the actor is the
// researcher behind its assignment.
func (s *gradingService) getOwnedSubmission(ctx context.Context, actor Actor, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	if submission.Assignment.ResearcherID != actor.ID {
		return models.Submission{}, ErrNotQuizOwner
	}

	return submission, nil
}

func (s *gradingService) notifyGraded(ctx context.Context, assignment models.Assignment, submission models.Submission) {
	if s.notifier == nil {
		return
	}

	message := fmt.Sprintf("Your attempt at %q has been graded.", assignment.Quiz.Title)
	if submission.FinalScore != nil {
		message += fmt.Sprintf("\nScore: %.1f%%", *submission.FinalScore)
	}
	if submission.Passed != nil {
		if *submission.Passed {
			message += "\nResult: passed"
		} else {
			message += "\nResult: not passed"
		}
	}

	payload := dto.NotificationCreateRequest{
		RecipientID:       assignment.ParticipantID,
		SenderID:          &assignment.ResearcherID,
		Type:              models.NotificationQuizGraded,
		Title:             "Quiz Graded: " + assignment.Quiz.Title,
		Message:           message,
		RelatedEntityType: models.EntitySubmission,
		RelatedEntityID:   &submission.ID,
	}
	if _, err := s.notifier.Publish(ctx, payload); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to dispatch graded notification")
	}
}

// gradeObjectiveAnswer decides correctness for machine-gradable questions.
// Multiple choice requires the selected option set to exactly equal the
// correct set. True/false accepts either a selected option or free text
// matched against the canonical answer.
func gradeObjectiveAnswer(question models.Question, answer models.Answer) bool {
	switch question.Type {
	case models.QuestionMultipleChoice:
		return sameOptionSet(answer.SelectedOptionIDs, question.CorrectOptionIDs())
	case models.QuestionTrueFalse:
		if len(answer.SelectedOptionIDs) == 1 {
			for _, option := range question.Options {
				if option.ID == answer.SelectedOptionIDs[0] {
					return option.IsCorrect
				}
			}
			return false
		}
		return question.MatchesCorrectAnswer(answer.AnswerText)
	default:
		return false
	}
}

func sameOptionSet(selected []uint, correct []uint) bool {
	if len(selected) == 0 || len(selected) != len(correct) {
		return false
	}

	set := make(map[uint]struct{}, len(correct))
	for _, id := range correct {
		set[id] = struct{}{}
	}
	for _, id := range selected {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func quizTotalPoints(quiz models.Quiz) int {
	if quiz.TotalPoints > 0 {
		return quiz.TotalPoints
	}

	total := 0
	for _, question := range quiz.Questions {
		total += question.Points
	}
	return total
}

func percentScore(earned float64, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return earned / float64(possible) * 100
}

func toActionResponses(actions []models.GradingAction) []dto.GradingActionResponse {
	responses := make([]dto.GradingActionResponse, 0, len(actions))
	for _, action := range actions {
		responses = append(responses, dto.NewGradingActionResponse(action))
	}
	return responses
}
