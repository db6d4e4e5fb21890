package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

// ErrSubmissionNotFound indicates the submission was not located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrNotSubmissionOwner indicates the actor did not create the submission.
var ErrNotSubmissionOwner = errors.New("actor does not own this submission")

// ErrInvalidSubmissionState indicates the operation is illegal for the
// submission's current status.
var ErrInvalidSubmissionState = errors.New("operation not valid for submission state")

// ErrRetakeNotAllowed indicates no further attempt may be opened.
var ErrRetakeNotAllowed = errors.New("retake not allowed for this assignment")

// ErrQuestionNotInQuiz indicates the answered question belongs to another quiz.
var ErrQuestionNotInQuiz = errors.New("question does not belong to this quiz")

// ErrInvalidAnswerPayload indicates the answer shape does not fit the
// question type.
var ErrInvalidAnswerPayload = errors.New("answer payload does not match question type")

// ErrTimeLimitExceeded indicates the quiz's time limit has elapsed.
var ErrTimeLimitExceeded = errors.New("quiz time limit exceeded")

// ErrResultNotReady indicates grading has not finished yet.
var ErrResultNotReady = errors.New("submission has not been graded yet")

// Grader runs objective grading over a freshly submitted attempt. Implemented
// by the grading service; injected as an interface to keep the submission
// flow decoupled from grading internals.
type Grader interface {
	AutoGrade(ctx context.Context, submissionID uint) (models.Submission, error)
}

// SubmissionService manages the participant-facing attempt lifecycle from
// start through answers to submission.
type SubmissionService interface {
	StartAttempt(ctx context.Context, actor Actor, assignmentID uint) (dto.SubmissionResponse, error)
	GetQuizForTaking(ctx context.Context, actor Actor, submissionID uint) (dto.QuizTakingResponse, error)
	SubmitAnswer(ctx context.Context, actor Actor, submissionID uint, payload dto.SubmitAnswerRequest) (dto.AnswerResponse, error)
	SubmitQuiz(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error)
	GetResult(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	answers     repository.AnswerRepository
	tx          repository.Transactor
	quizzes     QuizReader
	grader      Grader
	notifier    Notifier
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	answers repository.AnswerRepository,
	tx repository.Transactor,
	quizzes QuizReader,
	grader Grader,
	notifier Notifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissions: submissions,
		assignments: assignments,
		answers:     answers,
		tx:          tx,
		quizzes:     quizzes,
		grader:      grader,
		notifier:    notifier,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		tracer:      otel.Tracer("submission-service"),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

// StartAttempt opens a new attempt or resumes the in-progress one. Concurrent
// duplicate requests are resolved by the unique (assignment, attempt) index:
// the loser re-reads the winner's row, so both callers see the same attempt.
func (s *submissionService) StartAttempt(ctx context.Context, actor Actor, assignmentID uint) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.start_attempt",
		trace.WithAttributes(attribute.Int("assignment.id", int(assignmentID))))
	defer span.End()

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if assignment.ParticipantID != actor.ID {
		return dto.SubmissionResponse{}, ErrNotAssignmentParticipant
	}

	switch assignment.Status {
	case models.AssignmentDeclined:
		return dto.SubmissionResponse{}, ErrInvalidAssignmentState
	case models.AssignmentCompleted:
		if !assignment.CanRetake() {
			return dto.SubmissionResponse{}, ErrRetakeNotAllowed
		}
	case models.AssignmentPending:
		// Starting implies acceptance.
		assignment.Accept(s.now())
	}

	attemptNumber := assignment.AttemptsTaken + 1

	// Resume an attempt that is already open.
	if existing, err := s.submissions.GetByAssignmentAndAttempt(ctx, assignment.ID, attemptNumber); err == nil {
		if existing.Status != models.SubmissionInProgress {
			return dto.SubmissionResponse{}, ErrInvalidSubmissionState
		}
		return dto.NewSubmissionResponse(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, err
	}

	if !assignment.Start() {
		return dto.SubmissionResponse{}, ErrInvalidAssignmentState
	}

	submission := models.Submission{
		AssignmentID:  assignment.ID,
		ParticipantID: assignment.ParticipantID,
		QuizID:        assignment.QuizID,
		AttemptNumber: attemptNumber,
		Status:        models.SubmissionInProgress,
		StartedAt:     s.now(),
	}

	// The assignment transition and the attempt row land together; losing
	// the duplicate-key race rolls both back.
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.assignments.Update(ctx, &assignment); err != nil {
			return err
		}
		return s.submissions.Create(ctx, &submission)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, readErr := s.submissions.GetByAssignmentAndAttempt(ctx, assignment.ID, attemptNumber)
			if readErr != nil {
				return dto.SubmissionResponse{}, readErr
			}
			return dto.NewSubmissionResponse(winner), nil
		}
		return dto.SubmissionResponse{}, err
	}

	observability.AttemptsStartedTotal().Inc()

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("submission_id", submission.ID).
		Int("attempt", attemptNumber).
		Msg("attempt started")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) GetQuizForTaking(ctx context.Context, actor Actor, submissionID uint) (dto.QuizTakingResponse, error) {
	submission, err := s.getInProgress(ctx, actor, submissionID)
	if err != nil {
		return dto.QuizTakingResponse{}, err
	}

	quiz, err := s.quizzes.GetWithQuestions(ctx, submission.QuizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuizTakingResponse{}, ErrQuizNotFound
		}
		return dto.QuizTakingResponse{}, err
	}

	response := dto.QuizTakingResponse{
		SubmissionID:     submission.ID,
		QuizID:           quiz.ID,
		QuizTitle:        quiz.Title,
		QuizDescription:  quiz.Description,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		TotalPoints:      quiz.TotalPoints,
		StartedAt:        submission.StartedAt,
		SavedAnswers:     []dto.AnswerResponse{},
	}

	questions := make([]models.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].DisplayOrder < questions[j].DisplayOrder
	})
	for _, question := range questions {
		response.Questions = append(response.Questions, dto.NewQuizQuestionView(question))
	}

	saved, err := s.answers.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return dto.QuizTakingResponse{}, err
	}
	for _, answer := range saved {
		response.SavedAnswers = append(response.SavedAnswers, dto.NewAnswerForTaking(answer))
	}

	return response, nil
}

func (s *submissionService) SubmitAnswer(ctx context.Context, actor Actor, submissionID uint, payload dto.SubmitAnswerRequest) (dto.AnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerResponse{}, err
	}

	submission, err := s.getInProgress(ctx, actor, submissionID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	quiz, err := s.quizzes.GetWithQuestions(ctx, submission.QuizID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	if err := s.checkTimeLimit(submission, quiz); err != nil {
		return dto.AnswerResponse{}, err
	}

	question, ok := quiz.QuestionByID(payload.QuestionID)
	if !ok {
		return dto.AnswerResponse{}, ErrQuestionNotInQuiz
	}

	if err := validateAnswerShape(question, payload); err != nil {
		return dto.AnswerResponse{}, err
	}

	answer, err := s.answers.GetBySubmissionAndQuestion(ctx, submission.ID, question.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, err
		}
		answer = models.Answer{
			SubmissionID: submission.ID,
			QuestionID:   question.ID,
		}
	}

	answer.AnswerText = strings.TrimSpace(s.sanitizer.Sanitize(payload.AnswerText))
	answer.SelectedOptionIDs = payload.SelectedOptionIDs
	answer.PointsPossible = question.Points
	answer.RequiresManualGrading = !question.IsObjective()
	// Grading outcomes reset on every overwrite.
	answer.IsCorrect = nil
	answer.PointsEarned = nil

	if err := s.answers.Save(ctx, &answer); err != nil {
		return dto.AnswerResponse{}, err
	}

	return dto.NewAnswerForTaking(answer), nil
}

// SubmitQuiz closes the attempt and hands it to the grading pipeline.
func (s *submissionService) SubmitQuiz(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit_quiz",
		trace.WithAttributes(attribute.Int("submission.id", int(submissionID))))
	defer span.End()

	submission, err := s.getInProgress(ctx, actor, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	now := s.now()
	if !submission.Submit(now) {
		return dto.SubmissionResponse{}, ErrInvalidSubmissionState
	}

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	graded, err := s.grader.AutoGrade(ctx, submission.ID)
	if err != nil {
		// The submission stays SUBMITTED; grading can be re-run.
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("auto-grading failed")
		return dto.NewSubmissionResponse(submission), nil
	}

	assignment, err := s.assignments.GetByID(ctx, graded.AssignmentID)
	if err == nil {
		s.notify(ctx, dto.NotificationCreateRequest{
			RecipientID:       assignment.ResearcherID,
			SenderID:          &actor.ID,
			Type:              models.NotificationQuizSubmitted,
			Title:             "Quiz Submitted: " + assignment.Quiz.Title,
			Message:           s.buildSubmittedMessage(assignment, graded),
			RelatedEntityType: models.EntitySubmission,
			RelatedEntityID:   &graded.ID,
		})
	}

	s.logger.Info().
		Uint("submission_id", graded.ID).
		Str("status", string(graded.Status)).
		Bool("requires_manual_grading", graded.RequiresManualGrading).
		Msg("attempt submitted")

	return dto.NewSubmissionResponse(graded), nil
}

// GetResult returns the graded view. Researchers who own the quiz may look at
// any time; participants only once grading has finished.
func (s *submissionService) GetResult(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if submission.ParticipantID != actor.ID {
		if submission.Assignment.ResearcherID != actor.ID {
			return dto.SubmissionResponse{}, ErrNotSubmissionOwner
		}
	} else if submission.Status != models.SubmissionGraded && submission.Status != models.SubmissionReturned {
		return dto.SubmissionResponse{}, ErrResultNotReady
	}

	answers, err := s.answers.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	submission.Answers = answers

	return dto.NewSubmissionResponse(submission), nil
}

// getInProgress loads a submission and verifies it belongs to the actor and
// is still open for changes.
func (s *submissionService) getInProgress(ctx context.Context, actor Actor, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	if submission.ParticipantID != actor.ID {
		return models.Submission{}, ErrNotSubmissionOwner
	}

	if submission.Status != models.SubmissionInProgress {
		return models.Submission{}, ErrInvalidSubmissionState
	}

	return submission, nil
}

// checkTimeLimit rejects writes after the quiz's time limit, with a one
// minute grace window for clock skew and in-flight requests.
func (s *submissionService) checkTimeLimit(submission models.Submission, quiz models.Quiz) error {
	if quiz.TimeLimitMinutes == nil {
		return nil
	}

	deadline := submission.StartedAt.
		Add(time.Duration(*quiz.TimeLimitMinutes) * time.Minute).
		Add(time.Minute)
	if s.now().After(deadline) {
		return ErrTimeLimitExceeded
	}
	return nil
}

func (s *submissionService) buildSubmittedMessage(assignment models.Assignment, submission models.Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s has submitted attempt %d of %q.",
		assignment.Participant.FullName, submission.AttemptNumber, assignment.Quiz.Title)

	if submission.RequiresManualGrading {
		b.WriteString("\nManual grading is required before results can be released.")
	} else if submission.FinalScore != nil {
		fmt.Fprintf(&b, "\nAuto-graded score: %.1f%%", *submission.FinalScore)
	}

	return b.String()
}

func (s *submissionService) notify(ctx context.Context, payload dto.NotificationCreateRequest) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Publish(ctx, payload); err != nil {
		s.logger.Warn().Err(err).Str("type", payload.Type).Msg("failed to dispatch notification")
	}
}

// validateAnswerShape enforces that the payload shape matches the question
// type before anything is persisted.
func validateAnswerShape(question models.Question, payload dto.SubmitAnswerRequest) error {
	switch question.Type {
	case models.QuestionMultipleChoice:
		if len(payload.SelectedOptionIDs) == 0 {
			return ErrInvalidAnswerPayload
		}
		for _, id := range payload.SelectedOptionIDs {
			if !questionHasOption(question, id) {
				return ErrInvalidAnswerPayload
			}
		}
	case models.QuestionTrueFalse:
		if len(payload.SelectedOptionIDs) > 1 {
			return ErrInvalidAnswerPayload
		}
		if len(payload.SelectedOptionIDs) == 1 && !questionHasOption(question, payload.SelectedOptionIDs[0]) {
			return ErrInvalidAnswerPayload
		}
		if len(payload.SelectedOptionIDs) == 0 && strings.TrimSpace(payload.AnswerText) == "" {
			return ErrInvalidAnswerPayload
		}
	case models.QuestionShortAnswer:
		if strings.TrimSpace(payload.AnswerText) == "" {
			return ErrInvalidAnswerPayload
		}
	}
	return nil
}

func questionHasOption(question models.Question, optionID uint) bool {
	for _, option := range question.Options {
		if option.ID == optionID {
			return true
		}
	}
	return false
}
