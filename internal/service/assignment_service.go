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
	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/dto"
	"github.com/insight-lab/research-go-api/internal/models"
	"github.com/insight-lab/research-go-api/internal/repository"
)

// ErrAssignmentNotFound indicates the assignment was not located.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrQuizNotFound indicates the referenced quiz definition was not located.
var ErrQuizNotFound = errors.New("quiz not found")

// ErrStudyNotFound indicates the referenced study was not located.
var ErrStudyNotFound = errors.New("study not found")

// ErrNotQuizOwner indicates the actor does not own the quiz.
var ErrNotQuizOwner = errors.New("actor does not own this quiz")

// ErrNotAssignmentParticipant indicates the actor is not the target participant.
var ErrNotAssignmentParticipant = errors.New("actor is not the assignment participant")

// ErrNotResearcher indicates the operation requires the researcher role.
var ErrNotResearcher = errors.New("only researchers may perform this operation")

// ErrInvalidAssignmentState indicates the operation is illegal for the
// assignment's current status.
var ErrInvalidAssignmentState = errors.New("operation not valid for assignment state")

// AssignmentService manages the invite/accept/decline lifecycle of quiz
// assignments.
type AssignmentService interface {
	CreateBatch(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest) (dto.BatchAssignmentResponse, error)
	Accept(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error)
	Decline(ctx context.Context, actor Actor, id uint, payload dto.AssignmentDeclineRequest) (dto.AssignmentResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error)
	ListForActor(ctx context.Context, actor Actor, status *models.AssignmentStatus) ([]dto.AssignmentResponse, error)
	ListByQuiz(ctx context.Context, actor Actor, quizID uint) ([]dto.AssignmentResponse, error)
	ListByStudy(ctx context.Context, actor Actor, studyID uint) ([]dto.AssignmentResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	quizzes     repository.QuizRepository
	users       repository.UserRepository
	studies     repository.StudyRepository
	enrollments repository.EnrollmentRepository
	notifier    Notifier
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(
	assignments repository.AssignmentRepository,
	quizzes repository.QuizRepository,
	users repository.UserRepository,
	studies repository.StudyRepository,
	enrollments repository.EnrollmentRepository,
	notifier Notifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) AssignmentService {
	return &assignmentService{
		assignments: assignments,
		quizzes:     quizzes,
		users:       users,
		studies:     studies,
		enrollments: enrollments,
		notifier:    notifier,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentService) CreateBatch(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest) (dto.BatchAssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BatchAssignmentResponse{}, err
	}

	if actor.Role != models.RoleResearcher {
		return dto.BatchAssignmentResponse{}, ErrNotResearcher
	}

	quiz, err := s.quizzes.GetByID(ctx, payload.QuizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BatchAssignmentResponse{}, ErrQuizNotFound
		}
		return dto.BatchAssignmentResponse{}, err
	}

	if quiz.ResearcherID != actor.ID {
		return dto.BatchAssignmentResponse{}, ErrNotQuizOwner
	}

	var study *models.Study
	if payload.StudyID != nil {
		found, err := s.studies.GetByID(ctx, *payload.StudyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.BatchAssignmentResponse{}, ErrStudyNotFound
			}
			return dto.BatchAssignmentResponse{}, err
		}
		study = &found
	}

	maxAttempts := payload.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	result := dto.BatchAssignmentResponse{Requested: len(payload.ParticipantIDs)}

	for _, participantID := range payload.ParticipantIDs {
		if reason := s.assignOne(ctx, actor, quiz, study, participantID, payload, maxAttempts); reason != "" {
			result.Failed++
			result.Errors = append(result.Errors, reason)
			continue
		}
		result.Succeeded++
	}

	s.logger.Info().
		Uint("quiz_id", quiz.ID).
		Int("requested", result.Requested).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("batch assignment completed")

	return result, nil
}

// assignOne runs the per-participant eligibility checks and persists a single
// assignment. A non-empty return is the failure reason reported to the caller;
// one participant failing never aborts the rest of the batch.
func (s *assignmentService) assignOne(ctx context.Context, actor Actor, quiz models.Quiz, study *models.Study, participantID uint, payload dto.AssignmentCreateRequest, maxAttempts int) string {
	participant, err := s.users.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Sprintf("participant %d not found", participantID)
		}
		return fmt.Sprintf("participant %d lookup failed", participantID)
	}

	if !participant.IsParticipant() {
		return fmt.Sprintf("user %d is not a participant", participantID)
	}

	if study != nil {
		enrollment, err := s.enrollments.GetByStudyAndParticipant(ctx, study.ID, participantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Sprintf("participant %s is not enrolled in this study", participant.FullName)
			}
			return fmt.Sprintf("enrollment lookup failed for participant %d", participantID)
		}

		if !enrollment.CanReceiveAssignments() {
			return fmt.Sprintf("participant %s must accept the study invitation before receiving quizzes", participant.FullName)
		}
	}

	exists, err := s.assignments.ExistsByParticipantAndQuiz(ctx, participantID, quiz.ID)
	if err != nil {
		return fmt.Sprintf("assignment lookup failed for participant %d", participantID)
	}
	if exists {
		return fmt.Sprintf("quiz already assigned to participant %s", participant.FullName)
	}

	assignment := models.Assignment{
		QuizID:        quiz.ID,
		ParticipantID: participantID,
		ResearcherID:  actor.ID,
		DueDate:       payload.DueDate,
		MaxAttempts:   maxAttempts,
		AllowRetake:   payload.AllowRetake,
		Notes:         strings.TrimSpace(s.sanitizer.Sanitize(payload.Notes)),
		Status:        models.AssignmentPending,
	}
	if study != nil {
		assignment.StudyID = &study.ID
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		s.logger.Error().Err(err).Uint("participant_id", participantID).Msg("failed to persist assignment")
		return fmt.Sprintf("failed to assign quiz to participant %d", participantID)
	}

	s.notify(ctx, dto.NotificationCreateRequest{
		RecipientID:       participantID,
		SenderID:          &actor.ID,
		Type:              models.NotificationQuizInvitation,
		Title:             "Quiz Assigned: " + quiz.Title,
		Message:           s.buildInvitationMessage(quiz, study, assignment),
		RelatedEntityType: models.EntityAssignment,
		RelatedEntityID:   &assignment.ID,
	})

	return ""
}

func (s *assignmentService) Accept(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	now := s.now()
	if !assignment.Accept(now) {
		return dto.AssignmentResponse{}, ErrInvalidAssignmentState
	}

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.notify(ctx, dto.NotificationCreateRequest{
		RecipientID:       assignment.ResearcherID,
		SenderID:          &actor.ID,
		Type:              models.NotificationQuizAccepted,
		Title:             "Quiz Invitation Accepted",
		Message:           fmt.Sprintf("%s has accepted the quiz invitation for %q", assignment.Participant.FullName, assignment.Quiz.Title),
		RelatedEntityType: models.EntityAssignment,
		RelatedEntityID:   &assignment.ID,
	})

	return dto.NewAssignmentResponse(assignment, now), nil
}

func (s *assignmentService) Decline(ctx context.Context, actor Actor, id uint, payload dto.AssignmentDeclineRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	reason := strings.TrimSpace(s.sanitizer.Sanitize(payload.Reason))

	now := s.now()
	if !assignment.Decline(reason, now) {
		return dto.AssignmentResponse{}, ErrInvalidAssignmentState
	}

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	message := fmt.Sprintf("%s has declined the quiz invitation for %q", assignment.Participant.FullName, assignment.Quiz.Title)
	if reason != "" {
		message += "\nReason: " + reason
	}

	s.notify(ctx, dto.NotificationCreateRequest{
		RecipientID:       assignment.ResearcherID,
		SenderID:          &actor.ID,
		Type:              models.NotificationQuizDeclined,
		Title:             "Quiz Invitation Declined",
		Message:           message,
		RelatedEntityType: models.EntityAssignment,
		RelatedEntityID:   &assignment.ID,
	})

	return dto.NewAssignmentResponse(assignment, now), nil
}

func (s *assignmentService) Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	if assignment.ParticipantID != actor.ID && assignment.ResearcherID != actor.ID {
		return dto.AssignmentResponse{}, ErrNotAssignmentParticipant
	}

	return dto.NewAssignmentResponse(assignment, s.now()), nil
}

func (s *assignmentService) ListForActor(ctx context.Context, actor Actor, status *models.AssignmentStatus) ([]dto.AssignmentResponse, error) {
	filter := repository.AssignmentFilter{Status: status}
	switch actor.Role {
	case models.RoleResearcher:
		filter.ResearcherID = &actor.ID
	case models.RoleParticipant:
		filter.ParticipantID = &actor.ID
	default:
		return []dto.AssignmentResponse{}, nil
	}

	assignments, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return s.toResponses(assignments), nil
}

func (s *assignmentService) ListByQuiz(ctx context.Context, actor Actor, quizID uint) ([]dto.AssignmentResponse, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	if quiz.ResearcherID != actor.ID {
		return nil, ErrNotQuizOwner
	}

	assignments, err := s.assignments.List(ctx, repository.AssignmentFilter{QuizID: &quizID})
	if err != nil {
		return nil, err
	}

	return s.toResponses(assignments), nil
}

func (s *assignmentService) ListByStudy(ctx context.Context, actor Actor, studyID uint) ([]dto.AssignmentResponse, error) {
	study, err := s.studies.GetByID(ctx, studyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudyNotFound
		}
		return nil, err
	}

	if study.ResearcherID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, ErrNotQuizOwner
	}

	assignments, err := s.assignments.List(ctx, repository.AssignmentFilter{StudyID: &studyID})
	if err != nil {
		return nil, err
	}

	return s.toResponses(assignments), nil
}

func (s *assignmentService) Delete(ctx context.Context, actor Actor, id uint) error {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	if assignment.ResearcherID != actor.ID {
		return ErrNotQuizOwner
	}

	if assignment.Status == models.AssignmentInProgress || assignment.Status == models.AssignmentCompleted {
		return ErrInvalidAssignmentState
	}

	return s.assignments.Delete(ctx, id)
}

// getOwned loads an assignment and verifies the actor is its participant.
func (s *assignmentService) getOwned(ctx context.Context, actor Actor, id uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	if assignment.ParticipantID != actor.ID {
		return models.Assignment{}, ErrNotAssignmentParticipant
	}

	return assignment, nil
}

func (s *assignmentService) toResponses(assignments []models.Assignment) []dto.AssignmentResponse {
	now := s.now()
	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, dto.NewAssignmentResponse(assignment, now))
	}
	return responses
}

func (s *assignmentService) buildInvitationMessage(quiz models.Quiz, study *models.Study, assignment models.Assignment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have been assigned the quiz %q", quiz.Title)
	if study != nil {
		fmt.Fprintf(&b, " as part of the study %q", study.Title)
	}
	b.WriteString(".")

	if quiz.Description != "" {
		b.WriteString("\n\n" + quiz.Description)
	}

	if quiz.TimeLimitMinutes != nil {
		fmt.Fprintf(&b, "\nTime limit: %d minutes", *quiz.TimeLimitMinutes)
	}

	if quiz.PassingThreshold != nil {
		fmt.Fprintf(&b, "\nPassing threshold: %.0f%%", *quiz.PassingThreshold)
	}

	if assignment.DueDate != nil {
		fmt.Fprintf(&b, "\nDue: %s", assignment.DueDate.Format(time.RFC1123))
	}

	if assignment.MaxAttempts > 1 {
		fmt.Fprintf(&b, "\nMax attempts: %d", assignment.MaxAttempts)
	}

	if assignment.Notes != "" {
		b.WriteString("\n\nNotes from researcher:\n" + assignment.Notes)
	}

	return b.String()
}

// notify dispatches fire-and-forget; failures are logged, never propagated.
func (s *assignmentService) notify(ctx context.Context, payload dto.NotificationCreateRequest) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Publish(ctx, payload); err != nil {
		s.logger.Warn().Err(err).Str("type", payload.Type).Msg("failed to dispatch notification")
	}
}
