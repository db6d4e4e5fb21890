package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insight-lab/research-go-api/internal/dto"
	"github.com/insight-lab/research-go-api/internal/models"
)

func newAssignmentServiceForTest(
	assignments *fakeAssignmentRepo,
	quizzes *fakeQuizRepo,
	users *fakeUserRepo,
	studies *fakeStudyRepo,
	enrollments *fakeEnrollmentRepo,
	notifier *fakeNotifier,
) AssignmentService {
	return NewAssignmentService(assignments, quizzes, users, studies, enrollments, notifier, testValidator(), testLogger())
}

func TestCreateBatchPartialFailure(t *testing.T) {
	quizzes := newFakeQuizRepo(models.Quiz{ID: 1, Title: "Go Basics", ResearcherID: 5})
	users := newFakeUserRepo(
		models.User{ID: 10, FullName: "Ana", Role: models.RoleParticipant},
		models.User{ID: 11, FullName: "Ben", Role: models.RoleResearcher},
	)
	assignments := newFakeAssignmentRepo()
	notifier := &fakeNotifier{}

	svc := newAssignmentServiceForTest(assignments, quizzes, users, newFakeStudyRepo(), &fakeEnrollmentRepo{}, notifier)

	result, err := svc.CreateBatch(context.Background(), Actor{ID: 5, Role: models.RoleResearcher}, dto.AssignmentCreateRequest{
		QuizID:         1,
		ParticipantIDs: []uint{10, 11, 99},
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Requested)
	require.Equal(t, 1, result.Succeeded)
	require.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)

	require.Len(t, assignments.assignments, 1)
	for _, assignment := range assignments.assignments {
		require.Equal(t, models.AssignmentPending, assignment.Status)
		require.Equal(t, uint(10), assignment.ParticipantID)
		require.Equal(t, 1, assignment.MaxAttempts)
	}

	require.Len(t, notifier.byType(models.NotificationQuizInvitation), 1)
}

func TestCreateBatchRejectsNonOwner(t *testing.T) {
	quizzes := newFakeQuizRepo(models.Quiz{ID: 1, ResearcherID: 5})
	svc := newAssignmentServiceForTest(newFakeAssignmentRepo(), quizzes, newFakeUserRepo(), newFakeStudyRepo(), &fakeEnrollmentRepo{}, &fakeNotifier{})

	_, err := svc.CreateBatch(context.Background(), Actor{ID: 6, Role: models.RoleResearcher}, dto.AssignmentCreateRequest{
		QuizID:         1,
		ParticipantIDs: []uint{10},
	})
	require.ErrorIs(t, err, ErrNotQuizOwner)
}

func TestCreateBatchRequiresAssignableEnrollment(t *testing.T) {
	quizzes := newFakeQuizRepo(models.Quiz{ID: 1, ResearcherID: 5})
	users := newFakeUserRepo(
		models.User{ID: 10, FullName: "Ana", Role: models.RoleParticipant},
		models.User{ID: 12, FullName: "Cam", Role: models.RoleParticipant},
	)
	studies := newFakeStudyRepo(models.Study{ID: 3, ResearcherID: 5, Status: models.StudyStatusActive})
	enrollments := &fakeEnrollmentRepo{enrollments: []models.StudyEnrollment{
		{StudyID: 3, ParticipantID: 10, Status: models.EnrollmentEnrolled},
		{StudyID: 3, ParticipantID: 12, Status: models.EnrollmentInvited},
	}}
	assignments := newFakeAssignmentRepo()

	svc := newAssignmentServiceForTest(assignments, quizzes, users, studies, enrollments, &fakeNotifier{})

	studyID := uint(3)
	result, err := svc.CreateBatch(context.Background(), Actor{ID: 5, Role: models.RoleResearcher}, dto.AssignmentCreateRequest{
		QuizID:         1,
		ParticipantIDs: []uint{10, 12},
		StudyID:        &studyID,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)
	require.Equal(t, 1, result.Failed)
}

func TestCreateBatchSkipsDuplicates(t *testing.T) {
	quizzes := newFakeQuizRepo(models.Quiz{ID: 1, ResearcherID: 5})
	users := newFakeUserRepo(models.User{ID: 10, FullName: "Ana", Role: models.RoleParticipant})
	assignments := newFakeAssignmentRepo(models.Assignment{ID: 1, QuizID: 1, ParticipantID: 10, ResearcherID: 5})

	svc := newAssignmentServiceForTest(assignments, quizzes, users, newFakeStudyRepo(), &fakeEnrollmentRepo{}, &fakeNotifier{})

	result, err := svc.CreateBatch(context.Background(), Actor{ID: 5, Role: models.RoleResearcher}, dto.AssignmentCreateRequest{
		QuizID:         1,
		ParticipantIDs: []uint{10},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.Succeeded)
	require.Equal(t, 1, result.Failed)
}

func TestAcceptAssignment(t *testing.T) {
	assignments := newFakeAssignmentRepo(models.Assignment{
		ID: 1, QuizID: 1, ParticipantID: 10, ResearcherID: 5,
		Status: models.AssignmentPending,
	})
	notifier := &fakeNotifier{}

	svc := newAssignmentServiceForTest(assignments, newFakeQuizRepo(), newFakeUserRepo(), newFakeStudyRepo(), &fakeEnrollmentRepo{}, notifier)

	response, err := svc.Accept(context.Background(), Actor{ID: 10, Role: models.RoleParticipant}, 1)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentAccepted, response.Status)
	require.NotNil(t, response.AcceptedAt)
	require.Len(t, notifier.byType(models.NotificationQuizAccepted), 1)
}

func TestAcceptRejectsWrongParticipant(t *testing.T) {
	assignments := newFakeAssignmentRepo(models.Assignment{
		ID: 1, ParticipantID: 10, Status: models.AssignmentPending,
	})
	svc := newAssignmentServiceForTest(assignments, newFakeQuizRepo(), newFakeUserRepo(), newFakeStudyRepo(), &fakeEnrollmentRepo{}, &fakeNotifier{})

	_, err := svc.Accept(context.Background(), Actor{ID: 11, Role: models.RoleParticipant}, 1)
	require.ErrorIs(t, err, ErrNotAssignmentParticipant)
}

func TestAcceptRejectsNonPending(t *testing.T) {
	assignments := newFakeAssignmentRepo(models.Assignment{
		ID: 1, ParticipantID: 10, Status: models.AssignmentDeclined,
	})
	svc := newAssignmentServiceForTest(assignments, newFakeQuizRepo(), newFakeUserRepo(), newFakeStudyRepo(), &fakeEnrollmentRepo{}, &fakeNotifier{})

	_, err := svc.Accept(context.Background(), Actor{ID: 10, Role: models.RoleParticipant}, 1)
	require.ErrorIs(t, err, ErrInvalidAssignmentState)
}

func TestDeclineSanitizesReason(t *testing.T) {
	assignments := newFakeAssignmentRepo(models.Assignment{
		ID: 1, ParticipantID: 10, ResearcherID: 5, Status: models.AssignmentPending,
	})
	notifier := &fakeNotifier{}
	svc := newAssignmentServiceForTest(assignments, newFakeQuizRepo(), newFakeUserRepo(), newFakeStudyRepo(), &fakeEnrollmentRepo{}, notifier)

	response, err := svc.Decline(context.Background(), Actor{ID: 10, Role: models.RoleParticipant}, 1, dto.AssignmentDeclineRequest{
		Reason: "<script>alert(1)</script>too busy",
	})
	require.NoError(t, err)
	require.Equal(t, models.AssignmentDeclined, response.Status)
	require.Equal(t, "too busy", response.DeclineReason)
	require.Len(t, notifier.byType(models.NotificationQuizDeclined), 1)
}

func TestDeleteRejectsStartedAssignments(t *testing.T) {
	assignments := newFakeAssignmentRepo(models.Assignment{
		ID: 1, ParticipantID: 10, ResearcherID: 5, Status: models.AssignmentInProgress,
	})
	svc := newAssignmentServiceForTest(assignments, newFakeQuizRepo(), newFakeUserRepo(), newFakeStudyRepo(), &fakeEnrollmentRepo{}, &fakeNotifier{})

	err := svc.Delete(context.Background(), Actor{ID: 5, Role: models.RoleResearcher}, 1)
	require.ErrorIs(t, err, ErrInvalidAssignmentState)
	require.Len(t, assignments.assignments, 1)
}

func TestListForActorScopesByRole(t *testing.T) {
	assignments := newFakeAssignmentRepo(
		models.Assignment{ID: 1, ParticipantID: 10, ResearcherID: 5, Status: models.AssignmentPending},
		models.Assignment{ID: 2, ParticipantID: 11, ResearcherID: 5, Status: models.AssignmentPending},
		models.Assignment{ID: 3, ParticipantID: 10, ResearcherID: 6, Status: models.AssignmentAccepted},
	)
	svc := newAssignmentServiceForTest(assignments, newFakeQuizRepo(), newFakeUserRepo(), newFakeStudyRepo(), &fakeEnrollmentRepo{}, &fakeNotifier{})

	asParticipant, err := svc.ListForActor(context.Background(), Actor{ID: 10, Role: models.RoleParticipant}, nil)
	require.NoError(t, err)
	require.Len(t, asParticipant, 2)

	asResearcher, err := svc.ListForActor(context.Background(), Actor{ID: 5, Role: models.RoleResearcher}, nil)
	require.NoError(t, err)
	require.Len(t, asResearcher, 2)

	pending := models.AssignmentPending
	filtered, err := svc.ListForActor(context.Background(), Actor{ID: 10, Role: models.RoleParticipant}, &pending)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
}
