package handler_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/dto"
	"github.com/insight-lab/research-go-api/internal/models"
)

// startMixedAttempt seeds a quiz with one objective and one free text
// question, runs an attempt through submission, and returns the answer row
// awaiting manual grading.
func startMixedAttempt(t *testing.T, app *fiber.App, db *gorm.DB) models.Answer {
	t.Helper()

	seedQuizFixtures(t, db)

	essay := models.Question{ID: 3, QuizID: 1, Text: "Explain goroutine scheduling.", Type: models.QuestionShortAnswer, Points: 4, DisplayOrder: 3}
	require.NoError(t, db.Create(&essay).Error)
	require.NoError(t, db.Model(&models.Quiz{}).Where("id = ?", 1).Update("total_points", 10).Error)

	resp := apiRequest(t, app, "POST", "/api/v1/assignments", dto.AssignmentCreateRequest{
		QuizID:         1,
		ParticipantIDs: []uint{10},
	}, 5, models.RoleResearcher)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	startResp := apiRequest(t, app, "POST", "/api/v1/submissions/assignments/1/start", nil, 10, models.RoleParticipant)
	require.Equal(t, fiber.StatusCreated, startResp.StatusCode)
	require.NoError(t, startResp.Body.Close())

	answerResp := apiRequest(t, app, "PUT", "/api/v1/submissions/1/answers", dto.SubmitAnswerRequest{
		QuestionID:        1,
		SelectedOptionIDs: []uint{1, 3},
	}, 10, models.RoleParticipant)
	require.Equal(t, fiber.StatusOK, answerResp.StatusCode)
	require.NoError(t, answerResp.Body.Close())

	answerResp = apiRequest(t, app, "PUT", "/api/v1/submissions/1/answers", dto.SubmitAnswerRequest{
		QuestionID: 3,
		AnswerText: "The runtime multiplexes goroutines onto OS threads.",
	}, 10, models.RoleParticipant)
	require.Equal(t, fiber.StatusOK, answerResp.StatusCode)
	require.NoError(t, answerResp.Body.Close())

	submitResp := apiRequest(t, app, "POST", "/api/v1/submissions/1/submit", nil, 10, models.RoleParticipant)
	require.Equal(t, fiber.StatusOK, submitResp.StatusCode)

	var submitted struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, submitResp, &submitted)
	require.Equal(t, models.SubmissionSubmitted, submitted.Data.Status)
	require.True(t, submitted.Data.RequiresManualGrading)

	var pending models.Answer
	require.NoError(t, db.Where("submission_id = ? AND question_id = ?", 1, 3).First(&pending).Error)
	require.True(t, pending.RequiresManualGrading)
	return pending
}

func TestGradingHandlerManualGradeAndFinalize(t *testing.T) {
	app, db := setupQuizEngineApp(t)
	pending := startMixedAttempt(t, app, db)

	queueResp := apiRequest(t, app, "GET", "/api/v1/grading/submissions?status=submitted", nil, 5, models.RoleResearcher)
	require.Equal(t, fiber.StatusOK, queueResp.StatusCode)

	var queue struct {
		Data []dto.SubmissionSummaryResponse `json:"data"`
	}
	decodeResponse(t, queueResp, &queue)
	require.Len(t, queue.Data, 1)
	require.True(t, queue.Data[0].RequiresManualGrading)

	// Finalizing before the essay is graded is refused.
	earlyResp := apiRequest(t, app, "POST", "/api/v1/grading/submissions/1/finalize", dto.FinalizeRequest{}, 5, models.RoleResearcher)
	require.Equal(t, fiber.StatusConflict, earlyResp.StatusCode)
	require.NoError(t, earlyResp.Body.Close())

	gradeResp := apiRequest(t, app, "POST", "/api/v1/grading/submissions/1/grade", dto.ManualGradeRequest{
		AnswerID:     pending.ID,
		PointsEarned: 4,
		Feedback:     "Clear and accurate.",
	}, 5, models.RoleResearcher)
	require.Equal(t, fiber.StatusOK, gradeResp.StatusCode)

	var graded struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, gradeResp, &graded)
	require.NotNil(t, graded.Data.ManualScore)
	require.InDelta(t, 80.0, *graded.Data.ManualScore, 0.001)

	finalizeResp := apiRequest(t, app, "POST", "/api/v1/grading/submissions/1/finalize", dto.FinalizeRequest{
		ReturnToParticipant: true,
	}, 5, models.RoleResearcher)
	require.Equal(t, fiber.StatusOK, finalizeResp.StatusCode)

	var finalized struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, finalizeResp, &finalized)
	require.Equal(t, models.SubmissionReturned, finalized.Data.Status)
	require.InDelta(t, 80.0, *finalized.Data.FinalScore, 0.001)
	require.True(t, *finalized.Data.Passed)

	historyResp := apiRequest(t, app, "GET", "/api/v1/grading/submissions/1/history", nil, 5, models.RoleResearcher)
	require.Equal(t, fiber.StatusOK, historyResp.StatusCode)

	var history struct {
		Data []dto.GradingActionResponse `json:"data"`
	}
	decodeResponse(t, historyResp, &history)
	require.Len(t, history.Data, 4)

	// Auto-grading leaves one trail row per answer.
	types := make([]string, 0, len(history.Data))
	for _, action := range history.Data {
		types = append(types, action.ActionType)
	}
	require.ElementsMatch(t, []string{models.ActionAutoGrade, models.ActionAutoGrade, models.ActionManualGrade, models.ActionFinalized}, types)
}

func TestGradingHandlerBulkGradeAllOrNothing(t *testing.T) {
	app, db := setupQuizEngineApp(t)
	pending := startMixedAttempt(t, app, db)

	bulkResp := apiRequest(t, app, "POST", "/api/v1/grading/submissions/1/bulk-grade", dto.BulkGradeRequest{
		Grades: []dto.ManualGradeRequest{
			{AnswerID: pending.ID, PointsEarned: 4},
			{AnswerID: pending.ID, PointsEarned: 99},
		},
	}, 5, models.RoleResearcher)
	require.Equal(t, fiber.StatusBadRequest, bulkResp.StatusCode)
	require.NoError(t, bulkResp.Body.Close())

	// The rejected batch leaves no trace: the valid grade before the bad
	// one rolled back with it.
	var answer models.Answer
	require.NoError(t, db.First(&answer, pending.ID).Error)
	require.True(t, answer.RequiresManualGrading)
	require.NotNil(t, answer.PointsEarned)
	require.InDelta(t, 0.0, *answer.PointsEarned, 0.001)

	var manualActions int64
	require.NoError(t, db.Model(&models.GradingAction{}).
		Where("action_type = ?", models.ActionManualGrade).
		Count(&manualActions).Error)
	require.Zero(t, manualActions)

	var stored models.Submission
	require.NoError(t, db.First(&stored, 1).Error)
	require.True(t, stored.RequiresManualGrading)
	require.Nil(t, stored.ManualScore)
}

func TestGradingHandlerForbidsNonOwners(t *testing.T) {
	app, db := setupQuizEngineApp(t)
	pending := startMixedAttempt(t, app, db)

	gradeResp := apiRequest(t, app, "POST", "/api/v1/grading/submissions/1/grade", dto.ManualGradeRequest{
		AnswerID:     pending.ID,
		PointsEarned: 4,
	}, 66, models.RoleResearcher)
	require.Equal(t, fiber.StatusForbidden, gradeResp.StatusCode)

	queueResp := apiRequest(t, app, "GET", "/api/v1/grading/submissions", nil, 10, models.RoleParticipant)
	require.Equal(t, fiber.StatusForbidden, queueResp.StatusCode)
}

func TestGradingHandlerRejectsExcessPoints(t *testing.T) {
	app, db := setupQuizEngineApp(t)
	pending := startMixedAttempt(t, app, db)

	gradeResp := apiRequest(t, app, "POST", "/api/v1/grading/submissions/1/grade", dto.ManualGradeRequest{
		AnswerID:     pending.ID,
		PointsEarned: 99,
	}, 5, models.RoleResearcher)
	require.Equal(t, fiber.StatusBadRequest, gradeResp.StatusCode)
}
