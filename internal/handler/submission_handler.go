package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/insight-lab/research-go-api/internal/dto"
	"github.com/insight-lab/research-go-api/internal/service"
	"github.com/insight-lab/research-go-api/internal/utils"
)

// SubmissionHandler wires the participant-facing attempt routes.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission endpoints to the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("/assignments/:id/start", h.start)
	router.Get("/:id/quiz", h.quizForTaking)
	router.Put("/:id/answers", h.submitAnswer)
	router.Post("/:id/submit", h.submit)
	router.Get("/:id/result", h.result)
}

func (h *SubmissionHandler) start(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.StartAttempt(requestContext(c), actorFromContext(c), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt started", submission)
}

func (h *SubmissionHandler) quizForTaking(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	quiz, err := h.service.GetQuizForTaking(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "quiz retrieved", quiz)
}

func (h *SubmissionHandler) submitAnswer(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	answer, err := h.service.SubmitAnswer(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer saved", answer)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.SubmitQuiz(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "quiz submitted", submission)
}

func (h *SubmissionHandler) result(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.GetResult(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result retrieved", result)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrQuizNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "quiz not found")
	case errors.Is(err, service.ErrNotAssignmentParticipant),
		errors.Is(err, service.ErrNotSubmissionOwner):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidAssignmentState),
		errors.Is(err, service.ErrInvalidSubmissionState),
		errors.Is(err, service.ErrRetakeNotAllowed),
		errors.Is(err, service.ErrTimeLimitExceeded):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrQuestionNotInQuiz),
		errors.Is(err, service.ErrInvalidAnswerPayload):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrResultNotReady):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
