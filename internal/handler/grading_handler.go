package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/insight-lab/research-go-api/internal/dto"
	"github.com/insight-lab/research-go-api/internal/models"
	"github.com/insight-lab/research-go-api/internal/service"
	"github.com/insight-lab/research-go-api/internal/utils"
)

// GradingHandler wires the researcher-facing grading routes.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Get("/submissions", h.listSubmissions)
	router.Get("/submissions/:id", h.getSubmission)
	router.Post("/submissions/:id/grade", h.manualGrade)
	router.Post("/submissions/:id/bulk-grade", h.bulkGrade)
	router.Post("/submissions/:id/finalize", h.finalize)
	router.Get("/submissions/:id/history", h.history)
	router.Get("/activity", h.activity)
}

func (h *GradingHandler) listSubmissions(c *fiber.Ctx) error {
	var status *models.SubmissionStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s := models.SubmissionStatus(strings.ToUpper(raw))
		status = &s
	}

	submissions, err := h.service.ListSubmissions(requestContext(c), actorFromContext(c), status)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *GradingHandler) getSubmission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.GetSubmissionForGrading(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *GradingHandler) manualGrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ManualGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.ManualGrade(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer graded", submission)
}

func (h *GradingHandler) bulkGrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.BulkGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.BulkGrade(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answers graded", submission)
}

func (h *GradingHandler) finalize(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.FinalizeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Finalize(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission finalized", submission)
}

func (h *GradingHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actions, err := h.service.GetGradingHistory(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grading history retrieved", actions)
}

func (h *GradingHandler) activity(c *fiber.Ctx) error {
	actions, err := h.service.ListGradingActivity(requestContext(c), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grading activity retrieved", actions)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrAnswerNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "answer not found")
	case errors.Is(err, service.ErrNotQuizOwner),
		errors.Is(err, service.ErrNotResearcher):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAnswerNotInSubmission),
		errors.Is(err, service.ErrPointsOutOfRange):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidSubmissionState),
		errors.Is(err, service.ErrPendingManualGrading):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
