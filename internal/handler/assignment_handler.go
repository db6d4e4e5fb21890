package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/insight-lab/research-go-api/internal/dto"
	"github.com/insight-lab/research-go-api/internal/middleware"
	"github.com/insight-lab/research-go-api/internal/models"
	"github.com/insight-lab/research-go-api/internal/service"
	"github.com/insight-lab/research-go-api/internal/utils"
)

// AssignmentHandler wires quiz assignment HTTP routes.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group. The quiz and
// study listings are registered ahead of "/:id" so their prefixes are not
// swallowed by the wildcard.
func (h *AssignmentHandler) Register(router fiber.Router) {
	researcherOnly := middleware.AuthOptions{Role: middleware.AuthRoleResearcher}

	router.Get("", h.list)
	router.Post("", middleware.WithAuth(h.create, researcherOnly))
	router.Get("/quiz/:quizId", middleware.WithAuth(h.listByQuiz, researcherOnly))
	router.Get("/study/:studyId", h.listByStudy)
	router.Get("/:id", h.get)
	router.Post("/:id/accept", h.accept)
	router.Post("/:id/decline", h.decline)
	router.Delete("/:id", middleware.WithAuth(h.delete, researcherOnly))
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	var status *models.AssignmentStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s := models.AssignmentStatus(strings.ToUpper(raw))
		status = &s
	}

	assignments, err := h.service.ListForActor(requestContext(c), actorFromContext(c), status)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.CreateBatch(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	status := fiber.StatusCreated
	if result.Failed > 0 && result.Succeeded == 0 {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(utils.APIResponse{
		Success: result.Succeeded > 0,
		Message: "assignment batch processed",
		Data:    result,
	})
}

func (h *AssignmentHandler) listByQuiz(c *fiber.Ctx) error {
	quizID, err := parseUintParam(c, "quizId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignments, err := h.service.ListByQuiz(requestContext(c), actorFromContext(c), quizID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "quiz assignments retrieved", assignments)
}

func (h *AssignmentHandler) listByStudy(c *fiber.Ctx) error {
	studyID, err := parseUintParam(c, "studyId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignments, err := h.service.ListByStudy(requestContext(c), actorFromContext(c), studyID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "study assignments retrieved", assignments)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) accept(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Accept(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment accepted", assignment)
}

func (h *AssignmentHandler) decline(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentDeclineRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.Decline(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment declined", assignment)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment deleted", fiber.Map{"id": id})
}

func (h *AssignmentHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrQuizNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "quiz not found")
	case errors.Is(err, service.ErrStudyNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "study not found")
	case errors.Is(err, service.ErrNotQuizOwner),
		errors.Is(err, service.ErrNotAssignmentParticipant),
		errors.Is(err, service.ErrNotResearcher):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidAssignmentState):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
