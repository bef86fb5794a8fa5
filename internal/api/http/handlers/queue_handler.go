package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/mentor-queue/internal/api/dto"
	"github.com/spec-kit/mentor-queue/internal/auth"
	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/service"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

// QueueHandler serves the help queue endpoints.
type QueueHandler struct {
	service *service.QueueService
}

// NewQueueHandler constructs handler.
func NewQueueHandler(queueService *service.QueueService) *QueueHandler {
	return &QueueHandler{service: queueService}
}

// Create POST /queue/create.
func (h *QueueHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), principal, service.TicketCreateInput{
		Question: req.Question,
		Content:  req.Content,
		Location: req.Location,
		Tags:     req.Tags,
		Images:   req.Images,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Ticket created!",
		"ticket":  h.project(*ticket),
	})
}

// List GET /queue/get.
func (h *QueueHandler) List(c *fiber.Ctx) error {
	tickets, err := h.service.ListOpen(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, h.project(tickets[i]))
	}
	return c.JSON(items)
}

// Claim POST /queue/claim.
func (h *QueueHandler) Claim(c *fiber.Ctx) error {
	principal, id, err := actionInput(c)
	if err != nil {
		return err
	}
	if _, err := h.service.Claim(c.UserContext(), principal, id); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Ticket claimed!"})
}

// Unclaim POST /queue/unclaim.
func (h *QueueHandler) Unclaim(c *fiber.Ctx) error {
	principal, id, err := actionInput(c)
	if err != nil {
		return err
	}
	if _, err := h.service.Unclaim(c.UserContext(), principal, id); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Ticket unclaimed!"})
}

// Resolve POST /queue/resolve.
func (h *QueueHandler) Resolve(c *fiber.Ctx) error {
	principal, id, err := actionInput(c)
	if err != nil {
		return err
	}
	if _, err := h.service.Resolve(c.UserContext(), principal, id); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Ticket resolved! Awaiting user feedback"})
}

// Claimed GET /queue/claimed.
func (h *QueueHandler) Claimed(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := h.service.Claimed(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(dto.ClaimedResponse{Claimed: id})
}

// Ranking GET /queue/ranking.
func (h *QueueHandler) Ranking(c *fiber.Ctx) error {
	entries, err := h.service.Ranking(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewRanking(entries))
}

// Feedback POST /queue/feedback.
func (h *QueueHandler) Feedback(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	if _, err := h.service.SubmitFeedback(c.UserContext(), principal, int64(req.ID), service.FeedbackInput{
		Rating: *req.Rating,
		Review: req.Review,
	}); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Thank you for your feedback!"})
}

func (h *QueueHandler) project(t domain.Ticket) dto.TicketResponse {
	return dto.NewTicketResponse(t, h.service.RenderContent(t.Content))
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthenticated("login required", nil)
	}
	return principal, nil
}

func actionInput(c *fiber.Ctx) (*auth.Principal, int64, error) {
	principal, err := requirePrincipal(c)
	if err != nil {
		return nil, 0, err
	}
	var req dto.TicketActionRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, 0, apperrors.NewValidationError("invalid payload", map[string]any{"id": "must be an integer"})
	}
	if err := dto.Validate(&req); err != nil {
		return nil, 0, err
	}
	return principal, int64(req.ID), nil
}
