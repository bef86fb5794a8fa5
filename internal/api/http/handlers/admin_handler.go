package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/mentor-queue/internal/api/dto"
	"github.com/spec-kit/mentor-queue/internal/service"
	apperrors "github.com/spec-kit/mentor-queue/pkg/util/errorutil"
)

// AdminHandler serves organizer reports.
type AdminHandler struct {
	service *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{service: adminService}
}

// TicketData GET /admin/ticketdata.
func (h *AdminHandler) TicketData(c *fiber.Ctx) error {
	stats, err := h.service.TicketStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketStatsResponse(stats))
}

// UserData GET /admin/userdata.
func (h *AdminHandler) UserData(c *fiber.Ctx) error {
	users, err := h.service.UserData(c.UserContext(), c.QueryBool("refresh", false))
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, dto.NewAdminUserResponse(u))
	}
	return c.JSON(items)
}

// AllTickets GET /admin/alltickets.
func (h *AdminHandler) AllTickets(c *fiber.Ctx) error {
	tickets, err := h.service.AllTickets(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.AdminTicketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.NewAdminTicketResponse(t))
	}
	return c.JSON(items)
}

// History GET /admin/tickets/:id/history.
func (h *AdminHandler) History(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	entries, err := h.service.History(c.UserContext(), int64(id))
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.TicketHistoryResponse{
			ID:          e.ID,
			ChangedByID: e.ChangedByID,
			ChangedRole: e.ChangedRole,
			ChangeType:  e.ChangeType,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			CreatedAt:   e.CreatedAt,
		})
	}
	return c.JSON(items)
}

// Metrics GET /admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.service.Metrics())
}
