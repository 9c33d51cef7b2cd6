package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-console/internal/api/dto"
	"github.com/spec-kit/support-console/internal/domain"
	"github.com/spec-kit/support-console/internal/service"
	"github.com/spec-kit/support-console/internal/view"
	apperrors "github.com/spec-kit/support-console/pkg/util"
)

// SessionsHandler manages admin session endpoints.
type SessionsHandler struct {
	manager *service.Manager
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(manager *service.Manager) *SessionsHandler {
	return &SessionsHandler{manager: manager}
}

// Create POST /sessions.
func (h *SessionsHandler) Create(c *fiber.Ctx) error {
	session, err := h.manager.Open(c.Context())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.SessionResponse{
		ID:        session.ID(),
		CreatedAt: session.CreatedAt(),
	}})
}

// Close DELETE /sessions/:id.
func (h *SessionsHandler) Close(c *fiber.Ctx) error {
	if !h.manager.Close(c.Params("id")) {
		return apperrors.NewNotFound("session", nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListTickets GET /sessions/:id/tickets.
func (h *SessionsHandler) ListTickets(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	status, ok := view.ParseStatusFilter(c.Query("status"))
	if !ok {
		return apperrors.NewValidationError("invalid status filter", map[string]any{"status": c.Query("status")})
	}
	tickets := session.Tickets(view.Filter{Query: c.Query("q"), Status: status})
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Select POST /sessions/:id/tickets/:ticketID/select.
func (h *SessionsHandler) Select(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	if err := session.Select(c.Context(), c.Params("ticketID")); err != nil {
		return err
	}
	return conversationResponse(c, session)
}

// Conversation GET /sessions/:id/conversation.
func (h *SessionsHandler) Conversation(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	return conversationResponse(c, session)
}

// SendMessage POST /sessions/:id/tickets/:ticketID/messages.
func (h *SessionsHandler) SendMessage(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := session.SendMessage(c.Context(), c.Params("ticketID"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// ChangeStatus PATCH /sessions/:id/tickets/:ticketID/status.
func (h *SessionsHandler) ChangeStatus(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": req.Status})
	}
	if err := session.ChangeStatus(c.Context(), c.Params("ticketID"), status); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": status}})
}

// DeleteTicket DELETE /sessions/:id/tickets/:ticketID.
func (h *SessionsHandler) DeleteTicket(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	if err := session.Delete(c.Context(), c.Params("ticketID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Refresh POST /sessions/:id/refresh.
func (h *SessionsHandler) Refresh(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	if err := session.Refresh(c.Context()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"refreshed": true}})
}

func (h *SessionsHandler) session(c *fiber.Ctx) (*service.Session, error) {
	session, ok := h.manager.Get(c.Params("id"))
	if !ok {
		return nil, apperrors.NewNotFound("session", nil)
	}
	return session, nil
}

func conversationResponse(c *fiber.Ctx, session *service.Session) error {
	conversation := session.Conversation()
	if conversation == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	resp := dto.ConversationResponse{
		TicketSummary: ticketSummary(conversation),
		Messages:      make([]dto.MessageResponse, 0, len(conversation.Messages)),
	}
	for _, msg := range conversation.Messages {
		resp.Messages = append(resp.Messages, messageResponse(msg))
	}
	return c.JSON(fiber.Map{"data": resp})
}

func ticketSummary(t *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:       t.ID,
		Subject:  t.Subject,
		Category: t.Category,
		Priority: t.Priority,
		Status:   t.Status,
		Tenant: dto.TenantResponse{
			Name: t.Tenant.Name,
			Slug: t.Tenant.Slug,
			Logo: t.Tenant.LogoURL,
		},
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		MessageCount: t.MessageCount,
	}
}

func messageResponse(m domain.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:          m.ID,
		TicketID:    m.TicketID,
		Body:        m.Body,
		IsFromStaff: m.IsFromStaff,
		CreatedAt:   m.CreatedAt,
	}
}
