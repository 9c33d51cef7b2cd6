package dto

import (
	"time"

	"github.com/spec-kit/support-console/internal/domain"
)

// SessionResponse describes an opened admin session.
type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest payload.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// TenantResponse is the display-only tenant reference.
type TenantResponse struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Logo string `json:"logo"`
}

// TicketSummary is one row of the list projection.
type TicketSummary struct {
	ID           string                `json:"id"`
	Subject      string                `json:"subject"`
	Category     domain.TicketCategory `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	Tenant       TenantResponse        `json:"tenant"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	MessageCount int                   `json:"message_count"`
}

// MessageResponse represents one thread entry.
type MessageResponse struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	Body        string    `json:"body"`
	IsFromStaff bool      `json:"is_from_staff"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversationResponse provides the active ticket with its full thread.
type ConversationResponse struct {
	TicketSummary
	Messages []MessageResponse `json:"messages"`
}
