package domain

import "time"

// TicketStatus enumerates lifecycle states for support tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// IsTerminal reports whether the status is resolved or closed. A non-staff
// message on a terminal ticket reopens it to IN_PROGRESS.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// TicketCategory enumerates request categories.
type TicketCategory string

const (
	TicketCategoryTechnical      TicketCategory = "TECHNICAL"
	TicketCategoryBilling        TicketCategory = "BILLING"
	TicketCategoryFeatureRequest TicketCategory = "FEATURE_REQUEST"
	TicketCategoryGeneral        TicketCategory = "GENERAL"
)

// TenantRef is the display-only tenant reference attached to a ticket.
// Immutable after ticket creation.
type TenantRef struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	LogoURL string `json:"logo"`
}

// Ticket is the aggregate for tenant support requests. Messages is populated
// only while the ticket is the active conversation; list summaries carry a
// nil slice and rely on MessageCount instead.
type Ticket struct {
	ID           string         `json:"id"`
	Subject      string         `json:"subject"`
	Category     TicketCategory `json:"category"`
	Priority     TicketPriority `json:"priority"`
	Status       TicketStatus   `json:"status"`
	Tenant       TenantRef      `json:"tenant"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	MessageCount int            `json:"messageCount"`
	Messages     []Message      `json:"messages,omitempty"`
}

// Summary returns a copy of the ticket without its message log, suitable for
// the list store.
func (t Ticket) Summary() Ticket {
	t.Messages = nil
	return t
}

var knownStatuses = map[TicketStatus]struct{}{
	TicketStatusOpen:       {},
	TicketStatusInProgress: {},
	TicketStatusResolved:   {},
	TicketStatusClosed:     {},
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (TicketStatus, bool) {
	status := TicketStatus(raw)
	_, ok := knownStatuses[status]
	return status, ok
}
