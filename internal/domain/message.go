package domain

import "time"

// Message is one entry in a ticket's conversation thread. Messages are
// append-only and immutable once created.
type Message struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticketId"`
	Body        string    `json:"body"`
	IsFromStaff bool      `json:"isFromStaff"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MessageBefore is the thread ordering relation: CreatedAt first, id as the
// tiebreak when timestamps collide. Client clocks are not trusted beyond this.
func MessageBefore(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
