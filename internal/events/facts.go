package events

import (
	"context"

	"github.com/spec-kit/support-console/internal/domain"
)

// Fact is a single immutable description of something that happened. Facts
// are produced by the event channel subscriber and by command results, and
// are consumed exclusively by the reconciler.
type Fact interface {
	fact()
}

// Handler consumes a decoded fact.
type Handler func(ctx context.Context, fact Fact)

// TicketCreated announces a newly opened ticket. Carries the list summary
// only, never messages.
type TicketCreated struct {
	Ticket domain.Ticket
}

// MessageAppended announces a message added to a ticket's thread. Carries
// enough information to merge incrementally without a refetch.
type MessageAppended struct {
	TicketID string
	Message  domain.Message
}

// CountChanged signals that list-level counters moved without saying how.
// The session answers with a conservative full list resync.
type CountChanged struct{}

func (TicketCreated) fact()   {}
func (MessageAppended) fact() {}
func (CountChanged) fact()    {}
