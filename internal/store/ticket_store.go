// Package store holds the two in-memory state containers for an admin
// session: the ticket list store and the active conversation cache. Both are
// plain containers owned exclusively by the reconciler, which serializes all
// access; they perform no locking of their own.
package store

import "github.com/spec-kit/support-console/internal/domain"

// TicketStore keeps every ticket summary visible to the session, keyed by id.
// Upsert, Remove and ReplaceAll are its only mutators. The version counter
// increases on every mutation and keys the view projection's memoization.
type TicketStore struct {
	tickets map[string]domain.Ticket
	version uint64
}

// NewTicketStore creates an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]domain.Ticket)}
}

// Upsert inserts or replaces a ticket summary. The message log never lives
// here; it is stripped on the way in.
func (s *TicketStore) Upsert(t domain.Ticket) {
	s.tickets[t.ID] = t.Summary()
	s.version++
}

// Remove deletes a ticket. Reports whether it was present.
func (s *TicketStore) Remove(id string) bool {
	if _, ok := s.tickets[id]; !ok {
		return false
	}
	delete(s.tickets, id)
	s.version++
	return true
}

// ReplaceAll swaps the full summary set, used by list resyncs.
func (s *TicketStore) ReplaceAll(tickets []domain.Ticket) {
	next := make(map[string]domain.Ticket, len(tickets))
	for _, t := range tickets {
		next[t.ID] = t.Summary()
	}
	s.tickets = next
	s.version++
}

// Get returns a copy of the ticket with the given id.
func (s *TicketStore) Get(id string) (domain.Ticket, bool) {
	t, ok := s.tickets[id]
	return t, ok
}

// Snapshot returns copies of all summaries in unspecified order.
func (s *TicketStore) Snapshot() []domain.Ticket {
	out := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	return out
}

// Version returns the mutation counter.
func (s *TicketStore) Version() uint64 {
	return s.version
}

// Len returns the number of stored tickets.
func (s *TicketStore) Len() int {
	return len(s.tickets)
}
