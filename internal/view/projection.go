// Package view derives the displayed ticket list from a store snapshot. It
// is a pure read-side projection: it never mutates, dedupes or fetches.
package view

import (
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/support-console/internal/domain"
)

// StatusFilter narrows the list to one lifecycle state, or ALL.
type StatusFilter string

const (
	StatusFilterAll        StatusFilter = "ALL"
	StatusFilterOpen       StatusFilter = StatusFilter(domain.TicketStatusOpen)
	StatusFilterInProgress StatusFilter = StatusFilter(domain.TicketStatusInProgress)
	StatusFilterResolved   StatusFilter = StatusFilter(domain.TicketStatusResolved)
	StatusFilterClosed     StatusFilter = StatusFilter(domain.TicketStatusClosed)
)

// ParseStatusFilter validates a raw filter value. Empty means ALL.
func ParseStatusFilter(raw string) (StatusFilter, bool) {
	if raw == "" || raw == string(StatusFilterAll) {
		return StatusFilterAll, true
	}
	status, ok := domain.ParseStatus(raw)
	return StatusFilter(status), ok
}

// Filter describes the list view: a free-text query over subject and tenant
// name, and a status filter.
type Filter struct {
	Query  string
	Status StatusFilter
}

// Apply filters and orders a snapshot: most recently updated first, id as a
// deterministic tiebreak regardless of store iteration order.
func Apply(tickets []domain.Ticket, f Filter) []domain.Ticket {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if !matches(t, f.Status, query) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matches(t domain.Ticket, status StatusFilter, query string) bool {
	if status != StatusFilterAll && status != "" && t.Status != domain.TicketStatus(status) {
		return false
	}
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Subject), query) ||
		strings.Contains(strings.ToLower(t.Tenant.Name), query)
}

// Projector memoizes the last projection on (store version, filter), so the
// list is recomputed only when the store mutated or the filter changed.
type Projector struct {
	mu      sync.Mutex
	version uint64
	filter  Filter
	cached  []domain.Ticket
	valid   bool
}

// NewProjector creates an empty projector.
func NewProjector() *Projector {
	return &Projector{}
}

// Project returns the ordered, filtered list for the snapshot. The returned
// slice is shared across calls and must be treated as read-only.
func (p *Projector) Project(version uint64, tickets []domain.Ticket, f Filter) []domain.Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.valid && p.version == version && p.filter == f {
		return p.cached
	}
	p.cached = Apply(tickets, f)
	p.version = version
	p.filter = f
	p.valid = true
	return p.cached
}
