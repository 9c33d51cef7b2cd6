package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-console/internal/domain"
)

var projBase = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func ticket(id, subject, tenant string, status domain.TicketStatus, updated time.Time) domain.Ticket {
	return domain.Ticket{
		ID:        id,
		Subject:   subject,
		Status:    status,
		Tenant:    domain.TenantRef{Name: tenant},
		UpdatedAt: updated,
	}
}

func TestStatusFilterReturnsExactMatches(t *testing.T) {
	tickets := []domain.Ticket{
		ticket("t1", "a", "x", domain.TicketStatusOpen, projBase),
		ticket("t2", "b", "y", domain.TicketStatusOpen, projBase.Add(time.Minute)),
		ticket("t3", "c", "z", domain.TicketStatusResolved, projBase),
	}

	out := Apply(tickets, Filter{Status: StatusFilterOpen})
	require.Len(t, out, 2)
	for _, got := range out {
		assert.Equal(t, domain.TicketStatusOpen, got.Status)
	}

	// Same result regardless of input order.
	reversed := []domain.Ticket{tickets[2], tickets[1], tickets[0]}
	assert.Equal(t, out, Apply(reversed, Filter{Status: StatusFilterOpen}))
}

func TestQueryMatchesSubjectAndTenantName(t *testing.T) {
	tickets := []domain.Ticket{
		ticket("t1", "Printer jam", "Trattoria Roma", domain.TicketStatusOpen, projBase),
		ticket("t2", "Billing mismatch", "Sushi Bar", domain.TicketStatusOpen, projBase),
		ticket("t3", "roma tomatoes missing", "Burger Hut", domain.TicketStatusOpen, projBase),
	}

	out := Apply(tickets, Filter{Query: "ROMA", Status: StatusFilterAll})
	require.Len(t, out, 2)
	assert.ElementsMatch(t, []string{"t1", "t3"}, []string{out[0].ID, out[1].ID})
}

func TestOrderIsMostRecentFirstWithIDTiebreak(t *testing.T) {
	tickets := []domain.Ticket{
		ticket("t2", "a", "x", domain.TicketStatusOpen, projBase),
		ticket("t3", "b", "y", domain.TicketStatusOpen, projBase.Add(time.Hour)),
		ticket("t1", "c", "z", domain.TicketStatusOpen, projBase),
	}

	out := Apply(tickets, Filter{Status: StatusFilterAll})
	ids := []string{out[0].ID, out[1].ID, out[2].ID}
	assert.Equal(t, []string{"t3", "t1", "t2"}, ids)
}

func TestParseStatusFilter(t *testing.T) {
	got, ok := ParseStatusFilter("")
	require.True(t, ok)
	assert.Equal(t, StatusFilterAll, got)

	got, ok = ParseStatusFilter("IN_PROGRESS")
	require.True(t, ok)
	assert.Equal(t, StatusFilterInProgress, got)

	_, ok = ParseStatusFilter("BOGUS")
	assert.False(t, ok)
}

func TestProjectorMemoizesOnVersionAndFilter(t *testing.T) {
	p := NewProjector()
	tickets := []domain.Ticket{ticket("t1", "a", "x", domain.TicketStatusOpen, projBase)}
	filter := Filter{Status: StatusFilterAll}

	first := p.Project(7, tickets, filter)
	require.Len(t, first, 1)

	// Same version and filter: the cached result is reused, the snapshot
	// argument is not even consulted.
	second := p.Project(7, nil, filter)
	assert.Equal(t, first, second)

	// A new version recomputes.
	third := p.Project(8, nil, filter)
	assert.Empty(t, third)
}
