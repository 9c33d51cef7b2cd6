package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-console/internal/domain"
	"github.com/spec-kit/support-console/internal/observability"
	"github.com/spec-kit/support-console/internal/store"
)

// Reconciler is the sole mutator of the ticket store and the conversation
// cache. Facts from the event channel and from command results flow through
// the same apply methods, so optimistic and server-confirmed updates cannot
// diverge. One mutex serializes every apply, giving the session a single
// logical timeline; readers take the read lock and receive copies.
type Reconciler struct {
	mu      sync.RWMutex
	tickets *store.TicketStore
	convo   *store.ConversationCache

	// lastApplied guards non-active tickets against redelivered message
	// facts; their threads are not loaded, so dedupe by id is impossible.
	lastApplied map[string]string

	// selection and epoch tag in-flight detail fetches so a stale response
	// can never overwrite a newer selection.
	selection string
	epoch     uint64

	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewReconciler constructs a reconciler with empty stores.
func NewReconciler(logger *zap.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		tickets:     store.NewTicketStore(),
		convo:       store.NewConversationCache(),
		lastApplied: make(map[string]string),
		logger:      logger,
		metrics:     metrics,
	}
}

// ApplyMessageAppended merges one message fact. For the active conversation
// the message is appended idempotently (dedupe by id) and the summary's
// count and timestamp are derived from the merged array, never from a
// separately reported count. A non-staff message on a resolved or closed
// ticket reopens it to IN_PROGRESS.
func (r *Reconciler) ApplyMessageAppended(ticketID string, msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if active := r.convo.Ticket(); active != nil && active.ID == ticketID {
		r.convo.Append(msg)
		active.MessageCount = len(active.Messages)
		if last := len(active.Messages) - 1; last >= 0 {
			if ts := active.Messages[last].CreatedAt; ts.After(active.UpdatedAt) {
				active.UpdatedAt = ts
			}
		}
		applyReopenRule(active, msg)
		r.lastApplied[ticketID] = msg.ID
		r.tickets.Upsert(*active)
		r.metrics.RecordFact("message-appended")
		return
	}

	ticket, ok := r.tickets.Get(ticketID)
	if !ok {
		// Message for a ticket we have never seen; the next list resync
		// will surface it.
		r.logger.Warn("message fact for unknown ticket", zap.String("ticket_id", ticketID))
		return
	}
	if r.lastApplied[ticketID] == msg.ID {
		return
	}
	r.lastApplied[ticketID] = msg.ID
	ticket.MessageCount++
	if msg.CreatedAt.After(ticket.UpdatedAt) {
		ticket.UpdatedAt = msg.CreatedAt
	}
	applyReopenRule(&ticket, msg)
	r.tickets.Upsert(ticket)
	r.metrics.RecordFact("message-appended")
}

// ApplyTicketCreated upserts a freshly announced ticket summary. Redelivery
// is harmless; the summary is simply written again.
func (r *Reconciler) ApplyTicketCreated(ticket domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tickets.Get(ticket.ID); exists {
		return
	}
	r.tickets.Upsert(ticket)
	r.metrics.RecordFact("ticket-created")
}

// ApplyList replaces the summary set wholesale after a list fetch. The
// active conversation's message log survives: its list-level fields are
// refreshed from the fetched summary while count and timestamp stay derived
// from the loaded array, which is authoritative when both are known. An
// active ticket missing from the fetched list was deleted remotely, so the
// selection is cleared in the same step.
func (r *Reconciler) ApplyList(tickets []domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tickets.ReplaceAll(tickets)

	active := r.convo.Ticket()
	if active == nil {
		r.metrics.RecordFact("list-replaced")
		return
	}
	summary, ok := r.tickets.Get(active.ID)
	if !ok {
		r.convo.Clear()
		r.clearSelectionLocked()
		r.metrics.RecordFact("list-replaced")
		return
	}
	active.Subject = summary.Subject
	active.Category = summary.Category
	active.Priority = summary.Priority
	active.Status = summary.Status
	active.Tenant = summary.Tenant
	active.CreatedAt = summary.CreatedAt
	active.UpdatedAt = summary.UpdatedAt
	active.MessageCount = len(active.Messages)
	if last := len(active.Messages) - 1; last >= 0 {
		if ts := active.Messages[last].CreatedAt; ts.After(active.UpdatedAt) {
			active.UpdatedAt = ts
		}
	}
	r.tickets.Upsert(*active)
	r.metrics.RecordFact("list-replaced")
}

// Select marks a ticket as the active selection and returns the epoch that
// tags its detail fetch. The previous conversation is dropped immediately so
// the view never shows one ticket's thread under another's selection.
func (r *Reconciler) Select(ticketID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selection = ticketID
	r.epoch++
	r.convo.Clear()
	return r.epoch
}

// ClearSelection drops the active conversation and invalidates any in-flight
// detail fetch.
func (r *Reconciler) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convo.Clear()
	r.clearSelectionLocked()
}

func (r *Reconciler) clearSelectionLocked() {
	r.selection = ""
	r.epoch++
}

// ApplyDetail installs a fetched detail as the active conversation, unless
// the selection moved on while the fetch was in flight, in which case the
// stale response is discarded silently. The tenant reference is merged in
// from the stored summary because the detail endpoint does not return it.
// Reports whether the detail was applied.
func (r *Reconciler) ApplyDetail(detail domain.Ticket, epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selection != detail.ID || r.epoch != epoch {
		r.logger.Debug("discarding stale detail response",
			zap.String("ticket_id", detail.ID),
			zap.String("selection", r.selection))
		return false
	}

	if summary, ok := r.tickets.Get(detail.ID); ok {
		detail.Tenant = summary.Tenant
	}
	r.convo.Replace(detail)

	active := r.convo.Ticket()
	active.MessageCount = len(active.Messages)
	if last := len(active.Messages) - 1; last >= 0 {
		if ts := active.Messages[last].CreatedAt; ts.After(active.UpdatedAt) {
			active.UpdatedAt = ts
		}
	}
	r.tickets.Upsert(*active)
	r.metrics.RecordFact("detail-applied")
	return true
}

// ApplyStatus records a status change in the store and in the active
// conversation mirror when it is the same ticket.
func (r *Reconciler) ApplyStatus(ticketID string, status domain.TicketStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if ticket, ok := r.tickets.Get(ticketID); ok {
		ticket.Status = status
		if now.After(ticket.UpdatedAt) {
			ticket.UpdatedAt = now
		}
		r.tickets.Upsert(ticket)
	}
	if active := r.convo.Ticket(); active != nil && active.ID == ticketID {
		active.Status = status
		if now.After(active.UpdatedAt) {
			active.UpdatedAt = now
		}
	}
	r.metrics.RecordFact("status-changed")
}

// ApplyDelete removes a ticket from the store and, when it is the active
// conversation, clears the cache and selection in the same locked step, so
// there is no frame where the ticket exists in one view but not the other.
func (r *Reconciler) ApplyDelete(ticketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tickets.Remove(ticketID)
	delete(r.lastApplied, ticketID)
	if r.convo.ActiveID() == ticketID {
		r.convo.Clear()
	}
	if r.selection == ticketID {
		r.clearSelectionLocked()
	}
	r.metrics.RecordFact("ticket-deleted")
}

// SnapshotTickets returns the store version and summary copies for the view
// projection.
func (r *Reconciler) SnapshotTickets() (uint64, []domain.Ticket) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tickets.Version(), r.tickets.Snapshot()
}

// TicketSummary returns one stored summary.
func (r *Reconciler) TicketSummary(ticketID string) (domain.Ticket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tickets.Get(ticketID)
}

// Conversation returns a copy of the active conversation, or nil when none
// is loaded.
func (r *Reconciler) Conversation() *domain.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := r.convo.Ticket()
	if active == nil {
		return nil
	}
	copied := *active
	copied.Messages = append([]domain.Message(nil), active.Messages...)
	return &copied
}

// ActiveTicketID returns the loaded conversation's ticket id, or empty.
func (r *Reconciler) ActiveTicketID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.convo.ActiveID()
}

func applyReopenRule(ticket *domain.Ticket, msg domain.Message) {
	if msg.IsFromStaff {
		return
	}
	if ticket.Status.IsTerminal() {
		ticket.Status = domain.TicketStatusInProgress
	}
}
