// Package service hosts the sync engine for admin sessions: the reconciler
// that owns the in-memory state, the session that binds it to the event
// channel and the command gateway, and the registry of live sessions.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-console/internal/domain"
	"github.com/spec-kit/support-console/internal/events"
	"github.com/spec-kit/support-console/internal/observability"
	"github.com/spec-kit/support-console/internal/view"
	apperrors "github.com/spec-kit/support-console/pkg/util"
)

// Gateway issues the five upstream commands. Implemented by ticketapi.Client;
// tests substitute a fake.
type Gateway interface {
	List(ctx context.Context) ([]domain.Ticket, error)
	Detail(ctx context.Context, id string) (domain.Ticket, error)
	SendMessage(ctx context.Context, id, body string) (domain.Message, error)
	ChangeStatus(ctx context.Context, id string, status domain.TicketStatus) error
	Delete(ctx context.Context, id string) error
}

// EventSource is a startable subscription delivering facts for the lifetime
// of one session. Implemented by channel.Subscriber.
type EventSource interface {
	Start(ctx context.Context) error
	Stop()
}

// SourceFactory builds the event source for a new session, bound to its fact
// handler.
type SourceFactory func(handler events.Handler) EventSource

// Session is one admin's synchronized view of the ticket system. All state
// lives in the reconciler; the session sequences commands, resyncs and
// channel facts through it.
type Session struct {
	id        string
	createdAt time.Time
	rec       *Reconciler
	gateway   Gateway
	source    EventSource
	projector *view.Projector

	// sendBusy keeps at most one send in flight so two sends can never race
	// on the same merge path.
	sendBusy atomic.Bool

	// cancel ends the session-lifetime context handed to the event source,
	// which outlives the request that opened the session.
	cancel context.CancelFunc

	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewSession assembles a session and its event source.
func NewSession(id string, gateway Gateway, sources SourceFactory, logger *zap.Logger, metrics *observability.Metrics) *Session {
	s := &Session{
		id:        id,
		createdAt: time.Now(),
		rec:       NewReconciler(logger, metrics),
		gateway:   gateway,
		projector: view.NewProjector(),
		logger:    logger.With(zap.String("session_id", id)),
		metrics:   metrics,
	}
	s.source = sources(s.HandleFact)
	return s
}

// ID returns the opaque session handle.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Start performs the initial list sync and subscribes to the event channels.
// The given context covers only the initial fetch; the subscription runs on a
// session-lifetime context ended by Stop.
func (s *Session) Start(ctx context.Context) error {
	tickets, err := s.gateway.List(ctx)
	if err != nil {
		return fmt.Errorf("initial list sync: %w", err)
	}
	s.rec.ApplyList(tickets)

	lifeCtx, cancel := context.WithCancel(context.Background())
	if err := s.source.Start(lifeCtx); err != nil {
		cancel()
		return fmt.Errorf("event subscription: %w", err)
	}
	s.cancel = cancel
	s.logger.Info("session started", zap.Int("tickets", len(tickets)))
	return nil
}

// Stop tears the event subscription down.
func (s *Session) Stop() {
	s.source.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("session stopped")
}

// HandleFact routes one channel fact. Message facts carry enough to merge
// incrementally; list-level facts trigger a conservative full resync because
// the provider guarantees neither ordering nor exactly-once delivery for
// them.
func (s *Session) HandleFact(ctx context.Context, fact events.Fact) {
	switch f := fact.(type) {
	case events.MessageAppended:
		s.rec.ApplyMessageAppended(f.TicketID, f.Message)
	case events.TicketCreated:
		s.rec.ApplyTicketCreated(f.Ticket)
		s.resync(ctx)
	case events.CountChanged:
		s.resync(ctx)
	default:
		s.logger.Warn("unhandled fact", zap.String("type", fmt.Sprintf("%T", fact)))
	}
}

func (s *Session) resync(ctx context.Context) {
	tickets, err := s.gateway.List(ctx)
	if err != nil {
		// Current state stays intact; the next event or a manual refresh
		// tries again.
		s.logger.Warn("list resync failed", zap.Error(err))
		s.metrics.RecordCommandFailure("resync")
		return
	}
	s.rec.ApplyList(tickets)
	s.metrics.RecordResync()
}

// Refresh refetches the list on explicit user action.
func (s *Session) Refresh(ctx context.Context) error {
	tickets, err := s.gateway.List(ctx)
	if err != nil {
		s.metrics.RecordCommandFailure("refresh")
		return err
	}
	s.rec.ApplyList(tickets)
	s.metrics.RecordResync()
	return nil
}

// Select makes a ticket the active conversation. The detail fetch is tagged
// with the selection epoch; when the response resolves after the selection
// moved on, it is discarded without error.
func (s *Session) Select(ctx context.Context, ticketID string) error {
	if _, ok := s.rec.TicketSummary(ticketID); !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}

	epoch := s.rec.Select(ticketID)
	detail, err := s.gateway.Detail(ctx, ticketID)
	if err != nil {
		s.metrics.RecordCommandFailure("detail")
		return err
	}
	s.rec.ApplyDetail(detail, epoch)
	return nil
}

// Deselect clears the active conversation.
func (s *Session) Deselect() {
	s.rec.ClearSelection()
}

// SendMessage posts a staff reply synchronously and merges the
// server-returned message as the single source of truth. No optimistic
// placeholder is applied, so a failed send changes nothing and the caller
// keeps the input for retry. A second send while one is in flight is
// rejected.
func (s *Session) SendMessage(ctx context.Context, ticketID, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, apperrors.NewValidationError("message body required", nil)
	}
	if !s.sendBusy.CompareAndSwap(false, true) {
		return domain.Message{}, apperrors.NewConflict("a send is already in flight", nil)
	}
	defer s.sendBusy.Store(false)

	msg, err := s.gateway.SendMessage(ctx, ticketID, body)
	if err != nil {
		s.metrics.RecordCommandFailure("send-message")
		return domain.Message{}, err
	}
	if msg.TicketID == "" {
		msg.TicketID = ticketID
	}
	s.rec.ApplyMessageAppended(msg.TicketID, msg)
	return msg, nil
}

// ChangeStatus applies the new status optimistically and then issues the
// PATCH. There is no rollback when the server rejects it; the failure is
// surfaced and a later resync converges the state.
func (s *Session) ChangeStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	if _, ok := s.rec.TicketSummary(ticketID); !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}

	s.rec.ApplyStatus(ticketID, status)
	if err := s.gateway.ChangeStatus(ctx, ticketID, status); err != nil {
		s.logger.Warn("status change rejected upstream",
			zap.String("ticket_id", ticketID),
			zap.String("status", string(status)),
			zap.Error(err))
		s.metrics.RecordCommandFailure("change-status")
		return err
	}
	return nil
}

// Delete removes a ticket. Only a confirmed delete mutates state; on failure
// the ticket remains in both views.
func (s *Session) Delete(ctx context.Context, ticketID string) error {
	if _, ok := s.rec.TicketSummary(ticketID); !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}

	if err := s.gateway.Delete(ctx, ticketID); err != nil {
		s.metrics.RecordCommandFailure("delete")
		return err
	}
	s.rec.ApplyDelete(ticketID)
	return nil
}

// Tickets returns the filtered, ordered list projection.
func (s *Session) Tickets(filter view.Filter) []domain.Ticket {
	version, snapshot := s.rec.SnapshotTickets()
	return s.projector.Project(version, snapshot, filter)
}

// Conversation returns a copy of the active conversation, or nil.
func (s *Session) Conversation() *domain.Ticket {
	return s.rec.Conversation()
}
