package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-console/internal/domain"
	"github.com/spec-kit/support-console/internal/events"
	"github.com/spec-kit/support-console/internal/observability"
	"github.com/spec-kit/support-console/internal/view"
	apperrors "github.com/spec-kit/support-console/pkg/util"
)

type fakeGateway struct {
	mu        sync.Mutex
	tickets   []domain.Ticket
	details   map[string]domain.Ticket
	listCalls int
	listErr   error

	sendResult  domain.Message
	sendErr     error
	sendEntered chan struct{}
	sendRelease chan struct{}
	sentBodies  []string

	statusErr error
	deleteErr error
	deleted   []string
}

func (g *fakeGateway) List(ctx context.Context) ([]domain.Ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]domain.Ticket(nil), g.tickets...), nil
}

func (g *fakeGateway) Detail(ctx context.Context, id string) (domain.Ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	detail, ok := g.details[id]
	if !ok {
		return domain.Ticket{}, errors.New("no such ticket")
	}
	return detail, nil
}

func (g *fakeGateway) SendMessage(ctx context.Context, id, body string) (domain.Message, error) {
	if g.sendEntered != nil {
		g.sendEntered <- struct{}{}
	}
	if g.sendRelease != nil {
		<-g.sendRelease
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return domain.Message{}, g.sendErr
	}
	g.sentBodies = append(g.sentBodies, body)
	return g.sendResult, nil
}

func (g *fakeGateway) ChangeStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	return g.statusErr
}

func (g *fakeGateway) Delete(ctx context.Context, id string) error {
	if g.deleteErr != nil {
		return g.deleteErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *fakeGateway) listCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listCalls
}

type fakeSource struct {
	started bool
	stopped bool
}

func (f *fakeSource) Start(ctx context.Context) error {
	f.started = true
	return nil
}

func (f *fakeSource) Stop() {
	f.stopped = true
}

func newTestSession(t *testing.T, gateway *fakeGateway) (*Session, *fakeSource) {
	t.Helper()
	source := &fakeSource{}
	session := NewSession("sess-1", gateway, func(events.Handler) EventSource {
		return source
	}, zap.NewNop(), observability.NewMetrics())
	require.NoError(t, session.Start(context.Background()))
	return session, source
}

func TestSessionStartSyncsListAndSubscribes(t *testing.T) {
	gateway := &fakeGateway{tickets: []domain.Ticket{summaryT1(domain.TicketStatusOpen)}}
	session, source := newTestSession(t, gateway)

	assert.True(t, source.started)
	tickets := session.Tickets(view.Filter{Status: view.StatusFilterAll})
	require.Len(t, tickets, 1)
	assert.Equal(t, "t1", tickets[0].ID)

	session.Stop()
	assert.True(t, source.stopped)
}

func TestSessionStartFailsWhenInitialSyncFails(t *testing.T) {
	gateway := &fakeGateway{listErr: errors.New("boom")}
	source := &fakeSource{}
	session := NewSession("sess-1", gateway, func(events.Handler) EventSource {
		return source
	}, zap.NewNop(), observability.NewMetrics())

	require.Error(t, session.Start(context.Background()))
	assert.False(t, source.started)
}

func TestListLevelFactsTriggerResync(t *testing.T) {
	gateway := &fakeGateway{tickets: []domain.Ticket{summaryT1(domain.TicketStatusOpen)}}
	session, _ := newTestSession(t, gateway)
	calls := gateway.listCallCount()

	newTicket := summaryT1(domain.TicketStatusOpen)
	newTicket.ID = "t2"
	gateway.mu.Lock()
	gateway.tickets = append(gateway.tickets, newTicket)
	gateway.mu.Unlock()

	session.HandleFact(context.Background(), events.TicketCreated{Ticket: newTicket})
	assert.Equal(t, calls+1, gateway.listCallCount())
	assert.Len(t, session.Tickets(view.Filter{Status: view.StatusFilterAll}), 2)

	session.HandleFact(context.Background(), events.CountChanged{})
	assert.Equal(t, calls+2, gateway.listCallCount())
}

func TestResyncFailureKeepsState(t *testing.T) {
	gateway := &fakeGateway{tickets: []domain.Ticket{summaryT1(domain.TicketStatusOpen)}}
	session, _ := newTestSession(t, gateway)

	gateway.mu.Lock()
	gateway.listErr = errors.New("upstream down")
	gateway.mu.Unlock()

	session.HandleFact(context.Background(), events.CountChanged{})
	assert.Len(t, session.Tickets(view.Filter{Status: view.StatusFilterAll}), 1)
}

func TestMessageFactMergesWithoutRefetch(t *testing.T) {
	gateway := &fakeGateway{tickets: []domain.Ticket{summaryT1(domain.TicketStatusOpen)}}
	session, _ := newTestSession(t, gateway)
	calls := gateway.listCallCount()

	session.HandleFact(context.Background(), events.MessageAppended{
		TicketID: "t1",
		Message:  message("m1", false, baseTime.Add(time.Minute)),
	})

	assert.Equal(t, calls, gateway.listCallCount())
	tickets := session.Tickets(view.Filter{Status: view.StatusFilterAll})
	require.Len(t, tickets, 1)
	assert.Equal(t, 1, tickets[0].MessageCount)
}

func TestSelectLoadsConversation(t *testing.T) {
	detail := summaryT1(domain.TicketStatusOpen)
	detail.Messages = []domain.Message{message("m1", false, baseTime)}
	gateway := &fakeGateway{
		tickets: []domain.Ticket{summaryT1(domain.TicketStatusOpen)},
		details: map[string]domain.Ticket{"t1": detail},
	}
	session, _ := newTestSession(t, gateway)

	require.NoError(t, session.Select(context.Background(), "t1"))
	conversation := session.Conversation()
	require.NotNil(t, conversation)
	assert.Equal(t, "t1", conversation.ID)
	assert.Len(t, conversation.Messages, 1)

	session.Deselect()
	assert.Nil(t, session.Conversation())
}

func TestSelectUnknownTicket(t *testing.T) {
	gateway := &fakeGateway{}
	session, _ := newTestSession(t, gateway)

	err := session.Select(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestSendMessageAppliesServerMessage(t *testing.T) {
	gateway := &fakeGateway{
		tickets: []domain.Ticket{summaryT1(domain.TicketStatusOpen)},
		sendResult: domain.Message{
			ID:          "srv-1",
			TicketID:    "t1",
			Body:        "on it",
			IsFromStaff: true,
			CreatedAt:   baseTime.Add(time.Minute),
		},
	}
	session, _ := newTestSession(t, gateway)

	msg, err := session.SendMessage(context.Background(), "t1", "  on it  ")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)
	assert.Equal(t, []string{"on it"}, gateway.sentBodies)

	tickets := session.Tickets(view.Filter{Status: view.StatusFilterAll})
	require.Len(t, tickets, 1)
	assert.Equal(t, 1, tickets[0].MessageCount)
}

func TestSendMessageFailureAppliesNothing(t *testing.T) {
	gateway := &fakeGateway{
		tickets: []domain.Ticket{summaryT1(domain.TicketStatusOpen)},
		sendErr: errors.New("rejected"),
	}
	session, _ := newTestSession(t, gateway)

	_, err := session.SendMessage(context.Background(), "t1", "hello")
	require.Error(t, err)

	tickets := session.Tickets(view.Filter{Status: view.StatusFilterAll})
	require.Len(t, tickets, 1)
	assert.Equal(t, 0, tickets[0].MessageCount)
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	gateway := &fakeGateway{tickets: []domain.Ticket{summaryT1(domain.TicketStatusOpen)}}
	session, _ := newTestSession(t, gateway)

	_, err := session.SendMessage(context.Background(), "t1", "   ")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestConcurrentSendRejected(t *testing.T) {
	gateway := &fakeGateway{
		tickets:     []domain.Ticket{summaryT1(domain.TicketStatusOpen)},
		sendResult:  domain.Message{ID: "srv-1", TicketID: "t1", CreatedAt: baseTime},
		sendEntered: make(chan struct{}, 1),
		sendRelease: make(chan struct{}),
	}
	session, _ := newTestSession(t, gateway)

	firstDone := make(chan error, 1)
	go func() {
		_, err := session.SendMessage(context.Background(), "t1", "first")
		firstDone <- err
	}()
	<-gateway.sendEntered

	_, err := session.SendMessage(context.Background(), "t1", "second")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)

	close(gateway.sendRelease)
	require.NoError(t, <-firstDone)
}

func TestChangeStatusIsOptimisticWithoutRollback(t *testing.T) {
	gateway := &fakeGateway{
		tickets:   []domain.Ticket{summaryT1(domain.TicketStatusOpen)},
		statusErr: errors.New("rejected"),
	}
	session, _ := newTestSession(t, gateway)

	err := session.ChangeStatus(context.Background(), "t1", domain.TicketStatusResolved)
	require.Error(t, err)

	// The optimistic apply stands even though the PATCH failed.
	tickets := session.Tickets(view.Filter{Status: view.StatusFilterAll})
	require.Len(t, tickets, 1)
	assert.Equal(t, domain.TicketStatusResolved, tickets[0].Status)
}

func TestDeleteRemovesTicketOnSuccessOnly(t *testing.T) {
	gateway := &fakeGateway{
		tickets:   []domain.Ticket{summaryT1(domain.TicketStatusOpen)},
		deleteErr: errors.New("rejected"),
	}
	session, _ := newTestSession(t, gateway)

	require.Error(t, session.Delete(context.Background(), "t1"))
	assert.Len(t, session.Tickets(view.Filter{Status: view.StatusFilterAll}), 1)

	gateway.deleteErr = nil
	require.NoError(t, session.Delete(context.Background(), "t1"))
	assert.Empty(t, session.Tickets(view.Filter{Status: view.StatusFilterAll}))
	assert.Equal(t, []string{"t1"}, gateway.deleted)
}
