// Package channel maintains the live event subscription for an admin
// session. The subscriber is session-scoped with an explicit start/stop
// lifecycle; it decodes provider payloads into typed facts and hands them to
// the handler, dropping anything malformed without ever crashing.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-console/internal/config"
	"github.com/spec-kit/support-console/internal/domain"
	"github.com/spec-kit/support-console/internal/events"
	"github.com/spec-kit/support-console/internal/observability"
)

const (
	eventNewTicket   = "new-ticket"
	eventUpdateCount = "update-count"
	eventNewMessage  = "new-message"
)

// Subscriber listens on the admin notification and ticket channels for the
// lifetime of one session.
type Subscriber struct {
	rdb           *redis.Client
	notifications string
	tickets       string
	handler       events.Handler
	logger        *zap.Logger
	metrics       *observability.Metrics

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewSubscriber wires a subscriber to the provider client and a fact handler.
func NewSubscriber(rdb *redis.Client, cfg config.RedisConfig, handler events.Handler, logger *zap.Logger, metrics *observability.Metrics) *Subscriber {
	return &Subscriber{
		rdb:           rdb,
		notifications: cfg.NotificationsChannel,
		tickets:       cfg.TicketsChannel,
		handler:       handler,
		logger:        logger,
		metrics:       metrics,
	}
}

// Start subscribes to both channels and begins delivering facts. Returns an
// error if the subscription cannot be established or is already running.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubsub != nil {
		return errors.New("subscriber already started")
	}

	pubsub := s.rdb.Subscribe(ctx, s.notifications, s.tickets)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	s.pubsub = pubsub
	s.done = make(chan struct{})
	go s.receive(ctx, pubsub.Channel(), s.done)

	s.logger.Info("event channel subscribed",
		zap.String("notifications", s.notifications),
		zap.String("tickets", s.tickets))
	return nil
}

// Stop unsubscribes from both channels and waits for the receive loop to
// drain, so no subscription leaks across sessions.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	pubsub, done := s.pubsub, s.done
	s.pubsub, s.done = nil, nil
	s.mu.Unlock()

	if pubsub == nil {
		return
	}
	_ = pubsub.Close()
	<-done
	s.logger.Info("event channel unsubscribed")
}

func (s *Subscriber) receive(ctx context.Context, messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		fact, err := s.decode(msg.Channel, []byte(msg.Payload))
		if err != nil {
			s.logger.Warn("dropping event",
				zap.String("channel", msg.Channel),
				zap.Error(err))
			s.metrics.RecordDroppedEvent(msg.Channel)
			continue
		}
		s.handler(ctx, fact)
	}
}

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type newMessagePayload struct {
	TicketID string         `json:"ticketId"`
	Message  domain.Message `json:"message"`
}

func (s *Subscriber) decode(channelName string, raw []byte) (events.Fact, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch channelName {
	case s.notifications:
		switch env.Event {
		case eventNewTicket:
			var ticket domain.Ticket
			if err := json.Unmarshal(env.Payload, &ticket); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
			}
			if ticket.ID == "" {
				return nil, fmt.Errorf("%s payload missing ticket id", env.Event)
			}
			return events.TicketCreated{Ticket: ticket.Summary()}, nil
		case eventUpdateCount:
			return events.CountChanged{}, nil
		}
	case s.tickets:
		if env.Event == eventNewMessage {
			var payload newMessagePayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
			}
			if payload.TicketID == "" || payload.Message.ID == "" {
				return nil, fmt.Errorf("%s payload missing ids", env.Event)
			}
			return events.MessageAppended{TicketID: payload.TicketID, Message: payload.Message}, nil
		}
	}
	return nil, fmt.Errorf("unknown event %q on channel %q", env.Event, channelName)
}
