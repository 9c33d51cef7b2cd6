package store

import (
	"sort"

	"github.com/spec-kit/support-console/internal/domain"
)

// ConversationCache holds at most one hot ticket with its full message log,
// the ticket currently open for detailed viewing. An id index makes the
// dedupe check on append O(1) instead of a post-hoc distinct pass.
type ConversationCache struct {
	ticket *domain.Ticket
	index  map[string]struct{}
}

// NewConversationCache creates an empty cache.
func NewConversationCache() *ConversationCache {
	return &ConversationCache{}
}

// Replace installs a fetched detail wholesale, discarding whatever was
// cached. Messages are copied, ordered by (CreatedAt, ID) and deduped by id.
func (c *ConversationCache) Replace(t domain.Ticket) {
	index := make(map[string]struct{}, len(t.Messages))
	messages := make([]domain.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		if _, seen := index[m.ID]; seen {
			continue
		}
		index[m.ID] = struct{}{}
		messages = append(messages, m)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return domain.MessageBefore(messages[i], messages[j])
	})
	t.Messages = messages
	c.ticket = &t
	c.index = index
}

// Append inserts a message in thread order unless a message with the same id
// is already present or no conversation is loaded. Reports whether the
// message was added.
func (c *ConversationCache) Append(m domain.Message) bool {
	if c.ticket == nil {
		return false
	}
	if _, seen := c.index[m.ID]; seen {
		return false
	}
	msgs := c.ticket.Messages
	pos := sort.Search(len(msgs), func(i int) bool {
		return domain.MessageBefore(m, msgs[i])
	})
	msgs = append(msgs, domain.Message{})
	copy(msgs[pos+1:], msgs[pos:])
	msgs[pos] = m
	c.ticket.Messages = msgs
	c.index[m.ID] = struct{}{}
	return true
}

// Clear drops the cached conversation.
func (c *ConversationCache) Clear() {
	c.ticket = nil
	c.index = nil
}

// Ticket exposes the cached ticket for in-place reconciliation. Callers
// outside the reconciler must only ever see copies.
func (c *ConversationCache) Ticket() *domain.Ticket {
	return c.ticket
}

// ActiveID returns the cached ticket id, or empty when nothing is loaded.
func (c *ConversationCache) ActiveID() string {
	if c.ticket == nil {
		return ""
	}
	return c.ticket.ID
}

// Len returns the number of cached messages.
func (c *ConversationCache) Len() int {
	if c.ticket == nil {
		return 0
	}
	return len(c.ticket.Messages)
}
