package core

import "sync"

// ChatContext is the ordered message history owned by a task. It is safe for
// concurrent access.
//
// Contract:
//   - Append inserts at the end without any uniqueness check
//   - MergeFrom appends only messages whose id is not already present,
//     preserving the source order; it never reorders or deduplicates by
//     content, only by id
//   - Messages returns a defensive copy to avoid external mutation
type ChatContext struct {
	mu       sync.RWMutex
	messages []ChatMessage
}

// NewChatContext constructs an empty chat context.
func NewChatContext() *ChatContext { return &ChatContext{} }

// Append adds a message to the end of the history.
func (c *ChatContext) Append(msg ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// AppendText builds a message from role and content and appends it.
func (c *ChatContext) AppendText(role Role, content string) ChatMessage {
	msg := NewMessage(role, content)
	c.Append(msg)
	return msg
}

// MergeFrom appends every message of other that is not already present in
// this context, by id. The read-check and append happen under a single write
// lock so merges are atomic with respect to concurrent Append calls from the
// turn loop. Merging the same source twice is a no-op the second time.
func (c *ChatContext) MergeFrom(other *ChatContext) {
	if other == nil || other == c {
		return
	}
	incoming := other.Messages()

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := make(map[string]struct{}, len(c.messages))
	for _, msg := range c.messages {
		existing[msg.ID] = struct{}{}
	}
	for _, msg := range incoming {
		if _, ok := existing[msg.ID]; ok {
			continue
		}
		c.messages = append(c.messages, msg)
		existing[msg.ID] = struct{}{}
	}
}

// Messages returns a copy of the full message slice.
func (c *ChatContext) Messages() []ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := make([]ChatMessage, len(c.messages))
	copy(msgs, c.messages)
	return msgs
}

// Len returns the number of messages in the context.
func (c *ChatContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// LastMessage returns the most recent message and true, or a zero message
// and false when the context is empty.
func (c *ChatContext) LastMessage() (ChatMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return ChatMessage{}, false
	}
	return c.messages[len(c.messages)-1], true
}
