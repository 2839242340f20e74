// Package test provides test utilities and helpers for abstractbot tests.
package test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/liteclaw/abstractbot/internal/bot"
	"github.com/liteclaw/abstractbot/internal/bouncer"
	"github.com/liteclaw/abstractbot/internal/channels"
	"github.com/liteclaw/abstractbot/internal/inject"
)

// MockChannel is a channel with no platform behind it. Outbound capability
// calls are recorded instead of sent.
type MockChannel struct {
	*channels.BaseChannel

	mu      sync.RWMutex
	replies []string
	files   []string
}

// NewMockChannel creates a new mock channel running handler.
func NewMockChannel(id string, handler bot.TaskHandler) *MockChannel {
	return &MockChannel{
		BaseChannel: channels.NewBaseChannel(id, id, channels.ChannelTypeDatabase, handler, zerolog.Nop()),
	}
}

// Endpoints is empty; messages come in through SimulateIncoming.
func (c *MockChannel) Endpoints() []bouncer.Endpoint { return nil }

func (c *MockChannel) Start(ctx context.Context) error {
	c.SetRunning(true, "mock")
	return nil
}

func (c *MockChannel) Stop(ctx context.Context) error {
	c.SetRunning(false, "")
	return nil
}

// Override binds recording capabilities for userID.
func (c *MockChannel) Override(userID string) inject.Override {
	return inject.Compose(
		bot.WithMedium(c.ID()),
		bot.WithUserID(userID),
		bot.WithReply(func(_ context.Context, text string) (string, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.replies = append(c.replies, text)
			return strconv.Itoa(len(c.replies)), nil
		}),
		bot.WithSendFile(func(_ context.Context, url string) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.files = append(c.files, url)
			return nil
		}),
	)
}

// SimulateIncoming dispatches text from userID to the task handler.
func (c *MockChannel) SimulateIncoming(ctx context.Context, userID, text string) error {
	return c.Dispatch(ctx, c.Override(userID), bot.ConversationEvent{Kind: bot.KindMessage, Text: text})
}

// Replies returns all recorded replies.
func (c *MockChannel) Replies() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.replies...)
}

// Files returns all recorded file urls.
func (c *MockChannel) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.files...)
}

// Reset clears all recorded output.
func (c *MockChannel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = nil
	c.files = nil
}

// AssertReplied asserts that text was replied.
func (c *MockChannel) AssertReplied(t *testing.T, text string) {
	t.Helper()
	replies := c.Replies()
	for _, r := range replies {
		if r == text {
			return
		}
	}
	t.Errorf("Expected reply %q, got: %v", text, replies)
}

// AssertNoReplies asserts that nothing was replied.
func (c *MockChannel) AssertNoReplies(t *testing.T) {
	t.Helper()
	if replies := c.Replies(); len(replies) > 0 {
		t.Errorf("Expected no replies, got: %v", replies)
	}
}
