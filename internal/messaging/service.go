// Package messaging defines the transport abstraction between chat
// platforms and the conversation flow, plus the worker pool that drains
// inbound events.
package messaging

import (
	"context"
	"log/slog"

	"github.com/clienterra/leadline/internal/models"
)

// Service is the platform-facing transport surface. Implementations
// bridge a concrete chat platform (or, in tests and the HTTP API, an
// in-process channel) to the flow layer.
type Service interface {
	// Start begins receiving platform events.
	Start(ctx context.Context) error
	// Stop shuts the transport down and closes the event channel.
	Stop() error
	// SendMessage delivers a reply to the given chat.
	SendMessage(ctx context.Context, chatID int64, body string) error
	// Events exposes the inbound event stream.
	Events() <-chan models.InboundEvent
}

// OutboundMessage pairs a reply with its destination chat.
type OutboundMessage struct {
	ChatID int64
	Body   string
}

// DefaultChannelBuffer sizes the in-process event and outbound queues.
const DefaultChannelBuffer = 64

// ChannelService is an in-process Service backed by buffered channels.
// The HTTP API publishes events into it and reads replies from Outbound.
type ChannelService struct {
	events   chan models.InboundEvent
	outbound chan OutboundMessage
}

// NewChannelService creates a channel-backed service with default buffers.
func NewChannelService() *ChannelService {
	return &ChannelService{
		events:   make(chan models.InboundEvent, DefaultChannelBuffer),
		outbound: make(chan OutboundMessage, DefaultChannelBuffer),
	}
}

// Start is a no-op; the channels are live from construction.
func (s *ChannelService) Start(ctx context.Context) error {
	slog.Debug("ChannelService.Start: ready")
	return nil
}

// Stop closes the event stream. Publish must not be called afterwards.
func (s *ChannelService) Stop() error {
	close(s.events)
	return nil
}

// SendMessage queues a reply on the outbound channel. When the queue is
// full the reply is dropped with a warning rather than blocking the
// event loop.
func (s *ChannelService) SendMessage(ctx context.Context, chatID int64, body string) error {
	select {
	case s.outbound <- OutboundMessage{ChatID: chatID, Body: body}:
		return nil
	default:
		slog.Warn("ChannelService.SendMessage: outbound queue full, dropping reply", "chat_id", chatID)
		return nil
	}
}

// Events exposes the inbound event stream.
func (s *ChannelService) Events() <-chan models.InboundEvent {
	return s.events
}

// Outbound exposes queued replies.
func (s *ChannelService) Outbound() <-chan OutboundMessage {
	return s.outbound
}

// Publish enqueues an inbound event, dropping it with a warning when the
// queue is full.
func (s *ChannelService) Publish(ev models.InboundEvent) {
	select {
	case s.events <- ev:
	default:
		slog.Warn("ChannelService.Publish: event queue full, dropping event", "external_id", ev.User.ID, "message_id", ev.MessageID)
	}
}
