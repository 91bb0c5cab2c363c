package core

import (
	"sync"
	"time"
)

// EventType labels the structured events emitted toward the transport layer.
type EventType string

// Outbound event types consumed by the transport.
const (
	EventUserMessage   EventType = "user_message"
	EventAgentThinking EventType = "agent_thinking"
	EventAgentAction   EventType = "agent_action"
	EventAgentResult   EventType = "agent_result"
	EventAgentComplete EventType = "agent_complete"
	EventError         EventType = "error"
	EventErrorEnhanced EventType = "error_enhanced"
	EventAgentInfo     EventType = "agent_info"
	EventNewSession    EventType = "new_session"
)

// Inbound event types accepted from the transport.
const (
	EventClearContext EventType = "clear_context"
)

// Event is one structured record in the outbound stream. Metadata may carry
// step_number, total_steps, elapsed and progress hints for UI rendering.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id,omitempty"`
	Type      EventType      `json:"event"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent constructs an event stamped with a fresh ID and UTC timestamp.
func NewEvent(sessionID string, eventType EventType, content string) Event {
	return Event{
		ID:        NewID(),
		SessionID: sessionID,
		Type:      eventType,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// WithMetadata attaches metadata and returns the event for chaining.
func (e Event) WithMetadata(md map[string]any) Event {
	e.Metadata = md
	return e
}

// Sink receives the engine's event stream. Implementations must be safe for
// concurrent use; emission must never block the orchestrator loop for long.
type Sink interface {
	Emit(event Event)
}

// NoOpSink discards all events. Used when no transport is attached.
type NoOpSink struct{}

// Emit implements Sink.
func (NoOpSink) Emit(Event) {}

// ChannelSink forwards events to a channel, dropping when the buffer is full
// so a stalled consumer cannot wedge a session.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a sink buffered to size.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, size)}
}

// Events exposes the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// Emit implements Sink with drop-on-full semantics.
func (s *ChannelSink) Emit(event Event) {
	select {
	case s.ch <- event:
	default:
	}
}

// Close releases the underlying channel. Emit must not be called afterwards.
func (s *ChannelSink) Close() { close(s.ch) }

// MemorySink records every emitted event. Intended for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (s *MemorySink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a defensive copy of the recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType returns recorded events matching the given type, in emission order.
func (s *MemorySink) ByType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
