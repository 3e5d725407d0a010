// Package bus carries the two message surfaces of a single agent: a fan-out
// event broadcast to any number of observers and one inbound command queue.
// A slow or absent observer never blocks the agent — each subscription keeps
// a bounded buffer and drops its oldest events on overflow, counting how
// many the consumer missed.
package bus

import (
	"sync"

	"github.com/SargassoLLC/anemone/core/types"
)

// Event kinds broadcast by the brain.
const (
	EventEntry        = "entry"
	EventApiCall      = "api_call"
	EventPosition     = "position"
	EventStatus       = "status"
	EventAlert        = "alert"
	EventActivity     = "activity"
	EventFocusMode    = "focus_mode"
	EventConversation = "conversation"
)

// Event is one broadcast message. Data holds the kind-specific payload:
// types.EventEntry, types.ApiCallRecord, types.Position, types.StatusData,
// types.ActivityData, types.FocusModeData or types.ConversationData.
// Alert events carry no payload.
type Event struct {
	Kind string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// DefaultBufferSize is the per-subscription event buffer.
const DefaultBufferSize = 256

// commandQueueSize bounds the inbound command queue.
const commandQueueSize = 32

// Bus is the message hub of one agent. Publish never blocks.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}

	commands chan Command
}

func New() *Bus {
	return &Bus{
		subs:     map[*Subscription]struct{}{},
		commands: make(chan Command, commandQueueSize),
	}
}

// Subscription is one observer's view of the event stream. Read events from
// C; call Lagged to learn how many events were dropped since the last call.
type Subscription struct {
	bus *Bus

	mu     sync.Mutex
	ch     chan Event
	missed int
	closed bool
}

// Subscribe registers a new observer with the default buffer size.
func (b *Bus) Subscribe() *Subscription {
	return b.SubscribeBuffered(DefaultBufferSize)
}

// SubscribeBuffered registers a new observer with an explicit buffer size.
func (b *Bus) SubscribeBuffered(size int) *Subscription {
	if size <= 0 {
		size = DefaultBufferSize
	}
	s := &Subscription{bus: b, ch: make(chan Event, size)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// C is the event channel. It is closed when the subscription is closed.
func (s *Subscription) C() <-chan Event { return s.ch }

// Lagged reports and resets the number of events dropped from this
// subscription's buffer since the previous call.
func (s *Subscription) Lagged() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.missed
	s.missed = 0
	return n
}

// Close detaches the observer and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Publish fans an event out to all current subscriptions. When a buffer is
// full the oldest queued event is discarded and the lagged counter bumped,
// so the publisher never stalls on a slow consumer.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.push(ev)
	}
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
			s.missed++
		default:
		}
	}
}

// Command is an inbound instruction from an external driver. The set is
// closed: user message, conversation reply, focus toggle, snapshot, stop.
type Command interface {
	isCommand()
}

type UserMessage struct{ Text string }

type ConversationReply struct{ Text string }

type SetFocusMode struct{ Enabled bool }

type Snapshot struct{ Data string }

type Stop struct{}

func (UserMessage) isCommand()       {}
func (ConversationReply) isCommand() {}
func (SetFocusMode) isCommand()      {}
func (Snapshot) isCommand()          {}
func (Stop) isCommand()              {}

// Send queues a command for the agent. It reports false when the queue is
// full rather than blocking the caller.
func (b *Bus) Send(cmd Command) bool {
	select {
	case b.commands <- cmd:
		return true
	default:
		return false
	}
}

// Commands exposes the single-consumer inbound queue to the brain loop.
func (b *Bus) Commands() <-chan Command { return b.commands }

// StatusEvent builds a status event for the given state.
func StatusEvent(state types.BrainState, thoughtCount int) Event {
	return Event{Kind: EventStatus, Data: types.StatusData{State: state, ThoughtCount: thoughtCount}}
}
