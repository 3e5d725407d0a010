package brain

import (
	"time"

	"github.com/SargassoLLC/anemone/core/memory"
)

type Option func(*Brain)

// WithThinkingPace sets the idle delay between think cycles.
func WithThinkingPace(d time.Duration) Option {
	return func(b *Brain) { b.thinkingPace = d }
}

// WithMaxToolRounds bounds the follow-up rounds of a single think cycle.
func WithMaxToolRounds(n int) Option {
	return func(b *Brain) { b.maxToolRounds = n }
}

// WithMaxThoughtsInContext bounds how much transcript history is replayed
// into each reasoning request.
func WithMaxThoughtsInContext(n int) Option {
	return func(b *Brain) { b.maxThoughtsInCtx = n }
}

func WithMaxOutputTokens(n int) Option {
	return func(b *Brain) { b.maxOutputTokens = n }
}

// WithPlanInterval sets how many think cycles pass between planning passes.
func WithPlanInterval(n int) Option {
	return func(b *Brain) { b.planInterval = n }
}

// WithConversationTimeout bounds how long a respond call waits for a reply.
func WithConversationTimeout(d time.Duration) Option {
	return func(b *Brain) { b.conversationTimeout = d }
}

// WithMemoryOptions forwards options to the agent's memory stream.
func WithMemoryOptions(opts ...memory.Option) Option {
	return func(b *Brain) { b.memoryOpts = append(b.memoryOpts, opts...) }
}

// WithFocusMode starts the agent with focus mode already on.
func WithFocusMode(enabled bool) Option {
	return func(b *Brain) { b.focusMode = enabled }
}
