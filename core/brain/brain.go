// Package brain runs the think-reflect-plan loop of a single agent. The
// loop owns all mutable state; the outside world talks to it through the
// bus only.
package brain

import (
	"context"
	"sync"
	"time"

	"github.com/mudler/xlog"

	"github.com/SargassoLLC/anemone/core/bus"
	"github.com/SargassoLLC/anemone/core/memory"
	"github.com/SargassoLLC/anemone/core/tools"
	"github.com/SargassoLLC/anemone/core/types"
)

// LLM is the provider surface the brain consumes.
type LLM interface {
	Chat(ctx context.Context, input []types.Item, useTools bool, instructions string, maxTokens int) (*types.LlmResponse, error)
	ChatShort(ctx context.Context, input []types.Item, instructions string) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Brain is one agent. Construct with New, drive with Run; everything else
// goes through Bus().
type Brain struct {
	identity types.Identity
	envPath  string
	llm      LLM
	bus      *bus.Bus
	stream   *memory.Stream

	mu             sync.Mutex
	state          types.BrainState
	thoughtCount   int
	position       types.Position
	waitingReply   bool
	latestSnapshot string

	events   []types.EventEntry
	apiCalls []types.ApiCallRecord

	seenEnvFiles map[string]bool
	inboxPending []types.NewFileInfo

	cyclesSincePlan           int
	currentFocus              string
	focusMode                 bool
	consecutiveResearchCycles int
	userMessage               string
	stopRequested             bool

	skipVenv            bool
	thinkingPace        time.Duration
	maxToolRounds       int
	maxThoughtsInCtx    int
	maxOutputTokens     int
	planInterval        int
	conversationTimeout time.Duration
	memoryOpts          []memory.Option
}

func New(identity types.Identity, envPath string, llm LLM, opts ...Option) *Brain {
	b := &Brain{
		identity:            identity,
		envPath:             envPath,
		llm:                 llm,
		bus:                 bus.New(),
		state:               types.StateIdle,
		position:            types.Position{X: 5, Y: 5},
		seenEnvFiles:        map[string]bool{},
		thinkingPace:        45 * time.Second,
		maxToolRounds:       15,
		maxThoughtsInCtx:    20,
		maxOutputTokens:     1000,
		planInterval:        10,
		conversationTimeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(b)
	}
	b.stream = memory.New(envPath, llm, b.memoryOpts...)
	return b
}

func (b *Brain) Bus() *bus.Bus            { return b.bus }
func (b *Brain) Identity() types.Identity { return b.identity }
func (b *Brain) Memory() *memory.Stream   { return b.stream }

func (b *Brain) State() types.BrainState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Brain) ThoughtCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.thoughtCount
}

func (b *Brain) Position() types.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

func (b *Brain) IsWaitingForReply() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waitingReply
}

// LatestSnapshot returns the most recent state snapshot an external driver
// pushed over the command queue.
func (b *Brain) LatestSnapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latestSnapshot
}

// Info summarizes the agent for external drivers.
func (b *Brain) Info() types.AgentInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return types.AgentInfo{
		ID:           b.identity.Name,
		Name:         b.identity.Name,
		State:        b.state,
		ThoughtCount: b.thoughtCount,
	}
}

func (b *Brain) setState(state types.BrainState) {
	b.mu.Lock()
	b.state = state
	count := b.thoughtCount
	b.mu.Unlock()
	b.bus.Publish(bus.StatusEvent(state, count))
}

// Run is the agent's life. It returns only on a Stop command or context
// cancellation.
func (b *Brain) Run(ctx context.Context) {
	xlog.Info("Waking up", "name", b.identity.Name)

	if !b.skipVenv {
		tools.EnsureVenv(b.envPath)
	}

	// Files already in subdirectories are the agent's own work; root-level
	// user files stay unseen so they raise an inbox alert on the first cycle.
	for f := range b.scanEnvFiles() {
		if isSubPath(f) || internalRootFiles[f] {
			b.seenEnvFiles[f] = true
		}
	}
	b.currentFocus = b.loadCurrentFocus()

	xlog.Info("Ready", "name", b.identity.Name, "memories", b.stream.Len())

	for {
		b.drainCommands()
		if b.stopRequested || ctx.Err() != nil {
			break
		}

		if newFiles := b.checkNewFiles(); len(newFiles) > 0 {
			b.inboxPending = newFiles
			b.bus.Publish(bus.Event{Kind: bus.EventAlert})
		}

		b.thinkOnce(ctx)
		b.inboxPending = nil

		if b.stream.ShouldReflect() {
			b.reflect(ctx)
		}

		b.cyclesSincePlan++
		if b.cyclesSincePlan >= b.planInterval {
			b.plan(ctx)
		}

		b.setState(types.StateIdle)

		b.mu.Lock()
		tools.IdleWander(&b.position)
		pos := b.position
		b.mu.Unlock()
		b.bus.Publish(bus.Event{Kind: bus.EventPosition, Data: pos})

		if !b.sleep(ctx) {
			break
		}
	}

	xlog.Info("Shutting down", "name", b.identity.Name)
	b.setState(types.StateIdle)
}

// drainCommands applies every queued command without blocking.
func (b *Brain) drainCommands() {
	for {
		select {
		case cmd := <-b.bus.Commands():
			b.handleCommand(cmd)
		default:
			return
		}
	}
}

func (b *Brain) handleCommand(cmd bus.Command) {
	switch c := cmd.(type) {
	case bus.UserMessage:
		b.userMessage = c.Text
	case bus.ConversationReply:
		// No rendezvous outstanding here, the reply is stale.
		xlog.Debug("Dropping reply with no conversation waiting")
	case bus.SetFocusMode:
		b.focusMode = c.Enabled
		b.bus.Publish(bus.Event{Kind: bus.EventFocusMode, Data: types.FocusModeData{Enabled: c.Enabled}})
	case bus.Snapshot:
		b.mu.Lock()
		b.latestSnapshot = c.Data
		b.mu.Unlock()
	case bus.Stop:
		b.stopRequested = true
	}
}

// sleep pauses between cycles, staying responsive to commands. Returns
// false when the agent should shut down.
func (b *Brain) sleep(ctx context.Context) bool {
	timer := time.NewTimer(b.thinkingPace)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return true
		case <-ctx.Done():
			return false
		case cmd := <-b.bus.Commands():
			b.handleCommand(cmd)
			if b.stopRequested {
				return false
			}
			if b.userMessage != "" {
				// Wake early, someone is talking to us.
				return true
			}
		}
	}
}
