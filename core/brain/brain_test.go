package brain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SargassoLLC/anemone/core/bus"
	"github.com/SargassoLLC/anemone/core/types"
)

// scriptedLLM replays a fixed sequence of responses. The last response
// repeats once the script runs out.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*types.LlmResponse
	err       error
	chatCalls int
	inputs    [][]types.Item
}

func (f *scriptedLLM) Chat(ctx context.Context, input []types.Item, useTools bool, instructions string, maxTokens int) (*types.LlmResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	f.inputs = append(f.inputs, append([]types.Item(nil), input...))
	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[len(f.responses)-1]
	if f.chatCalls <= len(f.responses) {
		resp = f.responses[f.chatCalls-1]
	}
	return resp, nil
}

func (f *scriptedLLM) ChatShort(ctx context.Context, input []types.Item, instructions string) (string, error) {
	return "5", nil
}

func (f *scriptedLLM) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

func (f *scriptedLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls
}

func textResponse(text string) *types.LlmResponse {
	return &types.LlmResponse{Text: text, Output: []types.Item{{"role": "assistant", "content": text}}}
}

func toolResponse(text, tool string, args types.ActionParams) *types.LlmResponse {
	return &types.LlmResponse{
		Text:      text,
		ToolCalls: []types.ToolCall{{Name: tool, Arguments: args, CallID: "c1"}},
		Output:    []types.Item{{"role": "assistant", "content": text}},
	}
}

func testIdentity() types.Identity {
	return types.Identity{
		Name:   "Pip",
		Genome: "abc123",
		Traits: types.Traits{
			Domains:        []string{"tidepool ecology", "clockwork", "ciphers"},
			ThinkingStyles: []string{"finding patterns in noise", "inverting assumptions"},
			Temperament:    "quiet and observational",
		},
		Born: "2026-08-01 12:00:00",
	}
}

var _ = Describe("Think cycle", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("stops the tool loop after the configured rounds", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{
			toolResponse("running", "shell", types.ActionParams{"command": "ls"}),
		}}
		b := New(testIdentity(), dir, llm, WithMaxToolRounds(2))

		b.thinkOnce(context.Background())

		// Initial call plus one follow-up per allowed round.
		Expect(llm.calls()).To(Equal(3))
	})

	It("stores the closing thought as a memory", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{
			textResponse("the tide seems regular"),
		}}
		b := New(testIdentity(), dir, llm)

		b.thinkOnce(context.Background())

		Expect(b.ThoughtCount()).To(Equal(1))
		memories := b.Memory().GetRecent(1, "thought")
		Expect(memories).To(HaveLen(1))
		Expect(memories[0].Content).To(Equal("the tide seems regular"))
	})

	It("surfaces provider failures as error entries and keeps running", func() {
		llm := &scriptedLLM{err: errors.New("backend exploded")}
		b := New(testIdentity(), dir, llm)
		sub := b.Bus().Subscribe()
		defer sub.Close()

		b.thinkOnce(context.Background())

		Expect(b.Memory().Len()).To(Equal(0))
		var sawError bool
		for {
			select {
			case ev := <-sub.C():
				if ev.Kind == bus.EventEntry {
					if entry, ok := ev.Data.(types.EventEntry); ok && entry.Type == "error" {
						sawError = true
					}
				}
				continue
			default:
			}
			break
		}
		Expect(sawError).To(BeTrue())
	})

	It("feeds blocked shell commands back as tool output", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{
			toolResponse("trying something", "shell", types.ActionParams{"command": "sudo reboot"}),
			textResponse("that didn't work"),
		}}
		b := New(testIdentity(), dir, llm)

		b.thinkOnce(context.Background())

		Expect(llm.calls()).To(Equal(2))
		followUp := llm.inputs[1]
		var toolOutput string
		for _, item := range followUp {
			if item["type"] == "function_call_output" {
				toolOutput, _ = item["output"].(string)
			}
		}
		Expect(toolOutput).To(HavePrefix("Blocked:"))
	})

	It("answers unknown tools with a textual stub", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{
			toolResponse("hm", "teleport", types.ActionParams{"to": "mars"}),
			textResponse("oh well"),
		}}
		b := New(testIdentity(), dir, llm)

		b.thinkOnce(context.Background())

		followUp := llm.inputs[1]
		var toolOutput string
		for _, item := range followUp {
			if item["type"] == "function_call_output" {
				toolOutput, _ = item["output"].(string)
			}
		}
		Expect(toolOutput).To(ContainSubstring("unknown tool"))
	})

	It("moves the agent with the move tool", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{
			toolResponse("heading over", "move", types.ActionParams{"location": "desk"}),
			textResponse("made it"),
		}}
		b := New(testIdentity(), dir, llm)

		b.thinkOnce(context.Background())

		Expect(b.Position()).To(Equal(types.Position{X: 10, Y: 1}))
	})
})

var _ = Describe("Conversation rendezvous", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("delivers a reply that arrives during the wait", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{
			toolResponse("saying hi", "respond", types.ActionParams{"message": "hello out there"}),
			textResponse("nice chat"),
		}}
		b := New(testIdentity(), dir, llm, WithConversationTimeout(2*time.Second))

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			b.thinkOnce(context.Background())
			close(done)
		}()

		Eventually(b.IsWaitingForReply).Should(BeTrue())
		Expect(b.Bus().Send(bus.ConversationReply{Text: "hi Pip"})).To(BeTrue())
		Eventually(done).Should(BeClosed())

		followUp := llm.inputs[1]
		var toolOutput string
		for _, item := range followUp {
			if item["type"] == "function_call_output" {
				toolOutput, _ = item["output"].(string)
			}
		}
		Expect(toolOutput).To(ContainSubstring(`They say: "hi Pip"`))
		Expect(b.IsWaitingForReply()).To(BeFalse())
	})

	It("times out into the silence message", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{
			toolResponse("saying hi", "respond", types.ActionParams{"message": "anyone there?"}),
			textResponse("guess not"),
		}}
		b := New(testIdentity(), dir, llm, WithConversationTimeout(30*time.Millisecond))

		b.thinkOnce(context.Background())

		followUp := llm.inputs[1]
		var toolOutput string
		for _, item := range followUp {
			if item["type"] == "function_call_output" {
				toolOutput, _ = item["output"].(string)
			}
		}
		Expect(toolOutput).To(ContainSubstring("didn't say anything else"))
	})
})

var _ = Describe("Reflection", func() {
	It("distills recent memories into depth-1 insights and resets the sum", func() {
		dir := GinkgoT().TempDir()
		llm := &scriptedLLM{responses: []*types.LlmResponse{
			textResponse("patterns repeat at low tide\nwrite findings down sooner"),
		}}
		b := New(testIdentity(), dir, llm)

		for i := 0; i < 12; i++ {
			_, err := b.Memory().Add(context.Background(), "something happened", "thought", 0, nil)
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(b.Memory().ShouldReflect()).To(BeTrue())

		b.reflect(context.Background())

		reflections := b.Memory().GetRecent(10, "reflection")
		Expect(reflections).To(HaveLen(2))
		Expect(reflections[0].Depth).To(Equal(1))
		Expect(reflections[0].References).ToNot(BeEmpty())
		Expect(b.Memory().ShouldReflect()).To(BeFalse())
	})
})

var _ = Describe("Planning", func() {
	It("rewrites projects.md, logs the diary entry, and reloads the focus", func() {
		dir := GinkgoT().TempDir()
		plan := "# Current focus\nFinish the tide chart\n\n# Projects\n- tide chart: halfway\n\nLOG: Charted two more pools today. Good progress."
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse(plan)}}
		b := New(testIdentity(), dir, llm)

		b.plan(context.Background())

		projects, err := os.ReadFile(filepath.Join(dir, "projects.md"))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(projects)).To(ContainSubstring("Finish the tide chart"))
		Expect(string(projects)).ToNot(ContainSubstring("LOG:"))

		logPath := filepath.Join(dir, "logs", time.Now().Format("2006-01-02")+".md")
		logData, err := os.ReadFile(logPath)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(logData)).To(ContainSubstring("Charted two more pools"))

		Expect(b.currentFocus).To(Equal("Finish the tide chart"))
		Expect(b.cyclesSincePlan).To(Equal(0))
	})
})

var _ = Describe("Inbox", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("notices new root files and loads text content", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("ok")}}
		b := New(testIdentity(), dir, llm)

		Expect(os.WriteFile(filepath.Join(dir, "letter.txt"), []byte("dear Pip"), 0o644)).To(Succeed())

		newFiles := b.checkNewFiles()
		Expect(newFiles).To(HaveLen(1))
		Expect(newFiles[0].Name).To(Equal("letter.txt"))
		Expect(newFiles[0].Content).To(Equal("dear Pip"))

		// A second scan sees nothing new.
		Expect(b.checkNewFiles()).To(BeEmpty())
	})

	It("ignores ledger files and dotfiles", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("ok")}}
		b := New(testIdentity(), dir, llm)

		Expect(os.WriteFile(filepath.Join(dir, "memory_stream.jsonl"), []byte("{}"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644)).To(Succeed())

		Expect(b.checkNewFiles()).To(BeEmpty())
	})

	It("overrides the nudge when files are pending", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("ok")}}
		b := New(testIdentity(), dir, llm)
		b.inboxPending = []types.NewFileInfo{{Name: "gift.md", Content: "surprise"}}

		_, input := b.buildInput()

		last := input[len(input)-1]
		content, _ := last["content"].(string)
		Expect(content).To(ContainSubstring("YOUR OWNER left something for you"))
		Expect(content).To(ContainSubstring("gift.md"))
	})

	It("attaches images as multimodal content", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("ok")}}
		b := New(testIdentity(), dir, llm)
		b.inboxPending = []types.NewFileInfo{{Name: "photo.png", Image: "data:image/png;base64,aaaa"}}

		_, input := b.buildInput()

		last := input[len(input)-1]
		parts, ok := last["content"].([]any)
		Expect(ok).To(BeTrue())
		Expect(parts).To(HaveLen(2))
	})
})

var _ = Describe("Run loop", func() {
	It("runs cycles until a Stop command", func() {
		dir := GinkgoT().TempDir()
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("just thinking")}}
		b := New(testIdentity(), dir, llm, WithThinkingPace(10*time.Millisecond))
		b.skipVenv = true

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			b.Run(context.Background())
			close(done)
		}()

		Eventually(func() int { return b.ThoughtCount() }).Should(BeNumerically(">=", 1))
		Expect(b.Bus().Send(bus.Stop{})).To(BeTrue())
		Eventually(done).Should(BeClosed())
		Expect(b.State()).To(Equal(types.StateIdle))
	})

	It("applies focus mode commands between cycles", func() {
		dir := GinkgoT().TempDir()
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("hm")}}
		b := New(testIdentity(), dir, llm, WithThinkingPace(10*time.Millisecond))
		b.skipVenv = true
		sub := b.Bus().Subscribe()
		defer sub.Close()

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			b.Run(context.Background())
			close(done)
		}()

		Expect(b.Bus().Send(bus.SetFocusMode{Enabled: true})).To(BeTrue())

		Eventually(func() bool {
			for {
				select {
				case ev := <-sub.C():
					if ev.Kind == bus.EventFocusMode {
						return true
					}
				default:
					return false
				}
			}
		}).Should(BeTrue())

		b.Bus().Send(bus.Stop{})
		Eventually(done).Should(BeClosed())
	})

	It("keeps the latest snapshot pushed by a driver", func() {
		dir := GinkgoT().TempDir()
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("hm")}}
		b := New(testIdentity(), dir, llm, WithThinkingPace(10*time.Millisecond))
		b.skipVenv = true

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			b.Run(context.Background())
			close(done)
		}()

		Expect(b.Bus().Send(bus.Snapshot{Data: "room-v1"})).To(BeTrue())
		Eventually(b.LatestSnapshot).Should(Equal("room-v1"))

		b.Bus().Send(bus.Stop{})
		Eventually(done).Should(BeClosed())
	})
})

var _ = Describe("Agent info", func() {
	It("reports name, state and thought count", func() {
		dir := GinkgoT().TempDir()
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("a thought")}}
		b := New(testIdentity(), dir, llm)

		info := b.Info()
		Expect(info.Name).To(Equal("Pip"))
		Expect(info.ID).To(Equal("Pip"))
		Expect(info.ThoughtCount).To(BeZero())

		b.thinkOnce(context.Background())
		Expect(b.Info().ThoughtCount).To(Equal(1))
	})
})

var _ = Describe("Identity records", func() {
	It("round-trips through identity.json", func() {
		dir := GinkgoT().TempDir()
		id := testIdentity()
		Expect(SaveIdentity(id, dir)).To(Succeed())

		loaded, err := LoadIdentity(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded).To(Equal(id))
	})

	It("fails cleanly when the record is missing", func() {
		_, err := LoadIdentity(GinkgoT().TempDir())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Focus loading", func() {
	It("extracts the current focus section from projects.md", func() {
		dir := GinkgoT().TempDir()
		content := "# Current focus\nMap the west tidepools\nbefore the storm\n\n# Projects\n- mapping\n"
		Expect(os.WriteFile(filepath.Join(dir, "projects.md"), []byte(content), 0o644)).To(Succeed())

		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("ok")}}
		b := New(testIdentity(), dir, llm)

		Expect(b.loadCurrentFocus()).To(Equal("Map the west tidepools before the storm"))
	})

	It("returns empty when projects.md is missing", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("ok")}}
		b := New(testIdentity(), GinkgoT().TempDir(), llm)
		Expect(b.loadCurrentFocus()).To(BeEmpty())
	})
})

var _ = Describe("Activity classification", func() {
	It("labels tool calls for observers", func() {
		cases := []struct {
			call   types.ToolCall
			wanted string
		}{
			{types.ToolCall{Name: "move", Arguments: types.ActionParams{"location": "bed"}}, "moving"},
			{types.ToolCall{Name: "respond", Arguments: types.ActionParams{"message": "hi"}}, "conversing"},
			{types.ToolCall{Name: "web_search", Arguments: types.ActionParams{"query": "x"}}, "searching"},
			{types.ToolCall{Name: "shell", Arguments: types.ActionParams{"command": "python3 t.py"}}, "python"},
			{types.ToolCall{Name: "shell", Arguments: types.ActionParams{"command": "echo x > notes.md"}}, "writing"},
			{types.ToolCall{Name: "shell", Arguments: types.ActionParams{"command": "cat notes.md"}}, "reading"},
			{types.ToolCall{Name: "shell", Arguments: types.ActionParams{"command": "mkdir research"}}, "shell"},
			{types.ToolCall{Name: "imagine", Arguments: types.ActionParams{}}, "working"},
		}
		for _, tc := range cases {
			Expect(classifyActivity(tc.call).Type).To(Equal(tc.wanted), tc.call.Name)
		}
	})

	It("names the written file", func() {
		activity := classifyActivity(types.ToolCall{
			Name:      "shell",
			Arguments: types.ActionParams{"command": "echo hi > notes/today.md"},
		})
		Expect(activity.Detail).To(Equal("Writing notes/today.md"))
	})
})

var _ = Describe("Continue nudge", func() {
	It("pushes toward writing after repeated research cycles", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("ok")}}
		b := New(testIdentity(), GinkgoT().TempDir(), llm)
		b.thoughtCount = 3
		b.consecutiveResearchCycles = 5

		nudge := b.buildContinueNudge()
		Expect(nudge).To(ContainSubstring("STOP researching"))
	})

	It("keeps focus mode terse", func() {
		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("ok")}}
		b := New(testIdentity(), GinkgoT().TempDir(), llm)
		b.focusMode = true
		b.consecutiveResearchCycles = 5

		nudge := b.buildContinueNudge()
		Expect(nudge).To(ContainSubstring("Focus mode is on"))
		Expect(nudge).ToNot(ContainSubstring("STOP researching"))
	})
})

var _ = Describe("Wake nudge", func() {
	It("lists the world on the first cycle", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "projects.md"), []byte("# Projects\n- old work"), 0o644)).To(Succeed())

		llm := &scriptedLLM{responses: []*types.LlmResponse{textResponse("ok")}}
		b := New(testIdentity(), dir, llm)

		_, input := b.buildInput()
		content, _ := input[len(input)-1]["content"].(string)
		Expect(content).To(ContainSubstring("You're waking up"))
		Expect(content).To(ContainSubstring("old work"))
		Expect(strings.Contains(content, "projects.md")).To(BeTrue())
	})
})
