package brain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mudler/xlog"

	"github.com/SargassoLLC/anemone/core/bus"
	"github.com/SargassoLLC/anemone/core/prompts"
	"github.com/SargassoLLC/anemone/core/tools"
	"github.com/SargassoLLC/anemone/core/types"
)

// emit appends a transcript entry and broadcasts it.
func (b *Brain) emit(eventType string, data types.Item) {
	b.mu.Lock()
	entry := types.EventEntry{
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		ThoughtNumber: b.thoughtCount,
		Data:          data,
	}
	b.events = append(b.events, entry)
	b.mu.Unlock()
	b.bus.Publish(bus.Event{Kind: bus.EventEntry, Data: entry})

	text, _ := data["text"].(string)
	if text == "" {
		text, _ = data["command"].(string)
	}
	if text == "" {
		text, _ = data["content"].(string)
	}
	xlog.Info("["+eventType+"]", "text", truncate(text, 120))
}

func (b *Brain) emitApiCall(instructions string, input []types.Item, response *types.LlmResponse, isReflection, isPlanning bool) {
	record := types.ApiCallRecord{
		Timestamp:    time.Now().UTC(),
		Instructions: instructions,
		Input:        append([]types.Item(nil), input...),
		Output:       response.Output,
		IsReflection: isReflection,
		IsPlanning:   isPlanning,
	}
	b.mu.Lock()
	b.apiCalls = append(b.apiCalls, record)
	b.mu.Unlock()
	b.bus.Publish(bus.Event{Kind: bus.EventApiCall, Data: record})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// classifyActivity turns a tool call into the human-readable activity
// shown to observers.
func classifyActivity(tc types.ToolCall) types.ActivityData {
	switch inv := tc.ParseToolCall().(type) {
	case types.MoveInvocation:
		return types.ActivityData{Type: "moving", Detail: "Going to " + inv.Location}
	case types.RespondInvocation:
		return types.ActivityData{Type: "conversing", Detail: "Talking to someone..."}
	case types.FetchURLInvocation, types.WebSearchInvocation, types.WebFetchInvocation:
		return types.ActivityData{Type: "searching", Detail: strings.ReplaceAll(tc.Name, "_", " ") + "..."}
	case types.ShellInvocation:
		cmd := strings.TrimSpace(inv.Command)
		switch {
		case strings.HasPrefix(cmd, "python"):
			detail := truncate(cmd, 60)
			if len(cmd) > 60 {
				detail += "..."
			}
			return types.ActivityData{Type: "python", Detail: detail}
		case strings.Contains(cmd, ">") || strings.HasPrefix(cmd, "tee "):
			fname := "file"
			parts := strings.Split(cmd, ">")
			if fields := strings.Fields(strings.TrimSpace(parts[len(parts)-1])); len(fields) > 0 {
				fname = fields[0]
			}
			return types.ActivityData{Type: "writing", Detail: "Writing " + fname}
		case strings.HasPrefix(cmd, "cat ") || strings.HasPrefix(cmd, "head ") ||
			strings.HasPrefix(cmd, "tail ") || strings.HasPrefix(cmd, "ls") ||
			strings.HasPrefix(cmd, "find ") || strings.HasPrefix(cmd, "grep "):
			return types.ActivityData{Type: "reading", Detail: truncate(cmd, 50)}
		default:
			return types.ActivityData{Type: "shell", Detail: truncate(cmd, 50)}
		}
	default:
		return types.ActivityData{Type: "working", Detail: tc.Name}
	}
}

// executeTool dispatches a parsed invocation and always returns a string
// the model can read.
func (b *Brain) executeTool(ctx context.Context, tc types.ToolCall) string {
	switch inv := tc.ParseToolCall().(type) {
	case types.MoveInvocation:
		if inv.Location == "" {
			inv.Location = "center"
		}
		b.mu.Lock()
		result := tools.HandleMove(&b.position, inv.Location)
		pos := b.position
		b.mu.Unlock()
		b.bus.Publish(bus.Event{Kind: bus.EventPosition, Data: pos})
		return result
	case types.RespondInvocation:
		return b.handleRespond(ctx, inv.Message)
	case types.ShellInvocation:
		return tools.RunCommand(ctx, inv.Command, b.envPath)
	case types.FetchURLInvocation:
		return tools.FetchURL(ctx, inv.URL)
	case types.WebSearchInvocation:
		return tools.WebSearch(ctx, inv.Query, inv.MaxResults)
	case types.WebFetchInvocation:
		return tools.WebFetch(ctx, inv.URL)
	case types.UnknownInvocation:
		return fmt.Sprintf("Error: unknown tool '%s'", inv.Name)
	}
	return fmt.Sprintf("Error: unknown tool '%s'", tc.Name)
}

func isResearchTool(name string) bool {
	return name == "web_search" || name == "web_fetch" || name == "fetch_url"
}

// thinkOnce runs one full think cycle: a reasoning call, the tool loop,
// and storing the closing thought as a memory.
func (b *Brain) thinkOnce(ctx context.Context) {
	b.setState(types.StateThinking)

	instructions, inputList := b.buildInput()
	b.userMessage = ""

	response, err := b.llm.Chat(ctx, inputList, true, instructions, b.maxOutputTokens)
	if err != nil {
		xlog.Error("Reasoning call failed", "error", err)
		b.emit("error", types.Item{"text": err.Error()})
		return
	}
	b.emitApiCall(instructions, inputList, response, false, false)

	preCycleFiles := b.scanEnvFiles()
	didResearch := false
	toolRound := 0

	for len(response.ToolCalls) > 0 {
		toolRound++
		if toolRound > b.maxToolRounds {
			xlog.Warn("Hit max tool rounds, stopping tool loop", "rounds", b.maxToolRounds)
			break
		}

		if response.Text != "" {
			b.emit("thought", types.Item{"text": response.Text})
		}
		inputList = append(inputList, response.Output...)

		for _, tc := range response.ToolCalls {
			if isResearchTool(tc.Name) {
				didResearch = true
			}

			b.emit("tool_call", types.Item{"tool": tc.Name, "args": tc.Arguments})
			b.bus.Publish(bus.Event{Kind: bus.EventActivity, Data: classifyActivity(tc)})

			preToolFiles := b.scanEnvFiles()
			result := b.executeTool(ctx, tc)

			b.bus.Publish(bus.Event{Kind: bus.EventActivity, Data: types.ActivityData{Type: "idle"}})
			b.emit("tool_result", types.Item{"tool": tc.Name, "output": result})

			// Files the agent creates itself never raise inbox alerts.
			for f := range b.scanEnvFiles() {
				if !preToolFiles[f] {
					b.seenEnvFiles[f] = true
				}
			}

			inputList = append(inputList, types.Item{
				"type":    "function_call_output",
				"call_id": tc.CallID,
				"name":    tc.Name,
				"output":  result,
			})
		}

		response, err = b.llm.Chat(ctx, inputList, true, instructions, b.maxOutputTokens)
		if err != nil {
			xlog.Error("Follow-up call failed", "error", err)
			b.emit("error", types.Item{"text": err.Error()})
			return
		}
		b.emitApiCall(instructions, inputList, response, false, false)
	}

	// A cycle that only researches builds pressure to write something down.
	createdFiles := false
	for f := range b.scanEnvFiles() {
		if !preCycleFiles[f] {
			createdFiles = true
			break
		}
	}
	if createdFiles {
		b.consecutiveResearchCycles = 0
	} else if didResearch {
		b.consecutiveResearchCycles++
		xlog.Info("Research cycle with no file output", "consecutive", b.consecutiveResearchCycles)
	}

	if response.Text != "" {
		b.mu.Lock()
		b.thoughtCount++
		b.mu.Unlock()
		b.emit("thought", types.Item{"text": response.Text})

		if _, err := b.stream.Add(ctx, response.Text, "thought", 0, nil); err != nil {
			xlog.Error("Memory add failed", "error", err)
		}
	}
}

// handleRespond speaks to the owner and waits for a reply. The wait ends
// on the first ConversationReply, on timeout, or on Stop. Other commands
// arriving mid-wait are applied as usual.
func (b *Brain) handleRespond(ctx context.Context, message string) string {
	b.mu.Lock()
	b.waitingReply = true
	b.mu.Unlock()
	b.bus.Publish(bus.Event{Kind: bus.EventConversation, Data: types.ConversationData{
		State:   "waiting",
		Message: message,
		Timeout: int(b.conversationTimeout.Seconds()),
	}})

	timer := time.NewTimer(b.conversationTimeout)
	defer timer.Stop()

	reply := ""
	gotReply := false
wait:
	for {
		select {
		case <-timer.C:
			break wait
		case <-ctx.Done():
			break wait
		case cmd := <-b.bus.Commands():
			if r, ok := cmd.(bus.ConversationReply); ok {
				reply = r.Text
				gotReply = true
				break wait
			}
			b.handleCommand(cmd)
			if b.stopRequested {
				break wait
			}
		}
	}

	b.mu.Lock()
	b.waitingReply = false
	b.mu.Unlock()
	b.bus.Publish(bus.Event{Kind: bus.EventConversation, Data: types.ConversationData{State: "ended"}})

	if gotReply {
		return fmt.Sprintf("They say: %q\n(Use respond again to reply, or go back to what you were doing.)", reply)
	}
	return "(They didn't say anything else. You can get back to what you were doing.)"
}

// buildInput assembles the instruction block and the input list for the
// next reasoning call.
func (b *Brain) buildInput() (string, []types.Item) {
	instructions := prompts.SystemPrompt(b.identity, b.currentFocus)
	var inputList []types.Item

	var recent []types.EventEntry
	for _, ev := range b.events {
		if ev.Type == "thought" || ev.Type == "tool_call" || ev.Type == "reflection" {
			recent = append(recent, ev)
		}
	}
	if len(recent) > b.maxThoughtsInCtx {
		recent = recent[len(recent)-b.maxThoughtsInCtx:]
	}
	for _, ev := range recent {
		switch ev.Type {
		case "thought":
			text, _ := ev.Data["text"].(string)
			inputList = append(inputList, types.Item{"role": "assistant", "content": text})
		case "tool_call":
			tool, _ := ev.Data["tool"].(string)
			inputList = append(inputList, types.Item{"role": "assistant", "content": fmt.Sprintf("[Used %s tool]", tool)})
		case "reflection":
			text, _ := ev.Data["text"].(string)
			inputList = append(inputList, types.Item{"role": "assistant", "content": fmt.Sprintf("[Reflection: %s...]", truncate(text, 200))})
		}
	}

	var nudge string
	if b.thoughtCount == 0 && len(recent) == 0 {
		nudge = b.buildWakeNudge()
	} else {
		nudge = b.buildContinueNudge()
	}

	// A voice from outside overrides the routine nudge.
	if b.userMessage != "" {
		nudge = fmt.Sprintf("You hear a voice from outside your room say: %q\n\nYou can respond with the respond tool, or just keep doing what you're doing.", b.userMessage)
	}

	// New files override everything.
	if len(b.inboxPending) > 0 {
		names := make([]string, 0, len(b.inboxPending))
		for _, f := range b.inboxPending {
			names = append(names, f.Name)
		}
		parts := []string{fmt.Sprintf(`YOUR OWNER left something for you! New file(s): %s

This is a gift from the outside world. DROP EVERYTHING and focus on it. Your owner took the time to give this to you, so give it your full attention.

Here's what to do:
1. Read/examine it thoroughly and understand what it is and why they gave it to you
2. Think about what would be MOST USEFUL to do with it
3. Make a plan: what research, analysis, or projects could come from this?
4. Start executing: write summaries, do related web searches, build something inspired by it
5. Use the respond tool to tell your owner what you found and what you're doing with it

Spend your next several think cycles on this. Don't just glance at it and move on.`, strings.Join(names, ", "))}
		for _, f := range b.inboxPending {
			if f.Image != "" {
				parts = append(parts, fmt.Sprintf("\nAttached: %s (image below)", f.Name))
			} else if f.Content != "" {
				parts = append(parts, fmt.Sprintf("\nAttached: %s:\n%s", f.Name, f.Content))
			}
		}
		content := strings.Join(parts, "\n")

		var images []any
		for _, f := range b.inboxPending {
			if f.Image != "" {
				images = append(images, map[string]any{"type": "input_image", "image_url": f.Image})
			}
		}
		if len(images) > 0 {
			multi := append([]any{map[string]any{"type": "input_text", "text": content}}, images...)
			inputList = append(inputList, types.Item{"role": "user", "content": multi})
		} else {
			inputList = append(inputList, types.Item{"role": "user", "content": content})
		}
	} else {
		inputList = append(inputList, types.Item{"role": "user", "content": nudge})
	}

	return instructions, inputList
}

func (b *Brain) buildWakeNudge() string {
	parts := []string{"You're waking up. Here's your world:\n"}

	if projects, err := readFileString(b.envPath, "projects.md"); err == nil {
		parts = append(parts, "**Your projects (projects.md):**\n"+truncate(projects, 1500))
	} else {
		parts = append(parts, "**No projects.md yet.** Create one to track what you're working on!")
	}

	if files := b.listEnvFiles(); len(files) > 0 {
		if len(files) > 30 {
			files = files[:30]
		}
		parts = append(parts, "**Files in your world:**\n  "+strings.Join(files, "\n  "))
	}

	if memories := b.stream.RetrieveSync(5); len(memories) > 0 {
		var lines []string
		for _, m := range memories {
			lines = append(lines, "- "+m.Content)
		}
		parts = append(parts, "**Memories from before:**\n"+strings.Join(lines, "\n"))
	}

	parts = append(parts, "\nCheck your projects. Pick up where you left off, or start something new.")
	return strings.Join(parts, "\n\n")
}

func (b *Brain) buildContinueNudge() string {
	if b.focusMode {
		return "Continue.\n" + prompts.FocusNudge
	}

	var parts []string

	if b.consecutiveResearchCycles >= 5 {
		parts = append(parts, "IMPORTANT: You've been researching for many cycles without writing any files. STOP researching. Write up what you've found NOW. Save a report, summary, or analysis to a file using a shell command.")
	} else if b.consecutiveResearchCycles >= 3 {
		parts = append(parts, "You've gathered good research material. Time to write up your findings. Save a report or summary to a file (e.g. research/topic_name.md).")
	}

	if b.currentFocus != "" {
		parts = append(parts, "Current focus: "+b.currentFocus)
	}

	var lastThought string
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Type == "thought" {
			lastThought, _ = b.events[i].Data["text"].(string)
			break
		}
	}
	if lastThought != "" {
		now := time.Now().UTC()
		var lines []string
		for _, m := range b.stream.RetrieveSync(3) {
			// Only surface memories old enough to not be the thought itself.
			if now.Sub(m.Timestamp) > 30*time.Second {
				lines = append(lines, "- "+m.Content)
			}
		}
		if len(lines) > 0 {
			parts = append(parts, "Related memories:\n"+strings.Join(lines, "\n"))
		}
	}

	if len(parts) == 0 {
		return "Continue."
	}
	return "Continue.\n" + strings.Join(parts, "\n")
}
