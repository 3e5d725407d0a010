package brain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mudler/xlog"

	"github.com/SargassoLLC/anemone/core/prompts"
	"github.com/SargassoLLC/anemone/core/types"
)

// reflect distills recent memories into higher-level insights and stores
// them back into the stream at depth 1.
func (b *Brain) reflect(ctx context.Context) {
	b.setState(types.StateReflecting)
	b.emit("reflection_start", types.Item{})

	recent := b.stream.GetRecent(15, "")
	if len(recent) == 0 {
		b.stream.ResetImportanceSum()
		return
	}

	var lines []string
	for _, m := range recent {
		lines = append(lines, fmt.Sprintf("[%s] (importance %d): %s", m.Kind, m.Importance, m.Content))
	}
	input := []types.Item{{
		"role":    "user",
		"content": "Your recent memories:\n\n" + strings.Join(lines, "\n\n"),
	}}

	response, err := b.llm.Chat(ctx, input, false, prompts.ReflectionPrompt, 300)
	if err != nil {
		xlog.Error("Reflection failed", "error", err)
		b.emit("error", types.Item{"text": fmt.Sprintf("Reflection failed: %s", err)})
		b.stream.ResetImportanceSum()
		return
	}
	b.emitApiCall(prompts.ReflectionPrompt, input, response, true, false)

	sourceIDs := make([]string, 0, len(recent))
	for _, m := range recent {
		sourceIDs = append(sourceIDs, m.ID)
	}
	for _, line := range strings.Split(response.Text, "\n") {
		insight := strings.TrimSpace(line)
		if insight == "" {
			continue
		}
		if _, err := b.stream.Add(ctx, insight, "reflection", 1, sourceIDs); err != nil {
			xlog.Error("Failed to store reflection", "error", err)
		}
	}
	b.emit("reflection", types.Item{"text": response.Text})

	b.stream.ResetImportanceSum()
}

// plan rewrites projects.md from the model's plan and appends a diary
// entry to the daily log.
func (b *Brain) plan(ctx context.Context) {
	b.setState(types.StatePlanning)

	projects, err := readFileString(b.envPath, "projects.md")
	if err != nil {
		projects = "(no projects.md yet)"
	}

	files := b.listEnvFiles()
	filesStr := "(empty)"
	if len(files) > 0 {
		if len(files) > 30 {
			files = files[:30]
		}
		filesStr = strings.Join(files, "\n")
	}

	memoriesText := "(none yet)"
	if recent := b.stream.GetRecent(10, ""); len(recent) > 0 {
		var lines []string
		for _, m := range recent {
			lines = append(lines, "- "+m.Content)
		}
		memoriesText = strings.Join(lines, "\n")
	}

	input := []types.Item{{
		"role": "user",
		"content": fmt.Sprintf(
			"Time to plan. Here's your current state:\n\n## Current projects.md:\n%s\n\n## Files in your world:\n%s\n\n## Recent thoughts:\n%s",
			truncate(projects, 2000), filesStr, memoriesText),
	}}

	response, err := b.llm.Chat(ctx, input, false, prompts.PlanningPrompt, 1000)
	if err != nil {
		xlog.Error("Planning failed", "error", err)
		b.emit("error", types.Item{"text": fmt.Sprintf("Planning failed: %s", err)})
		return
	}
	b.emitApiCall(prompts.PlanningPrompt, input, response, false, true)

	planText := response.Text
	if planText == "" {
		return
	}

	planBody, logEntry := planText, ""
	if idx := strings.Index(planText, "LOG:"); idx >= 0 {
		planBody = strings.TrimSpace(planText[:idx])
		logEntry = strings.TrimSpace(planText[idx+4:])
	}

	if err := os.WriteFile(filepath.Join(b.envPath, "projects.md"), []byte(planBody), 0o644); err != nil {
		xlog.Error("Failed to write projects.md", "error", err)
	}

	if logEntry != "" {
		b.appendDailyLog(logEntry)
	}

	b.currentFocus = b.loadCurrentFocus()
	b.cyclesSincePlan = 0
	b.seenEnvFiles = b.scanEnvFiles()
	b.emit("planning", types.Item{"text": planText})
}

func (b *Brain) appendDailyLog(entry string) {
	logDir := filepath.Join(b.envPath, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		xlog.Error("Failed to create log dir", "error", err)
		return
	}
	now := time.Now()
	logPath := filepath.Join(logDir, now.Format("2006-01-02")+".md")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		xlog.Error("Failed to write daily log", "error", err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "\n## %s\n%s\n", now.Format("3:04 PM"), entry)
}
