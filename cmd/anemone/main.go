package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mudler/xlog"

	"github.com/SargassoLLC/anemone/core/brain"
	"github.com/SargassoLLC/anemone/core/bus"
	"github.com/SargassoLLC/anemone/core/provider"
	"github.com/SargassoLLC/anemone/core/types"
)

var (
	providerName = os.Getenv("ANEMONE_PROVIDER")
	model        = os.Getenv("ANEMONE_MODEL")
	baseURL      = os.Getenv("ANEMONE_BASE_URL")
	apiKey       = os.Getenv("ANEMONE_API_KEY")
	envDir       = os.Getenv("ANEMONE_DIR")
	paceEnv      = os.Getenv("ANEMONE_THINKING_PACE")
)

func init() {
	if envDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		envDir = filepath.Join(cwd, "environment")
	}
}

func main() {
	if err := os.MkdirAll(envDir, 0o755); err != nil {
		xlog.Error("Cannot create environment dir", "error", err)
		os.Exit(1)
	}

	identity, err := brain.LoadIdentity(envDir)
	if err != nil {
		// First boot: a plain identity; trait derivation happens elsewhere.
		identity = types.Identity{
			Name:   "anemone-" + uuid.NewString()[:8],
			Traits: types.Traits{Temperament: "quiet and observational"},
			Born:   time.Now().UTC().Format("2006-01-02 15:04:05"),
		}
		if err := brain.SaveIdentity(identity, envDir); err != nil {
			xlog.Error("Cannot save identity", "error", err)
			os.Exit(1)
		}
		xlog.Info("Created new identity", "name", identity.Name)
	}

	llm := provider.New(providerOptions(providerName, model, baseURL, apiKey)...)

	var opts []brain.Option
	if pace, err := time.ParseDuration(paceEnv); err == nil {
		opts = append(opts, brain.WithThinkingPace(pace))
	}

	b := brain.New(identity, envDir, llm, opts...)

	info := b.Info()
	xlog.Info("Agent ready", "name", info.Name, "state", info.State)

	sub := b.Bus().Subscribe()
	go func() {
		for ev := range sub.C() {
			logEvent(ev)
			if n := sub.Lagged(); n > 0 {
				xlog.Warn("Event log fell behind", "dropped", n)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		xlog.Info("Interrupt received, stopping")
		b.Bus().Send(bus.Stop{})
	}()

	b.Run(context.Background())
	sub.Close()
}

// providerOptions turns the environment settings into client options. An
// unset variable contributes nothing so the client keeps its defaults.
func providerOptions(name, model, baseURL, apiKey string) []provider.Option {
	var opts []provider.Option
	if name != "" {
		opts = append(opts, provider.WithProvider(name))
	}
	if model != "" {
		opts = append(opts, provider.WithModel(model))
	}
	if baseURL != "" {
		opts = append(opts, provider.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, provider.WithAPIKey(apiKey))
	}
	return opts
}

func logEvent(ev bus.Event) {
	switch ev.Kind {
	case bus.EventEntry:
		if entry, ok := ev.Data.(types.EventEntry); ok {
			text, _ := entry.Data["text"].(string)
			xlog.Info("["+entry.Type+"]", "thought", entry.ThoughtNumber, "text", text)
		}
	case bus.EventStatus:
		if status, ok := ev.Data.(types.StatusData); ok {
			xlog.Debug("Status", "state", status.State, "thoughts", status.ThoughtCount)
		}
	case bus.EventActivity:
		if activity, ok := ev.Data.(types.ActivityData); ok && activity.Type != "idle" {
			xlog.Info("Activity", "type", activity.Type, "detail", activity.Detail)
		}
	case bus.EventPosition:
		if pos, ok := ev.Data.(types.Position); ok {
			xlog.Debug("Position", "x", pos.X, "y", pos.Y)
		}
	case bus.EventConversation:
		if conv, ok := ev.Data.(types.ConversationData); ok {
			xlog.Info("Conversation", "state", conv.State, "message", conv.Message)
		}
	case bus.EventAlert:
		xlog.Info("New files in the environment")
	case bus.EventFocusMode:
		if fm, ok := ev.Data.(types.FocusModeData); ok {
			xlog.Info("Focus mode", "enabled", fm.Enabled)
		}
	}
}
