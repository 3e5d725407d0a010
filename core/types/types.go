package types

import (
	"encoding/json"
	"time"
)

// BrainState is the scheduling state of a single agent. Exactly one state is
// active at any instant and only the brain loop mutates it.
type BrainState string

const (
	StateIdle       BrainState = "idle"
	StateThinking   BrainState = "thinking"
	StateReflecting BrainState = "reflecting"
	StatePlanning   BrainState = "planning"
)

func (s BrainState) String() string { return string(s) }

// Traits describe an agent's fixed disposition. Derivation of traits from a
// genome happens outside this module; we only carry the record around.
type Traits struct {
	Domains        []string `json:"domains"`
	ThinkingStyles []string `json:"thinking_styles"`
	Temperament    string   `json:"temperament"`
}

// Identity is the immutable post-creation record of who an agent is.
type Identity struct {
	Name   string `json:"name"`
	Genome string `json:"genome"`
	Traits Traits `json:"traits"`
	Born   string `json:"born"`
}

// Memory is one entry in the append-only memory ledger. Entries are never
// mutated after Add.
type Memory struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	Content    string    `json:"content"`
	Importance int       `json:"importance"`
	Depth      int       `json:"depth"`
	References []string  `json:"references"`
	Embedding  []float64 `json:"embedding,omitempty"`
}

// Item is one entry of a provider input or output list. The structured
// backend consumes items verbatim; the conversational backend translates
// them into role-tagged messages.
type Item map[string]any

// ActionParams holds the loosely-typed arguments of a single tool call.
type ActionParams map[string]any

// Read parses a JSON argument string in place.
func (ap ActionParams) Read(s string) error {
	return json.Unmarshal([]byte(s), &ap)
}

func (ap ActionParams) String() string {
	b, _ := json.Marshal(ap)
	return string(b)
}

// Unmarshal round-trips the params into a typed argument struct.
func (ap ActionParams) Unmarshal(v any) error {
	b, err := json.Marshal(ap)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ToolCall is one model-issued tool invocation.
type ToolCall struct {
	Name      string       `json:"name"`
	Arguments ActionParams `json:"arguments"`
	CallID    string       `json:"call_id"`
}

// LlmResponse is the provider-independent form of a reasoning reply.
// Output keeps the backend's raw items so they can be replayed into the
// next request of the tool loop.
type LlmResponse struct {
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls"`
	Output    []Item     `json:"output"`
}

// EventEntry is one record of the append-only transcript.
type EventEntry struct {
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	ThoughtNumber int       `json:"thought_number"`
	Data          Item      `json:"data"`
}

// ApiCallRecord is a raw request/response audit pair.
type ApiCallRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Instructions string    `json:"instructions"`
	Input        []Item    `json:"input"`
	Output       []Item    `json:"output"`
	IsReflection bool      `json:"is_dream"`
	IsPlanning   bool      `json:"is_planning"`
}

// Position is a grid coordinate inside the agent's room.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// StatusData accompanies a status event.
type StatusData struct {
	State        BrainState `json:"state"`
	ThoughtCount int        `json:"thought_count"`
}

// ActivityData is the human-readable current action of an agent.
type ActivityData struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// ConversationData accompanies conversation events ("waiting" and "ended").
type ConversationData struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// FocusModeData accompanies a focus_mode event.
type FocusModeData struct {
	Enabled bool `json:"enabled"`
}

// NewFileInfo describes a file that appeared in the confined root since the
// last scan, for the inbox override.
type NewFileInfo struct {
	Name    string
	Content string
	Image   string // data URL, set for recognized image types
}

// AgentInfo is a listing summary for external drivers.
type AgentInfo struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	State        BrainState `json:"state"`
	ThoughtCount int        `json:"thought_count"`
}

// Room geometry. The room is a fixed 12x12 tile grid; named locations map
// to walkable tiles.

const (
	RoomCols = 12
	RoomRows = 12
)

var roomLocations = map[string]Position{
	"desk":      {X: 10, Y: 1},
	"bookshelf": {X: 1, Y: 2},
	"window":    {X: 4, Y: 0},
	"plant":     {X: 0, Y: 8},
	"bed":       {X: 3, Y: 10},
	"rug":       {X: 5, Y: 5},
	"center":    {X: 5, Y: 5},
}

// LocationNames is the enum accepted by the move tool.
var LocationNames = []string{"desk", "bookshelf", "window", "plant", "bed", "rug", "center"}

// RoomLocation resolves a named location to its tile.
func RoomLocation(name string) (Position, bool) {
	p, ok := roomLocations[name]
	return p, ok
}
