package types

// The model emits loosely-typed argument payloads keyed by tool name. They
// are decoded here into a closed set of known invocation kinds so tool
// handlers work with explicit fields instead of raw maps. Tools the model
// invents fall into UnknownInvocation and get a textual stub back.

// Invocation is a parsed tool call. Implementations are the closed set of
// tool kinds the agent understands.
type Invocation interface {
	isInvocation()
}

type ShellInvocation struct {
	Command string `json:"command"`
}

type RespondInvocation struct {
	Message string `json:"message"`
}

type FetchURLInvocation struct {
	URL string `json:"url"`
}

type MoveInvocation struct {
	Location string `json:"location"`
}

type WebSearchInvocation struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type WebFetchInvocation struct {
	URL string `json:"url"`
}

// UnknownInvocation carries the name of a tool the agent does not implement.
type UnknownInvocation struct {
	Name string
}

func (ShellInvocation) isInvocation()     {}
func (RespondInvocation) isInvocation()   {}
func (FetchURLInvocation) isInvocation()  {}
func (MoveInvocation) isInvocation()      {}
func (WebSearchInvocation) isInvocation() {}
func (WebFetchInvocation) isInvocation()  {}
func (UnknownInvocation) isInvocation()   {}

// ParseToolCall maps a raw tool call onto the closed invocation union.
// Missing or mistyped fields decode to zero values; handlers report those
// as ordinary tool output, never as errors.
func (tc ToolCall) ParseToolCall() Invocation {
	switch tc.Name {
	case "shell":
		var inv ShellInvocation
		tc.Arguments.Unmarshal(&inv)
		return inv
	case "respond":
		var inv RespondInvocation
		tc.Arguments.Unmarshal(&inv)
		return inv
	case "fetch_url":
		var inv FetchURLInvocation
		tc.Arguments.Unmarshal(&inv)
		return inv
	case "move":
		var inv MoveInvocation
		tc.Arguments.Unmarshal(&inv)
		return inv
	case "web_search":
		inv := WebSearchInvocation{MaxResults: 5}
		tc.Arguments.Unmarshal(&inv)
		return inv
	case "web_fetch":
		var inv WebFetchInvocation
		tc.Arguments.Unmarshal(&inv)
		return inv
	default:
		return UnknownInvocation{Name: tc.Name}
	}
}
