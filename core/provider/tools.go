package provider

import (
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/SargassoLLC/anemone/core/types"
)

// ToolDef declares one tool once; each backend renders it into its own wire
// shape.
type ToolDef struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// ToResponsesItem renders the flat function item the structured backend
// expects.
func (d ToolDef) ToResponsesItem() types.Item {
	return types.Item{
		"type":        "function",
		"name":        d.Name,
		"description": d.Description,
		"parameters":  d.Parameters,
	}
}

// ToOpenAITool renders the nested form of the conversational backend.
func (d ToolDef) ToOpenAITool() openai.Tool {
	params := d.Parameters
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		},
	}
}

// ToolDefinitions lists the tools offered to the model on every reasoning
// call that allows them.
func ToolDefinitions() []ToolDef {
	return []ToolDef{
		{
			Name:        "shell",
			Description: "Run a shell command inside your environment folder. You can use ls, cat, mkdir, mv, cp, touch, echo, tee, find, grep, head, tail, wc, etc. You can also run Python scripts: 'python script.py' or 'python -c \"code\"'. Use 'cat > file.txt << EOF' or 'echo ... > file.txt' to write files. Create folders with mkdir. Organize however you like. All paths are relative to your environment root.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"command": {
						Type:        jsonschema.String,
						Description: "The shell command to run",
					},
				},
				Required: []string{"command"},
			},
		},
		{
			Name:        "respond",
			Description: "Talk to your owner! Use this whenever you hear their voice and want to reply. After you speak, they might say something back — if they do, use respond AGAIN to keep the conversation going. You can go back and forth as many times as you like.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"message": {
						Type:        jsonschema.String,
						Description: "What you say back to them",
					},
				},
				Required: []string{"message"},
			},
		},
		{
			Name:        "fetch_url",
			Description: "Fetch the content of a web page. Use this for research when you need to read an article, documentation, or any URL. Returns the page content as text. Only http and https URLs are allowed.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"url": {
						Type:        jsonschema.String,
						Description: "The URL to fetch (must start with http:// or https://)",
					},
				},
				Required: []string{"url"},
			},
		},
		{
			Name:        "move",
			Description: "Move to a location in your room. Use this to go where feels natural for what you're doing — desk for writing, bookshelf for research, window for pondering, bed for resting.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"location": {
						Type: jsonschema.String,
						Enum: types.LocationNames,
					},
				},
				Required: []string{"location"},
			},
		},
		{
			Name:        "web_search",
			Description: "Search the web for current information. Use for research, fact-checking, or finding recent news. Returns titles, URLs, and content snippets.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {
						Type:        jsonschema.String,
						Description: "Search query",
					},
					"max_results": {
						Type:        jsonschema.Integer,
						Description: "Max results to return (default 5, max 10)",
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "web_fetch",
			Description: "Fetch the full content of a specific URL. Use after web_search to read a page in detail. Returns page title and content.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"url": {
						Type:        jsonschema.String,
						Description: "URL to fetch (e.g. https://...)",
					},
				},
				Required: []string{"url"},
			},
		},
	}
}
