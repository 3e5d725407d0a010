package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mudler/xlog"

	"github.com/SargassoLLC/anemone/core/types"
)

// The structured protocol takes explicit instructions plus an ordered input
// item list and returns explicit function-call items. go-openai has no
// bindings for it, so the request is assembled by hand.

func (c *Client) chatResponses(ctx context.Context, input []types.Item, useTools bool, instructions string, maxTokens int) (*types.LlmResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key required for the %s provider", c.provider)
	}

	body := map[string]any{
		"model":             c.model,
		"input":             input,
		"max_output_tokens": maxTokens,
	}
	if instructions != "" {
		body["instructions"] = instructions
	}
	if useTools {
		items := []types.Item{}
		for _, d := range ToolDefinitions() {
			items = append(items, d.ToResponsesItem())
		}
		body["tools"] = items
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/responses"

	var resp *types.LlmResponse
	err := c.retry.Do(ctx, func() error {
		data, err := c.post(ctx, url, body)
		if err != nil {
			return err
		}
		resp = normalizeResponsesOutput(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, url string, body any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		xlog.Error("Backend HTTP error", "status", res.StatusCode, "url", url)
		return nil, &APIError{StatusCode: res.StatusCode, Body: string(raw)}
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing response body: %w", err)
	}
	return data, nil
}

// normalizeResponsesOutput converts raw output items into an LlmResponse.
// Per-call argument JSON that fails to parse degrades to empty params.
func normalizeResponsesOutput(data map[string]any) *types.LlmResponse {
	rawItems, _ := data["output"].([]any)

	var textParts []string
	var toolCalls []types.ToolCall
	output := make([]types.Item, 0, len(rawItems))

	for _, raw := range rawItems {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		output = append(output, types.Item(item))

		switch item["type"] {
		case "message":
			content, _ := item["content"].([]any)
			for _, part := range content {
				p, ok := part.(map[string]any)
				if !ok {
					continue
				}
				if text, ok := p["text"].(string); ok && text != "" {
					textParts = append(textParts, text)
				}
			}
		case "function_call":
			name, _ := item["name"].(string)
			callID, _ := item["call_id"].(string)
			params := types.ActionParams{}
			if args, ok := item["arguments"].(string); ok {
				if err := params.Read(args); err != nil {
					xlog.Warn("Malformed tool arguments, using empty params", "tool", name, "error", err)
					params = types.ActionParams{}
				}
			}
			toolCalls = append(toolCalls, types.ToolCall{Name: name, Arguments: params, CallID: callID})
		}
	}

	return &types.LlmResponse{
		Text:      strings.Join(textParts, "\n"),
		ToolCalls: toolCalls,
		Output:    output,
	}
}
