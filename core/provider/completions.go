package provider

import (
	"context"
	"fmt"

	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"

	"github.com/SargassoLLC/anemone/core/types"
)

// maxToolContent caps tool output forwarded to conversational backends.
const maxToolContent = 16000

const truncationMarker = "\n...(truncated)"

func (c *Client) chatCompletions(ctx context.Context, input []types.Item, useTools bool, instructions string, maxTokens int) (*types.LlmResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  translateInput(input, instructions),
		MaxTokens: maxTokens,
	}
	if useTools {
		for _, d := range ToolDefinitions() {
			req.Tools = append(req.Tools, d.ToOpenAITool())
		}
	}

	xlog.Debug("chat completions request", "model", c.model, "provider", c.provider, "messages", len(req.Messages))

	var resp openai.ChatCompletionResponse
	err := c.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.oai.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("backend returned no choices")
	}

	return normalizeCompletionsMessage(resp.Choices[0].Message), nil
}

// translateInput converts the ordered item list into role-tagged messages.
// Tool outputs become backend-native tool-result messages; multimodal
// content parts are mapped onto the backend's part types.
func translateInput(input []types.Item, instructions string) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage

	if instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}

	for _, item := range input {
		if item["type"] == "function_call_output" {
			content, _ := item["output"].(string)
			if len(content) > maxToolContent {
				content = content[:maxToolContent] + truncationMarker
			}
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleTool,
				Content: content,
			}
			if callID, ok := item["call_id"].(string); ok {
				msg.ToolCallID = callID
			}
			messages = append(messages, msg)
			continue
		}

		role, ok := item["role"].(string)
		if !ok {
			// Raw structured-protocol items with no role have no
			// conversational equivalent.
			continue
		}

		msg := openai.ChatCompletionMessage{Role: role}
		switch content := item["content"].(type) {
		case string:
			msg.Content = content
		case []any:
			msg.MultiContent = translateMultimodal(content)
		}
		if calls, ok := item["tool_calls"].([]any); ok {
			msg.ToolCalls = translateReplayedToolCalls(calls)
		}
		messages = append(messages, msg)
	}

	return messages
}

func translateMultimodal(parts []any) []openai.ChatMessagePart {
	var out []openai.ChatMessagePart
	for _, raw := range parts {
		part, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch part["type"] {
		case "input_image":
			url, _ := part["image_url"].(string)
			out = append(out, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url},
			})
		case "input_text":
			text, _ := part["text"].(string)
			out = append(out, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: text,
			})
		}
	}
	return out
}

// translateReplayedToolCalls rebuilds assistant tool calls from a replayed
// output item so follow-up turns keep the call IDs the backend expects.
func translateReplayedToolCalls(calls []any) []openai.ToolCall {
	var out []openai.ToolCall
	for _, raw := range calls {
		call, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fn, _ := call["function"].(map[string]any)
		name, _ := fn["name"].(string)
		args, _ := fn["arguments"].(string)
		id, _ := call["id"].(string)
		out = append(out, openai.ToolCall{
			ID:   id,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		})
	}
	return out
}

// normalizeCompletionsMessage maps a completions reply onto the shared
// response shape, synthesizing call IDs when the backend omits them and
// keeping a replayable assistant item in Output.
func normalizeCompletionsMessage(msg openai.ChatCompletionMessage) *types.LlmResponse {
	resp := &types.LlmResponse{Text: msg.Content}

	if len(msg.ToolCalls) == 0 {
		return resp
	}

	replayCalls := make([]any, 0, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		callID := tc.ID
		if callID == "" {
			callID = fmt.Sprintf("call_%s_%d", tc.Function.Name, i)
		}

		params := types.ActionParams{}
		if err := params.Read(tc.Function.Arguments); err != nil {
			xlog.Warn("Malformed tool arguments, using empty params", "tool", tc.Function.Name, "error", err)
			params = types.ActionParams{}
		}

		resp.ToolCalls = append(resp.ToolCalls, types.ToolCall{
			Name:      tc.Function.Name,
			Arguments: params,
			CallID:    callID,
		})
		replayCalls = append(replayCalls, map[string]any{
			"id":   callID,
			"type": "function",
			"function": map[string]any{
				"name":      tc.Function.Name,
				"arguments": tc.Function.Arguments,
			},
		})
	}

	resp.Output = []types.Item{{
		"role":       "assistant",
		"content":    msg.Content,
		"tool_calls": replayCalls,
	}}

	return resp
}
