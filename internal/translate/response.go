package translate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ctrlai/llmgate/internal/wire"
	"github.com/google/uuid"
)

// stopReasonFromOpenAI maps an OpenAI finish_reason to the Anthropic
// stop_reason vocabulary, per spec.md §4.H.
func stopReasonFromOpenAI(reason string) string {
	switch reason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "tool_calls":
		return "tool_use"
	case "content_filter":
		return "end_turn"
	default:
		return "end_turn"
	}
}

// FromOpenAIResponse converts a non-streamed OpenAI Chat Completions
// response into the Anthropic Messages API shape, echoing model from the
// original client request (the upstream's response may carry its own
// internal model identifier, which the client never sees).
func FromOpenAIResponse(resp *wire.OpenAIResponse, clientModel string) (*wire.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}
	choice := resp.Choices[0]

	out := &wire.Response{
		ID:    "msg_" + uuid.NewString(),
		Type:  "message",
		Role:  "assistant",
		Model: clientModel,
	}

	if text := messageText(choice.Message.Content); text != "" {
		out.Content = append(out.Content, wire.ContentBlock{Type: "text", Text: text})
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Content = append(out.Content, wire.ContentBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: parseToolArguments(tc.Function.Arguments),
		})
	}

	out.StopReason = stopReasonFromOpenAI(choice.FinishReason)

	if resp.Usage != nil {
		out.Usage = wire.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		if resp.Usage.PromptTokensDetails != nil {
			out.Usage.CacheReadInputTokens = resp.Usage.PromptTokensDetails.CachedTokens
		}
	}

	return out, nil
}

// parseToolArguments normalizes an OpenAI tool_calls[].function.arguments
// field into Anthropic's tool_use.input shape (a bare JSON object). The
// field is normally a JSON string containing JSON ("{\"path\":\"a.go\"}"),
// but Zhipu/GLM sometimes emits it as a direct JSON object instead. Grounded
// on the teacher's extractor.parseToolArguments, which branches on the
// first non-whitespace byte to tell the two shapes apart.
func parseToolArguments(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage("{}")
	}

	switch trimmed[0] {
	case '"':
		var argsStr string
		if err := json.Unmarshal(trimmed, &argsStr); err != nil {
			return json.RawMessage("{}")
		}
		if argsStr == "" {
			return json.RawMessage("{}")
		}
		if !json.Valid([]byte(argsStr)) {
			return json.RawMessage("{}")
		}
		return json.RawMessage(argsStr)
	case '{':
		// Zhipu/GLM quirk: arguments is already a direct JSON object.
		return trimmed
	default:
		return json.RawMessage("{}")
	}
}

// messageText extracts the plain-text rendering of an OpenAI message's
// content field, which may be a bare string or a content-part array.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '[':
		var parts []wire.OpenAIContentPart
		if err := json.Unmarshal(raw, &parts); err == nil {
			var out string
			for _, p := range parts {
				if p.Type == "text" {
					out += p.Text
				}
			}
			return out
		}
	}
	return ""
}
