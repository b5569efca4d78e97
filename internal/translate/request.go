// Package translate converts between the Anthropic Messages API shape
// and the OpenAI Chat Completions shape, per spec.md §4.H. It is engaged
// only when the selected upstream's dialect is "openai" — Anthropic
// dialect upstreams receive the client's request body unmodified (after
// rewrite.Rewrite).
//
// Grounded on the teacher's internal/extractor/{anthropic,openai}.go
// content-block shapes and internal/proxy/openai_responses_stream.go's
// per-call accumulator idiom, adapted from "extract tool calls for
// policy evaluation" to "losslessly convert between two wire dialects".
package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ctrlai/llmgate/internal/wire"
)

// ToOpenAIRequest converts an Anthropic request to the OpenAI Chat
// Completions shape, targeting upstreamModel.
func ToOpenAIRequest(req *wire.Request, upstreamModel string) (*wire.OpenAIRequest, error) {
	out := &wire.OpenAIRequest{
		Model:       upstreamModel,
		Stream:      req.Stream,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}

	if systemText := req.SystemText(); systemText != "" {
		content, _ := json.Marshal(systemText)
		out.Messages = append(out.Messages, wire.OpenAIMessage{Role: "system", Content: content})
	}

	for _, m := range req.Messages {
		converted, err := convertMessage(m)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, converted...)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, wire.OpenAITool{
			Type: "function",
			Function: wire.OpenAIFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	return out, nil
}

// convertMessage expands one Anthropic message into zero or more OpenAI
// messages: tool_use blocks become a single assistant message carrying
// tool_calls, tool_result blocks each become their own tool message, and
// ordinary text/image content collapses into one user/assistant message.
func convertMessage(m wire.Message) ([]wire.OpenAIMessage, error) {
	var out []wire.OpenAIMessage

	var toolCalls []wire.OpenAIToolCall
	var parts []wire.OpenAIContentPart
	var plainText strings.Builder

	flushText := func() {
		if plainText.Len() == 0 && len(parts) == 0 {
			return
		}
		if len(parts) == 0 {
			content, _ := json.Marshal(plainText.String())
			out = append(out, wire.OpenAIMessage{Role: m.Role, Content: content})
		} else {
			if plainText.Len() > 0 {
				parts = append(parts, wire.OpenAIContentPart{Type: "text", Text: plainText.String()})
			}
			content, _ := json.Marshal(parts)
			out = append(out, wire.OpenAIMessage{Role: m.Role, Content: content})
		}
		plainText.Reset()
		parts = nil
	}

	for _, b := range m.Content {
		switch b.Type {
		case "text":
			plainText.WriteString(b.Text)

		case "image":
			if b.Source == nil {
				continue
			}
			var url string
			switch b.Source.Type {
			case "base64":
				url = fmt.Sprintf("data:%s;base64,%s", b.Source.MediaType, b.Source.Data)
			case "url":
				url = b.Source.URL
			}
			if url == "" {
				continue
			}
			if plainText.Len() > 0 {
				parts = append(parts, wire.OpenAIContentPart{Type: "text", Text: plainText.String()})
				plainText.Reset()
			}
			parts = append(parts, wire.OpenAIContentPart{Type: "image_url", ImageURL: &wire.OpenAIImageURL{URL: url}})

		case "tool_use":
			argsJSON := b.Input
			if len(argsJSON) == 0 {
				argsJSON = json.RawMessage("{}")
			}
			// OpenAI's wire format wants arguments as a JSON-encoded string,
			// not a bare object, so re-encode the object as a quoted string.
			argsStr, err := json.Marshal(string(argsJSON))
			if err != nil {
				argsStr = []byte(`"{}"`)
			}
			toolCalls = append(toolCalls, wire.OpenAIToolCall{
				ID:   b.ID,
				Type: "function",
				Function: wire.OpenAIFunctionCall{
					Name:      b.Name,
					Arguments: json.RawMessage(argsStr),
				},
			})

		case "tool_result":
			flushText()
			content := toolResultText(b.Content)
			contentJSON, _ := json.Marshal(content)
			out = append(out, wire.OpenAIMessage{
				Role:       "tool",
				Content:    contentJSON,
				ToolCallID: b.ToolUseID,
			})

		case "thinking":
			// Extended-thinking content has no OpenAI analogue; dropped
			// rather than forwarded as visible text.
		}
	}

	flushText()

	if len(toolCalls) > 0 {
		out = append(out, wire.OpenAIMessage{Role: "assistant", ToolCalls: toolCalls})
	}

	return out, nil
}

// toolResultText renders a tool_result content field (string or
// content-block array, per the Anthropic API) down to plain text for
// OpenAI's string-only tool message content.
func toolResultText(raw json.RawMessage) string {
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
		var blocks []wire.ContentBlock
		if err := json.Unmarshal(raw, &blocks); err == nil {
			var sb strings.Builder
			for _, b := range blocks {
				if b.Type == "text" {
					sb.WriteString(b.Text)
				}
			}
			return sb.String()
		}
	}
	return string(raw)
}
