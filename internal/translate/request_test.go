package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrlai/llmgate/internal/wire"
)

func TestToOpenAIRequest_BasicMessages(t *testing.T) {
	req := &wire.Request{
		Model:     "claude-sonnet-4",
		MaxTokens: 1024,
		System:    []wire.ContentBlock{{Type: "text", Text: "Be concise."}},
		Messages: []wire.Message{
			{Role: "user", Content: []wire.ContentBlock{{Type: "text", Text: "hello"}}},
		},
	}

	out, err := ToOpenAIRequest(req, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", out.Model)
	require.Len(t, out.Messages, 2, "want system + user")
	assert.Equal(t, "system", out.Messages[0].Role)
}

func TestToOpenAIRequest_ToolUseBecomesAssistantToolCalls(t *testing.T) {
	req := &wire.Request{
		Model: "m",
		Messages: []wire.Message{
			{Role: "assistant", Content: []wire.ContentBlock{
				{Type: "tool_use", ID: "toolu_1", Name: "Read", Input: json.RawMessage(`{"path":"a.go"}`)},
			}},
			{Role: "user", Content: []wire.ContentBlock{
				{Type: "tool_result", ToolUseID: "toolu_1", Content: json.RawMessage(`"file contents"`)},
			}},
		},
	}

	out, err := ToOpenAIRequest(req, "gpt-4o")
	require.NoError(t, err)

	var sawToolCalls, sawToolMessage bool
	for _, m := range out.Messages {
		if len(m.ToolCalls) > 0 {
			sawToolCalls = true
			assert.Equal(t, "Read", m.ToolCalls[0].Function.Name)
		}
		if m.Role == "tool" {
			sawToolMessage = true
			assert.Equal(t, "toolu_1", m.ToolCallID)
		}
	}
	assert.True(t, sawToolCalls, "expected a tool_calls message")
	assert.True(t, sawToolMessage, "expected a tool message")
}

func TestToOpenAIRequest_ToolsWrapped(t *testing.T) {
	req := &wire.Request{
		Model: "m",
		Tools: []wire.Tool{{Name: "Read", Description: "reads a file", InputSchema: json.RawMessage(`{"type":"object"}`)}},
	}
	out, err := ToOpenAIRequest(req, "gpt-4o")
	require.NoError(t, err)
	require.Len(t, out.Tools, 1)
	assert.Equal(t, "function", out.Tools[0].Type)
	assert.Equal(t, "Read", out.Tools[0].Function.Name)
}

func TestRoundTrip_PreservesMessagesAndModelOverride(t *testing.T) {
	req := &wire.Request{
		Model: "claude-sonnet-4",
		Messages: []wire.Message{
			{Role: "user", Content: []wire.ContentBlock{{Type: "text", Text: "what is 2+2"}}},
		},
		Tools: []wire.Tool{{Name: "Calculator", Description: "adds numbers"}},
	}

	openaiReq, err := ToOpenAIRequest(req, "gpt-4o")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", openaiReq.Model, "expected forced model override")

	resp := &wire.OpenAIResponse{
		Choices: []wire.OpenAIChoice{{
			Message:      wire.OpenAIMessage{Role: "assistant", Content: json.RawMessage(`"4"`)},
			FinishReason: "stop",
		}},
	}
	anthResp, err := FromOpenAIResponse(resp, req.Model)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4", anthResp.Model, "client-facing model should be the original request's model")
	require.Len(t, anthResp.Content, 1)
	assert.Equal(t, "4", anthResp.Content[0].Text)
	assert.Equal(t, "end_turn", anthResp.StopReason)
}

func TestFromOpenAIResponse_ToolCallFinishReason(t *testing.T) {
	resp := &wire.OpenAIResponse{
		Choices: []wire.OpenAIChoice{{
			Message: wire.OpenAIMessage{
				Role: "assistant",
				ToolCalls: []wire.OpenAIToolCall{
					{ID: "call_1", Type: "function", Function: wire.OpenAIFunctionCall{Name: "Read", Arguments: json.RawMessage(`"{\"path\":\"a.go\"}"`)}},
				},
			},
			FinishReason: "tool_calls",
		}},
	}
	out, err := FromOpenAIResponse(resp, "claude-sonnet-4")
	require.NoError(t, err)
	assert.Equal(t, "tool_use", out.StopReason)
	require.Len(t, out.Content, 1)
	assert.Equal(t, "tool_use", out.Content[0].Type)
	assert.Equal(t, "Read", out.Content[0].Name)
	assert.JSONEq(t, `{"path":"a.go"}`, string(out.Content[0].Input))
}

// TestFromOpenAIResponse_ToolCallArgumentsAsObject covers the Zhipu/GLM
// quirk where arguments arrives as a direct JSON object rather than a
// JSON-encoded string.
func TestFromOpenAIResponse_ToolCallArgumentsAsObject(t *testing.T) {
	resp := &wire.OpenAIResponse{
		Choices: []wire.OpenAIChoice{{
			Message: wire.OpenAIMessage{
				Role: "assistant",
				ToolCalls: []wire.OpenAIToolCall{
					{ID: "call_1", Type: "function", Function: wire.OpenAIFunctionCall{Name: "Read", Arguments: json.RawMessage(`{"path":"a.go"}`)}},
				},
			},
			FinishReason: "tool_calls",
		}},
	}
	out, err := FromOpenAIResponse(resp, "claude-sonnet-4")
	require.NoError(t, err)
	require.Len(t, out.Content, 1)
	assert.Equal(t, "tool_use", out.Content[0].Type)
	assert.JSONEq(t, `{"path":"a.go"}`, string(out.Content[0].Input))
}

func TestFromOpenAIResponse_ToolCallEmptyArguments(t *testing.T) {
	resp := &wire.OpenAIResponse{
		Choices: []wire.OpenAIChoice{{
			Message: wire.OpenAIMessage{
				Role: "assistant",
				ToolCalls: []wire.OpenAIToolCall{
					{ID: "call_1", Type: "function", Function: wire.OpenAIFunctionCall{Name: "Read"}},
				},
			},
			FinishReason: "tool_calls",
		}},
	}
	out, err := FromOpenAIResponse(resp, "claude-sonnet-4")
	require.NoError(t, err)
	require.Len(t, out.Content, 1)
	assert.JSONEq(t, `{}`, string(out.Content[0].Input))
}
