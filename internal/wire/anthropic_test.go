package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest_StringSystemAndContent(t *testing.T) {
	body := `{
		"model": "claude-sonnet-4",
		"max_tokens": 100,
		"system": "Be concise.",
		"messages": [{"role": "user", "content": "hello"}]
	}`
	req, err := ParseRequest([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4", req.Model)
	require.Len(t, req.System, 1)
	assert.Equal(t, "Be concise.", req.System[0].Text)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "hello", req.Messages[0].Text())
}

func TestParseRequest_ArraySystemAndContent(t *testing.T) {
	body := `{
		"model": "m",
		"max_tokens": 1,
		"system": [{"type": "text", "text": "one"}, {"type": "text", "text": "two"}],
		"messages": [{"role": "user", "content": [{"type": "text", "text": "hi"}]}]
	}`
	req, err := ParseRequest([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "onetwo", req.SystemText())
}

func TestParseRequest_EmptySystemOmitted(t *testing.T) {
	req, err := ParseRequest([]byte(`{"model":"m","max_tokens":1,"messages":[]}`))
	require.NoError(t, err)
	assert.Empty(t, req.System)
}

func TestParseRequest_InvalidJSON(t *testing.T) {
	_, err := ParseRequest([]byte(`not json`))
	assert.Error(t, err)
}

func TestRequest_MarshalRoundTrip(t *testing.T) {
	req := &Request{
		Model:     "claude-sonnet-4",
		MaxTokens: 100,
		System:    []ContentBlock{{Type: "text", Text: "Be concise."}},
		Messages: []Message{
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: "hello"}}},
		},
	}
	data, err := req.Marshal()
	require.NoError(t, err)

	back, err := ParseRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req.Model, back.Model)
	assert.Equal(t, req.SystemText(), back.SystemText())
	assert.Equal(t, req.Messages[0].Text(), back.Messages[0].Text())
}

func TestRequest_FirstAndLastUserText(t *testing.T) {
	req := &Request{
		Messages: []Message{
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: "first"}}},
			{Role: "assistant", Content: []ContentBlock{{Type: "text", Text: "reply"}}},
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: "last"}}},
		},
	}
	assert.Equal(t, "first", req.FirstUserText())
	assert.Equal(t, "last", req.LastUserText())
}

func TestRequest_LastUserText_NoUserMessages(t *testing.T) {
	req := &Request{Messages: []Message{{Role: "assistant", Content: []ContentBlock{{Type: "text", Text: "x"}}}}}
	assert.Empty(t, req.LastUserText())
}

func TestMessage_TextIgnoresNonTextBlocks(t *testing.T) {
	m := Message{Content: []ContentBlock{
		{Type: "tool_use", Name: "Read"},
		{Type: "text", Text: "hello "},
		{Type: "text", Text: "world"},
	}}
	assert.Equal(t, "hello world", m.Text())
}

func TestNewErrorBody(t *testing.T) {
	eb := NewErrorBody("invalid_request_error", "bad request")
	assert.Equal(t, "error", eb.Type)
	assert.Equal(t, "invalid_request_error", eb.Error.Type)
	assert.Equal(t, "bad request", eb.Error.Message)
}
