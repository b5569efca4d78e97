// Package wire defines the JSON shapes exchanged on the two dialects this
// gateway speaks: the Anthropic Messages API (client-facing, always) and
// the OpenAI Chat Completions API (upstream-facing, when the selected
// upstream's dialect is "openai").
//
// Types here are intentionally permissive — unknown fields are dropped on
// marshal, not preserved — since every component that touches a request
// (classifier, rewriter, translator, mock builder) needs a normalized
// in-memory shape rather than raw bytes.
package wire

import (
	"encoding/json"
	"fmt"
)

// ContentBlock is a single block of an Anthropic message's content array.
// The Type field determines which other fields are populated, mirroring
// the teacher's extractor.anthropicContentBlock but carrying every block
// kind the gateway needs to read or synthesize (text, thinking, tool_use,
// tool_result, image).
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`

	// cache_control passthrough (prompt caching) — preserved but never
	// interpreted by the gateway.
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

// ImageSource is an Anthropic image content block's source.
type ImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Message is one turn in an Anthropic Messages API conversation.
// Content unmarshals from either a bare string (shorthand for a single
// text block) or a full content-block array, and remarshals in the
// array form — every downstream component works with ContentBlock
// slices uniformly.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UnmarshalJSON accepts content as either a JSON string or an array of
// content blocks, normalizing to a single-element text block in the
// string case.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = nil
	if len(raw.Content) == 0 {
		return nil
	}
	switch raw.Content[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw.Content, &text); err != nil {
			return fmt.Errorf("message content string: %w", err)
		}
		if text != "" {
			m.Content = []ContentBlock{{Type: "text", Text: text}}
		}
	case '[':
		if err := json.Unmarshal(raw.Content, &m.Content); err != nil {
			return fmt.Errorf("message content blocks: %w", err)
		}
	default:
		return fmt.Errorf("message content: unexpected JSON value")
	}
	return nil
}

// Text concatenates every text-typed content block in the message,
// ignoring tool_use/tool_result/thinking/image blocks. Used by the
// classifier and rewriter for pattern matching.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// ThinkingConfig controls extended-thinking behavior on the request.
type ThinkingConfig struct {
	Type         string `json:"type"` // "enabled" or "disabled"
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Tool is an Anthropic tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Request is a parsed Anthropic Messages API request body
// (POST /v1/messages).
type Request struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        []ContentBlock  `json:"-"`
	MaxTokens     int             `json:"max_tokens"`
	Stream        bool            `json:"stream,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	Thinking      *ThinkingConfig `json:"thinking,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// requestWire is the on-the-wire shape, used only for (un)marshaling —
// System is encoded as either a string or a content-block array
// depending on what was received, while the in-memory Request always
// normalizes to []ContentBlock.
type requestWire struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        json.RawMessage `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Stream        bool            `json:"stream,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	Thinking      *ThinkingConfig `json:"thinking,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// ParseRequest decodes a raw Anthropic Messages API request body.
func ParseRequest(body []byte) (*Request, error) {
	var raw requestWire
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing messages request: %w", err)
	}
	req := &Request{
		Model:         raw.Model,
		Messages:      raw.Messages,
		MaxTokens:     raw.MaxTokens,
		Stream:        raw.Stream,
		Temperature:   raw.Temperature,
		TopP:          raw.TopP,
		StopSequences: raw.StopSequences,
		Tools:         raw.Tools,
		Thinking:      raw.Thinking,
		Metadata:      raw.Metadata,
	}
	if len(raw.System) > 0 {
		system, err := parseSystem(raw.System)
		if err != nil {
			return nil, fmt.Errorf("parsing system prompt: %w", err)
		}
		req.System = system
	}
	return req, nil
}

// parseSystem accepts the "system" field as either a bare string or a
// content-block array (both are valid on the Anthropic API), normalizing
// to a content-block slice.
func parseSystem(raw json.RawMessage) ([]ContentBlock, error) {
	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
		if text == "" {
			return nil, nil
		}
		return []ContentBlock{{Type: "text", Text: text}}, nil
	case '[':
		var blocks []ContentBlock
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return nil, err
		}
		return blocks, nil
	default:
		return nil, fmt.Errorf("unexpected system field JSON value")
	}
}

// Marshal re-encodes the request to the Anthropic wire format.
func (r *Request) Marshal() ([]byte, error) {
	raw := requestWire{
		Model:         r.Model,
		Messages:      r.Messages,
		MaxTokens:     r.MaxTokens,
		Stream:        r.Stream,
		Temperature:   r.Temperature,
		TopP:          r.TopP,
		StopSequences: r.StopSequences,
		Tools:         r.Tools,
		Thinking:      r.Thinking,
		Metadata:      r.Metadata,
	}
	if len(r.System) > 0 {
		data, err := json.Marshal(r.System)
		if err != nil {
			return nil, err
		}
		raw.System = data
	}
	return json.Marshal(raw)
}

// SystemText concatenates the text of every system content block.
func (r *Request) SystemText() string {
	var out string
	for _, b := range r.System {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// FirstUserText returns the text of the first user-role message, or "".
func (r *Request) FirstUserText() string {
	for _, m := range r.Messages {
		if m.Role == "user" {
			return m.Text()
		}
	}
	return ""
}

// LastUserText returns the text of the last user-role message, or "".
func (r *Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Text()
		}
	}
	return ""
}

// Usage is the Anthropic token-accounting object attached to every
// non-streamed response and the terminal message_delta of a stream.
type Usage struct {
	InputTokens              int `json:"input_tokens,omitempty"`
	OutputTokens             int `json:"output_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
}

// Response is a non-streamed Anthropic Messages API response.
type Response struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   string         `json:"stop_reason,omitempty"`
	StopSequence *string        `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// ErrorBody is the Anthropic error envelope returned on 4xx/5xx.
type ErrorBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewErrorBody builds the Anthropic-shaped error envelope used for every
// locally-generated error response (spec.md §7).
func NewErrorBody(errType, message string) ErrorBody {
	eb := ErrorBody{Type: "error"}
	eb.Error.Type = errType
	eb.Error.Message = message
	return eb
}
