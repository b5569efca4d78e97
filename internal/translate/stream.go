package translate

import (
	"encoding/json"

	"github.com/ctrlai/llmgate/internal/wire"
	"github.com/google/uuid"
)

// blockKind tracks which Anthropic content-block shape is currently open
// on the outbound SSE stream.
type blockKind int

const (
	blockNone blockKind = iota
	blockText
	blockToolUse
)

// toolCallState accumulates one OpenAI delta-by-delta tool call until it
// closes, keyed by the delta's stream index (per spec.md §4.H and the
// teacher's openai_responses_stream.go call-id accumulator, generalized
// from call_id keying to index keying since Chat Completions deltas key
// tool calls by array index rather than a stable id).
type toolCallState struct {
	blockIndex int
	id         string
	name       string
	arguments  string
}

// StreamState is a per-upstream-stream translator: it consumes OpenAI
// Chat Completions SSE chunks and emits the equivalent Anthropic SSE
// event sequence. One StreamState exists per in-flight streamed request;
// it is not safe for concurrent use by multiple goroutines.
type StreamState struct {
	model string

	started        bool
	currentKind    blockKind
	currentIndex   int
	nextBlockIndex int

	openToolCalls map[int]*toolCallState

	finishReason string
	usage        *wire.OpenAIUsage
}

// NewStreamState creates a translator state machine for a stream that
// will echo model (the client-requested model, not the upstream's
// internal identifier) in its message_start event.
func NewStreamState(model string) *StreamState {
	return &StreamState{
		model:         model,
		openToolCalls: map[int]*toolCallState{},
	}
}

// Feed consumes one OpenAI SSE event and returns zero or more Anthropic
// SSE events to relay downstream. A "[DONE]" data payload or empty event
// produces no output — the terminal message_stop is emitted by Finish.
func (s *StreamState) Feed(evt wire.SSEEvent) ([]wire.SSEEvent, error) {
	if evt.Data == "" || evt.Data == "[DONE]" {
		return nil, nil
	}

	var chunk wire.OpenAIStreamChunk
	if err := json.Unmarshal([]byte(evt.Data), &chunk); err != nil {
		return nil, err
	}

	var out []wire.SSEEvent
	if !s.started {
		out = append(out, s.emitMessageStart())
		s.started = true
	}

	if chunk.Usage != nil {
		s.usage = chunk.Usage
	}
	if len(chunk.Choices) == 0 {
		return out, nil
	}
	choice := chunk.Choices[0]
	if choice.FinishReason != nil {
		s.finishReason = *choice.FinishReason
	}

	if choice.Delta.Content != "" {
		out = append(out, s.feedText(choice.Delta.Content)...)
	}
	for _, tc := range choice.Delta.ToolCalls {
		out = append(out, s.feedToolCall(tc)...)
	}

	return out, nil
}

func (s *StreamState) emitMessageStart() wire.SSEEvent {
	data, _ := json.Marshal(map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":          "msg_" + uuid.NewString(),
			"type":        "message",
			"role":        "assistant",
			"model":       s.model,
			"content":     []any{},
			"stop_reason": nil,
			"usage":       map[string]any{"input_tokens": 0, "output_tokens": 0},
		},
	})
	return wire.SSEEvent{Event: "message_start", Data: string(data)}
}

func (s *StreamState) feedText(text string) []wire.SSEEvent {
	var out []wire.SSEEvent
	if s.currentKind != blockText {
		out = append(out, s.closeCurrentBlock()...)
		s.currentKind = blockText
		s.currentIndex = s.nextBlockIndex
		s.nextBlockIndex++
		out = append(out, s.openBlock(s.currentIndex, map[string]any{"type": "text", "text": ""}))
	}
	data, _ := json.Marshal(map[string]any{
		"type":  "content_block_delta",
		"index": s.currentIndex,
		"delta": map[string]any{"type": "text_delta", "text": text},
	})
	out = append(out, wire.SSEEvent{Event: "content_block_delta", Data: string(data)})
	return out
}

func (s *StreamState) feedToolCall(delta wire.OpenAIToolCallDelta) []wire.SSEEvent {
	var out []wire.SSEEvent

	tcs, exists := s.openToolCalls[delta.Index]
	if !exists {
		out = append(out, s.closeCurrentBlock()...)
		s.currentKind = blockToolUse
		s.currentIndex = s.nextBlockIndex
		s.nextBlockIndex++

		tcs = &toolCallState{blockIndex: s.currentIndex}
		if delta.ID != "" {
			tcs.id = delta.ID
		}
		if delta.Function != nil {
			tcs.name = delta.Function.Name
		}
		s.openToolCalls[delta.Index] = tcs

		out = append(out, s.openBlock(tcs.blockIndex, map[string]any{
			"type": "tool_use",
			"id":   tcs.id,
			"name": tcs.name,
			"input": map[string]any{},
		}))
	}

	if delta.Function != nil && delta.Function.Arguments != "" {
		tcs.arguments += delta.Function.Arguments
		data, _ := json.Marshal(map[string]any{
			"type":  "content_block_delta",
			"index": tcs.blockIndex,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": delta.Function.Arguments},
		})
		out = append(out, wire.SSEEvent{Event: "content_block_delta", Data: string(data)})
	}

	return out
}

func (s *StreamState) openBlock(index int, block map[string]any) wire.SSEEvent {
	data, _ := json.Marshal(map[string]any{
		"type":          "content_block_start",
		"index":         index,
		"content_block": block,
	})
	return wire.SSEEvent{Event: "content_block_start", Data: string(data)}
}

func (s *StreamState) closeCurrentBlock() []wire.SSEEvent {
	if s.currentKind == blockNone {
		return nil
	}
	data, _ := json.Marshal(map[string]any{
		"type":  "content_block_stop",
		"index": s.currentIndex,
	})
	s.currentKind = blockNone
	return []wire.SSEEvent{{Event: "content_block_stop", Data: string(data)}}
}

// Finish closes any open content block and emits the terminal
// message_delta and message_stop events. Must be called exactly once,
// after the upstream stream is exhausted.
func (s *StreamState) Finish() []wire.SSEEvent {
	var out []wire.SSEEvent
	if !s.started {
		out = append(out, s.emitMessageStart())
	}
	out = append(out, s.closeCurrentBlock()...)

	usage := map[string]any{"output_tokens": 0}
	if s.usage != nil {
		usage["output_tokens"] = s.usage.CompletionTokens
	}

	stopReason := stopReasonFromOpenAI(s.finishReason)
	deltaData, _ := json.Marshal(map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": stopReason},
		"usage": usage,
	})
	out = append(out, wire.SSEEvent{Event: "message_delta", Data: string(deltaData)})

	stopData, _ := json.Marshal(map[string]any{"type": "message_stop"})
	out = append(out, wire.SSEEvent{Event: "message_stop", Data: string(stopData)})

	return out
}

// Usage reports the accumulated token counts observed in the upstream
// stream's terminal usage object, for the stats registry.
func (s *StreamState) Usage() wire.Usage {
	if s.usage == nil {
		return wire.Usage{}
	}
	u := wire.Usage{
		InputTokens:  s.usage.PromptTokens,
		OutputTokens: s.usage.CompletionTokens,
	}
	if s.usage.PromptTokensDetails != nil {
		u.CacheReadInputTokens = s.usage.PromptTokensDetails.CachedTokens
	}
	return u
}
