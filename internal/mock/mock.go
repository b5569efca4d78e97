// Package mock synthesizes protocol-faithful Anthropic Messages API
// replies for requests the classifier has tagged for local interception,
// per spec.md §4.F. The builder is pure in (tag, request): it never
// contacts an upstream and never mutates request state.
//
// Event construction is grounded on the teacher's
// internal/proxy/sse_writer.go buildTextBlockEvents — the same
// start/delta/stop triple per text block, generalized from "a block
// notice injected into a real stream" to "the entire body of a
// synthesized stream".
package mock

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/ctrlai/llmgate/internal/classify"
	"github.com/ctrlai/llmgate/internal/wire"
	"github.com/google/uuid"
)

// tagReplyText returns the fixed or derived text payload for tag.
// filepath_extraction returns a JSON array instead of plain text; the
// caller distinguishes via the tag.
func tagReplyText(res classify.Result) string {
	switch res.Tag {
	case classify.TagQuotaProbe:
		return "ok"
	case classify.TagTitleGeneration:
		return "Untitled"
	case classify.TagSuggestionMode:
		return ""
	case classify.TagHistoricalAnalysis:
		return "No notable changes since the last summary."
	case classify.TagFilepathExtraction:
		paths := extractFilePaths(res.FilepathExtractionSource)
		data, _ := json.Marshal(paths)
		return string(data)
	case classify.TagFastPrefix:
		return res.FastPrefixCommand
	default:
		return ""
	}
}

// filePathPattern recognizes a plausible relative or absolute file path
// token: at least one path separator or a file extension, no whitespace.
var filePathPattern = regexp.MustCompile(`(?:[\w-]*[./][\w./-]*\w|\b\w[\w-]*\.[A-Za-z][\w]{1,5}\b)`)

// extractFilePaths scans text for path-shaped tokens, per spec.md §4.F's
// "simple regex over the supplied command output".
func extractFilePaths(text string) []string {
	matches := filePathPattern.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// estimatedInputTokens gives a naive length/4 estimate of the tokens the
// request would have consumed upstream, per spec.md §4.F: the mock does
// not hit an upstream, so there is no real count to report, but stats
// should still see a plausible input side.
func estimatedInputTokens(req *wire.Request) int {
	n := len(req.SystemText())
	for _, m := range req.Messages {
		n += len(m.Text())
	}
	return n / 4
}

// Build produces a non-streamed Anthropic Messages API response for a
// tagged request.
func Build(res classify.Result, req *wire.Request) *wire.Response {
	text := tagReplyText(res)
	return &wire.Response{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       "assistant",
		Model:      req.Model,
		Content:    []wire.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage: wire.Usage{
			InputTokens:  estimatedInputTokens(req),
			OutputTokens: len(text) / 4,
		},
	}
}

// BuildStream produces the canonical Anthropic SSE event sequence for a
// tagged request: message_start, content_block_start, one or more
// content_block_delta, content_block_stop, message_delta, message_stop.
func BuildStream(res classify.Result, req *wire.Request) []wire.SSEEvent {
	text := tagReplyText(res)
	id := "msg_" + uuid.NewString()
	inputTokens := estimatedInputTokens(req)
	outputTokens := len(text) / 4

	start, _ := json.Marshal(map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            id,
			"type":          "message",
			"role":          "assistant",
			"model":         req.Model,
			"content":       []any{},
			"stop_reason":   nil,
			"usage":         map[string]any{"input_tokens": inputTokens, "output_tokens": 0},
		},
	})

	blockStart, _ := json.Marshal(map[string]any{
		"type":          "content_block_start",
		"index":         0,
		"content_block": map[string]any{"type": "text", "text": ""},
	})

	delta, _ := json.Marshal(map[string]any{
		"type":  "content_block_delta",
		"index": 0,
		"delta": map[string]any{"type": "text_delta", "text": text},
	})

	blockStop, _ := json.Marshal(map[string]any{
		"type":  "content_block_stop",
		"index": 0,
	})

	msgDelta, _ := json.Marshal(map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": "end_turn"},
		"usage": map[string]any{"output_tokens": outputTokens},
	})

	msgStop, _ := json.Marshal(map[string]any{"type": "message_stop"})

	return []wire.SSEEvent{
		{Event: "message_start", Data: string(start)},
		{Event: "content_block_start", Data: string(blockStart)},
		{Event: "content_block_delta", Data: string(delta)},
		{Event: "content_block_stop", Data: string(blockStop)},
		{Event: "message_delta", Data: string(msgDelta)},
		{Event: "message_stop", Data: string(msgStop)},
	}
}

// ErrorForInvalidRequest builds the 400 body for a malformed client
// request, per spec.md §7.
func ErrorForInvalidRequest(reason string) wire.ErrorBody {
	return wire.NewErrorBody("invalid_request_error", fmt.Sprintf("invalid request: %s", reason))
}
