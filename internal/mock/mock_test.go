package mock

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrlai/llmgate/internal/classify"
	"github.com/ctrlai/llmgate/internal/wire"
)

func TestBuild_QuotaProbe(t *testing.T) {
	req := &wire.Request{Model: "claude-sonnet-4", MaxTokens: 1}
	resp := Build(classify.Result{Tag: classify.TagQuotaProbe}, req)

	assert.Equal(t, "claude-sonnet-4", resp.Model, "model not echoed")
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "ok", resp.Content[0].Text)
}

func TestBuild_FilepathExtraction(t *testing.T) {
	res := classify.Result{
		Tag:                      classify.TagFilepathExtraction,
		FilepathExtractionSource: "found matches in ./internal/wire/anthropic.go and cmd/gateway/main.go",
	}
	resp := Build(res, &wire.Request{Model: "m"})

	var paths []string
	require.NoError(t, json.Unmarshal([]byte(resp.Content[0].Text), &paths), "content is not a JSON array")
	assert.NotEmpty(t, paths, "expected at least one extracted path")
}

func TestBuild_FilepathExtraction_NoMatches(t *testing.T) {
	res := classify.Result{Tag: classify.TagFilepathExtraction, FilepathExtractionSource: "nothing to see here"}
	resp := Build(res, &wire.Request{Model: "m"})

	var paths []string
	require.NoError(t, json.Unmarshal([]byte(resp.Content[0].Text), &paths), "content is not a JSON array")
	assert.Empty(t, paths)
}

func TestBuildStream_EventSequence(t *testing.T) {
	req := &wire.Request{Model: "m", Stream: true}
	events := BuildStream(classify.Result{Tag: classify.TagQuotaProbe}, req)

	want := []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}
	require.Len(t, events, len(want))
	for i, evt := range events {
		assert.Equal(t, want[i], evt.Event, "event %d", i)
	}
}

func TestBuildStream_ParsesUnderSSEReader(t *testing.T) {
	events := BuildStream(classify.Result{Tag: classify.TagTitleGeneration}, &wire.Request{Model: "m"})

	var buf strings.Builder
	for _, evt := range events {
		_, err := evt.WriteTo(&buf)
		require.NoError(t, err)
	}

	parsed, err := wire.ParseSSEStream(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, parsed, len(events))

	var delta struct {
		Delta struct {
			Text string `json:"text"`
		} `json:"delta"`
	}
	require.NoError(t, json.Unmarshal([]byte(parsed[2].Data), &delta))
	assert.Equal(t, "Untitled", delta.Delta.Text, "reconstructed text")
}

func TestBuild_SuggestionModeEmpty(t *testing.T) {
	resp := Build(classify.Result{Tag: classify.TagSuggestionMode}, &wire.Request{Model: "m"})
	assert.Empty(t, resp.Content[0].Text)
}
