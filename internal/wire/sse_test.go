package wire

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEEvent_WriteTo_OmitsEmptyEventLine(t *testing.T) {
	var buf strings.Builder
	_, err := SSEEvent{Data: `{"a":1}`}.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"a\":1}\n\n", buf.String())
}

func TestSSEEvent_WriteTo_IncludesEventLine(t *testing.T) {
	var buf strings.Builder
	_, err := SSEEvent{Event: "message_stop", Data: "{}"}.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "event: message_stop\ndata: {}\n\n", buf.String())
}

func TestParseSSEStream_DropsPingsAndStopsAtMessageStop(t *testing.T) {
	raw := "event: ping\ndata: {}\n\n" +
		"event: content_block_delta\ndata: {\"text\":\"hi\"}\n\n" +
		"event: message_stop\ndata: {}\n\n" +
		"event: content_block_delta\ndata: {\"text\":\"unreachable\"}\n\n"

	events, err := ParseSSEStream(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "content_block_delta", events[0].Event)
	assert.Equal(t, "message_stop", events[1].Event)
}

func TestParseSSEStream_StopsAtDoneSentinel(t *testing.T) {
	raw := "data: {\"a\":1}\n\n" + "data: [DONE]\n\n" + "data: {\"a\":2}\n\n"
	events, err := ParseSSEStream(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "[DONE]", events[1].Data)
}

func TestSSEReader_NextReturnsEOFAfterTerminalEvent(t *testing.T) {
	raw := "event: message_start\ndata: {}\n\n" + "event: message_stop\ndata: {}\n\n"
	r := NewSSEReader(strings.NewReader(raw))

	evt, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "message_start", evt.Event)

	evt, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "message_stop", evt.Event)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSEReader_SkipsPingEvents(t *testing.T) {
	raw := "event: ping\ndata: {}\n\n" + "event: message_start\ndata: {}\n\n"
	r := NewSSEReader(strings.NewReader(raw))

	evt, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "message_start", evt.Event)
}
