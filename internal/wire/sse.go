package wire

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// SSEEvent is a single Server-Sent Event. Anthropic names its events
// ("message_start", "content_block_delta", ...); OpenAI leaves Event
// empty and relies purely on the JSON payload shape.
//
// Grounded on the teacher's internal/proxy.SSEEvent — kept as a wire
// package type here because the classifier's mock builder, the
// translator, and the streaming forwarder all need the same shape.
type SSEEvent struct {
	Event string
	Data  string
}

// WriteTo writes the event in "event: <type>\ndata: <payload>\n\n" form,
// omitting the event line when Event is empty (OpenAI's convention).
func (e SSEEvent) WriteTo(w io.Writer) (int64, error) {
	var n int
	var err error
	total := int64(0)
	if e.Event != "" {
		n, err = fmt.Fprintf(w, "event: %s\n", e.Event)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	n, err = fmt.Fprintf(w, "data: %s\n\n", e.Data)
	total += int64(n)
	return total, err
}

// ParseSSEStream reads SSE events from r until EOF or a terminal event
// ("message_stop" or a "[DONE]" payload). Ping events are dropped — they
// carry no payload relevant to any downstream consumer.
//
// Grounded on the teacher's internal/proxy.parseSSEStream.
func ParseSSEStream(r io.Reader) ([]SSEEvent, error) {
	var events []SSEEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if data != "" {
				if event != "ping" {
					events = append(events, SSEEvent{Event: event, Data: data})
				}
				if event == "message_stop" || data == "[DONE]" {
					break
				}
			}
			event, data = "", ""
			continue
		}
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				data = chunk
			} else {
				data += "\n" + chunk
			}
		}
	}
	return events, scanner.Err()
}

// SSEReader incrementally reads one event at a time from r, for use by
// the streaming forwarder which must not block waiting for the whole
// body before relaying the first chunk downstream.
type SSEReader struct {
	scanner *bufio.Scanner
	event   string
	data    string
	done    bool
}

// NewSSEReader wraps r for incremental SSE event reads.
func NewSSEReader(r io.Reader) *SSEReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	return &SSEReader{scanner: scanner}
}

// Next returns the next event, or io.EOF once the stream is exhausted or
// a terminal event has been returned.
func (sr *SSEReader) Next() (SSEEvent, error) {
	if sr.done {
		return SSEEvent{}, io.EOF
	}
	for sr.scanner.Scan() {
		line := sr.scanner.Text()
		if line == "" {
			if sr.data == "" {
				continue
			}
			evt := SSEEvent{Event: sr.event, Data: sr.data}
			sr.event, sr.data = "", ""
			if evt.Event == "ping" {
				continue
			}
			if evt.Event == "message_stop" || evt.Data == "[DONE]" {
				sr.done = true
			}
			return evt, nil
		}
		switch {
		case strings.HasPrefix(line, "event:"):
			sr.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if sr.data == "" {
				sr.data = chunk
			} else {
				sr.data += "\n" + chunk
			}
		}
	}
	sr.done = true
	if err := sr.scanner.Err(); err != nil {
		return SSEEvent{}, err
	}
	return SSEEvent{}, io.EOF
}
