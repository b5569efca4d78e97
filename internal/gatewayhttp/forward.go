package gatewayhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ctrlai/llmgate/internal/selector"
	"github.com/ctrlai/llmgate/internal/translate"
	"github.com/ctrlai/llmgate/internal/wire"
)

// maxUpstreamBody bounds how much of an upstream non-streamed response
// the gateway will buffer before giving up, mirroring the teacher's
// proxy.go 10MB request-body ceiling on the response side instead.
const maxUpstreamBody = 10 * 1024 * 1024

// Forwarder issues the outbound upstream request and relays its
// response back to the client, translating wire format when the
// selected upstream speaks OpenAI's dialect.
//
// Grounded on the teacher's internal/proxy/forwarder.go forwardRequest
// plus proxy.go's handleStreaming/handleNonStreaming split — generalized
// from "inspect for blocked tool calls" to "translate dialect if
// needed", since this gateway has no kill-switch/engine stage.
type Forwarder struct {
	client *http.Client
}

// NewForwarder wraps client for upstream calls.
func NewForwarder(client *http.Client) *Forwarder {
	return &Forwarder{client: client}
}

// do builds and issues the upstream HTTP request for body against pick,
// copying every client header except hop-by-hop and credential headers.
func (f *Forwarder) do(r *http.Request, pick selector.Pick, body []byte) (*http.Response, error) {
	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, pick.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	upstreamReq.Header = buildUpstreamHeaders(r.Header, pick.APIKey)
	upstreamReq.Header.Set("Content-Type", "application/json")
	upstreamReq.ContentLength = int64(len(body))

	resp, err := f.client.Do(upstreamReq)
	if err != nil {
		return nil, fmt.Errorf("forwarding to upstream %s: %w", pick.Endpoint, err)
	}
	return resp, nil
}

// Result carries what the handler needs to know after a forward
// completes, for stats accounting.
type Result struct {
	StatusCode int
	Usage      wire.Usage
}

// NonStreaming issues a single-shot request and relays the response.
// For an OpenAI-dialect upstream, the response is translated back into
// Anthropic shape before being written; an Anthropic-dialect upstream's
// body is relayed verbatim.
func (f *Forwarder) NonStreaming(r *http.Request, w http.ResponseWriter, pick selector.Pick, openaiReq *wire.OpenAIRequest, anthropicReq *wire.Request, clientModel string) (Result, error) {
	var body []byte
	var err error
	if openaiReq != nil {
		body, err = json.Marshal(openaiReq)
	} else {
		body, err = anthropicReq.Marshal()
	}
	if err != nil {
		return Result{}, fmt.Errorf("marshaling upstream request: %w", err)
	}

	resp, err := f.do(r, pick, body)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return Result{}, fmt.Errorf("reading upstream response: %w", err)
	}

	result := Result{StatusCode: resp.StatusCode}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if openaiReq != nil {
			var oaiResp wire.OpenAIResponse
			if err := json.Unmarshal(respBody, &oaiResp); err != nil {
				return Result{}, fmt.Errorf("parsing upstream openai response: %w", err)
			}
			translated, err := translate.FromOpenAIResponse(&oaiResp, clientModel)
			if err != nil {
				return Result{}, fmt.Errorf("translating upstream response: %w", err)
			}
			result.Usage = translated.Usage
			respBody, err = json.Marshal(translated)
			if err != nil {
				return Result{}, fmt.Errorf("marshaling translated response: %w", err)
			}
			w.Header().Set("Content-Type", "application/json")
		} else {
			var anthResp wire.Response
			if err := json.Unmarshal(respBody, &anthResp); err == nil {
				result.Usage = anthResp.Usage
			}
			copyResponseHeaders(w.Header(), resp.Header)
		}
	} else {
		copyResponseHeaders(w.Header(), resp.Header)
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(respBody)))
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)
	return result, nil
}

// Streaming issues a streamed request and relays Server-Sent Events to
// w as they arrive, translating each OpenAI chunk into Anthropic
// stream events through a per-call translate.StreamState. An
// Anthropic-dialect upstream's events are relayed unmodified, with
// their terminal message_delta's usage object read off for stats.
func (f *Forwarder) Streaming(r *http.Request, w http.ResponseWriter, pick selector.Pick, openaiReq *wire.OpenAIRequest, anthropicReq *wire.Request, clientModel string) (Result, error) {
	var body []byte
	var err error
	if openaiReq != nil {
		body, err = json.Marshal(openaiReq)
	} else {
		body, err = anthropicReq.Marshal()
	}
	if err != nil {
		return Result{}, fmt.Errorf("marshaling upstream request: %w", err)
	}

	resp, err := f.do(r, pick, body)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	result := Result{StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
		copyResponseHeaders(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		w.Write(respBody)
		return result, nil
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		return Result{}, fmt.Errorf("response writer does not support flushing")
	}

	copyResponseHeaders(w.Header(), resp.Header)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("Content-Length")
	w.WriteHeader(http.StatusOK)

	reader := wire.NewSSEReader(resp.Body)

	if openaiReq != nil {
		state := translate.NewStreamState(clientModel)
		for {
			evt, err := reader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return result, fmt.Errorf("reading upstream stream: %w", err)
			}
			translated, err := state.Feed(evt)
			if err != nil {
				return result, fmt.Errorf("translating stream event: %w", err)
			}
			for _, out := range translated {
				if _, err := out.WriteTo(w); err != nil {
					return result, err
				}
			}
			flusher.Flush()
		}
		for _, out := range state.Finish() {
			out.WriteTo(w)
		}
		flusher.Flush()
		result.Usage = state.Usage()
		return result, nil
	}

	for {
		evt, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("reading upstream stream: %w", err)
		}
		if evt.Event == "message_delta" {
			var payload struct {
				Usage wire.Usage `json:"usage"`
			}
			if json.Unmarshal([]byte(evt.Data), &payload) == nil {
				result.Usage = payload.Usage
			}
		}
		if _, err := evt.WriteTo(w); err != nil {
			return result, err
		}
		flusher.Flush()
	}
	return result, nil
}
