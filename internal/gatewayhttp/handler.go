// Package gatewayhttp wires every other package into the single
// request flow spec.md §2 describes: classify, intercept-or-forward,
// rewrite, select, translate, forward, observe.
package gatewayhttp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ctrlai/llmgate/internal/classify"
	"github.com/ctrlai/llmgate/internal/config"
	"github.com/ctrlai/llmgate/internal/mock"
	"github.com/ctrlai/llmgate/internal/rewrite"
	"github.com/ctrlai/llmgate/internal/selector"
	"github.com/ctrlai/llmgate/internal/stats"
	"github.com/ctrlai/llmgate/internal/translate"
	"github.com/ctrlai/llmgate/internal/wire"
)

// maxRequestBody bounds how much of a downstream request body the
// gateway will read, mirroring the teacher's proxy.go 10MB ceiling.
const maxRequestBody = 10 * 1024 * 1024

// Handler is the gateway's single HTTP entry point, mounted under the
// /claude/ prefix (cmd/gateway strips the prefix). It does not check the
// method or the remaining path: every request it receives is handled as
// a Messages API call.
//
// Grounded on the teacher's internal/proxy.Proxy — same
// Options-struct-plus-New construction and ServeHTTP orchestration
// shape, restaged around spec.md's component letters (E classifier, F
// mock builder, G rewriter, D selector, H translator, I forwarder, J
// stats) in place of the teacher's kill-switch/engine/audit stage.
type Handler struct {
	cell      *config.Cell
	selector  *selector.Selector
	forwarder *Forwarder
	stats     *stats.Registry
}

// Options holds the dependencies injected into the handler at creation.
type Options struct {
	Cell      *config.Cell
	Selector  *selector.Selector
	Forwarder *Forwarder
	Stats     *stats.Registry
}

// New creates a Handler from opts.
func New(opts Options) *Handler {
	return &Handler{
		cell:      opts.Cell,
		selector:  opts.Selector,
		forwarder: opts.Forwarder,
		stats:     opts.Stats,
	}
}

// ServeHTTP implements the full request flow of spec.md §2.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}
	defer r.Body.Close()

	req, err := wire.ParseRequest(body)
	if err != nil {
		eb := mock.ErrorForInvalidRequest(err.Error())
		data, _ := json.Marshal(eb)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write(data)
		return
	}

	cfg := h.cell.Load()
	result := classify.Classify(req)

	if result.Tag != classify.TagForward {
		if tag, ok := classify.OptimizationTag[result.Tag]; ok && cfg.OptimizationEnabled(tag) {
			h.intercept(w, req, result)
			return
		}
	}

	h.forward(w, r, req, start)
}

// intercept synthesizes a local reply without contacting any upstream,
// per spec.md §4.F — no selector.Pick is drawn and no forwarder call is
// made.
func (h *Handler) intercept(w http.ResponseWriter, req *wire.Request, result classify.Result) {
	h.stats.IncRequests()
	inputTokens := estimateTokens(req.SystemText() + req.LastUserText())
	h.stats.Record(stats.InputTokens, inputTokens)

	if req.Stream {
		events := mock.BuildStream(result, req)
		flusher, ok := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		for _, evt := range events {
			evt.WriteTo(w)
			if ok {
				flusher.Flush()
			}
		}
		return
	}

	resp := mock.Build(result, req)
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("marshaling mocked response", "error", err)
		h.writeError(w, http.StatusInternalServerError, "api_error", "failed to build mocked response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// forward handles the non-intercepted path: pick an upstream, rewrite
// and translate the request body, issue the upstream call, and relay
// the response while recording usage.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, req *wire.Request, start time.Time) {
	pick, err := h.selector.Pick()
	if err != nil {
		h.stats.IncRequests()
		slog.Error("no upstream available", "error", err)
		h.writeError(w, http.StatusBadGateway, "api_error", "no upstream configured")
		return
	}

	clientModel := req.Model
	rewrite.Rewrite(req, pick.Endpoint, pick.Model)
	req.Model = pick.Model

	local := estimateLocalTokens(req)

	var openaiReq *wire.OpenAIRequest
	if pick.Dialect == config.DialectOpenAI {
		openaiReq, err = translate.ToOpenAIRequest(req, pick.Model)
		if err != nil {
			h.stats.IncRequests()
			slog.Error("translating request to openai dialect", "error", err)
			h.writeError(w, http.StatusInternalServerError, "api_error", "failed to translate request")
			return
		}
	}

	var fwdResult Result
	if req.Stream {
		fwdResult, err = h.forwarder.Streaming(r, w, pick, openaiReq, req, clientModel)
	} else {
		fwdResult, err = h.forwarder.NonStreaming(r, w, pick, openaiReq, req, clientModel)
	}

	h.stats.IncRequests()
	if err != nil {
		slog.Error("forwarding request", "upstream", pick.Endpoint, "error", err,
			"latency_ms", time.Since(start).Milliseconds())
		return
	}

	if fwdResult.StatusCode >= 200 && fwdResult.StatusCode < 300 {
		h.stats.Record(stats.InputTokens, int64(fwdResult.Usage.InputTokens))
		h.stats.Record(stats.CacheReadTokens, int64(fwdResult.Usage.CacheReadInputTokens))
		h.stats.Record(stats.CacheCreationTokens, int64(fwdResult.Usage.CacheCreationInputTokens))
		h.stats.Record(stats.HistoryTokens, local.HistoryTokens)
		h.stats.Record(stats.AssistantTokens, local.AssistantTokens)
		h.stats.Record(stats.SystemTokens, local.SystemTokens)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message string) {
	eb := wire.NewErrorBody(errType, message)
	data, _ := json.Marshal(eb)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// Health reports liveness for the gateway's /health endpoint.
func (h *Handler) Health() bool {
	return h.cell.Load() != nil
}
