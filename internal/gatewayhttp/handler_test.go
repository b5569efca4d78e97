package gatewayhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrlai/llmgate/internal/config"
	"github.com/ctrlai/llmgate/internal/selector"
	"github.com/ctrlai/llmgate/internal/stats"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestHandler(t *testing.T, upstream *httptest.Server) (*Handler, *config.Cell) {
	t.Helper()
	cfg := &config.Config{
		Upstreams: []config.Upstream{{
			Endpoint: upstream.URL,
			Model:    "upstream-model",
			APIKeys:  []string{"key-1"},
			Dialect:  config.DialectAnthropic,
		}},
		Optimizations: map[string]bool{
			"enable_network_probe_mock":       true,
			"enable_fast_prefix_detection":    true,
			"enable_historical_analysis_mock": true,
			"enable_title_generation_skip":    true,
			"enable_suggestion_mode_skip":     true,
			"enable_filepath_extraction_mock": true,
		},
	}
	cell := config.NewCell(cfg)
	h := New(Options{
		Cell:      cell,
		Selector:  selector.New(cell),
		Forwarder: NewForwarder(upstream.Client()),
		Stats:     stats.NewRegistry(prometheus.NewRegistry()),
	})
	return h, cell
}

// TestHandler_InterceptsQuotaProbe implements spec.md §8 scenario 1: a
// quota-probe request must never reach any upstream, and the mocked
// reply must come back as a 200 JSON body.
func TestHandler_InterceptsQuotaProbe(t *testing.T) {
	upstreamCalled := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalled = true
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, upstream)

	body := `{"model":"claude-sonnet-4","max_tokens":1,"messages":[{"role":"user","content":"ping"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.False(t, upstreamCalled, "quota probe reached upstream, want local interception")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

// TestHandler_HotReloadMidFlight implements spec.md §8 scenario 3: a
// config swap between two requests must be picked up by the very next
// request without restarting the process.
func TestHandler_HotReloadMidFlight(t *testing.T) {
	var seenKeys []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenKeys = append(seenKeys, r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"upstream-model","content":[{"type":"text","text":"hi"}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":2}}`))
	}))
	defer upstream.Close()

	h, cell := newTestHandler(t, upstream)

	sendForward := func() {
		body := `{"model":"claude-sonnet-4","max_tokens":100,"messages":[{"role":"user","content":"what files changed recently in the repository history"}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
	}

	sendForward()

	cell.Store(&config.Config{
		Upstreams: []config.Upstream{{
			Endpoint: cell.Load().Upstreams[0].Endpoint,
			Model:    "upstream-model",
			APIKeys:  []string{"key-2"},
			Dialect:  config.DialectAnthropic,
		}},
		Optimizations: cell.Load().Optimizations,
	})

	sendForward()

	require.Len(t, seenKeys, 2)
	assert.Equal(t, []string{"key-1", "key-2"}, seenKeys, "want keys reflecting the reload")
}

// TestHandler_UpstreamErrorForwardedVerbatim implements spec.md §8
// scenario 5: a 500 from upstream is relayed unmodified, total_requests
// increments, but no token counters do.
func TestHandler_UpstreamErrorForwardedVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, upstream)

	body := `{"model":"claude-sonnet-4","max_tokens":100,"messages":[{"role":"user","content":"normal forwarded request"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")

	snap := h.stats.Snapshot()
	assert.EqualValues(t, 1, snap.TotalRequests)
	assert.Zero(t, snap.InputTokens, "upstream call failed, want no token counters")
	assert.Zero(t, snap.HistoryTokens, "upstream call failed, want no token counters")
}

// TestHandler_DownstreamCancellation implements spec.md §8 scenario 6:
// a client that cancels mid-stream should not prevent the handler from
// returning; stats should not record output-side counters that never
// arrived.
func TestHandler_DownstreamCancellation(t *testing.T) {
	block := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer upstream.Close()
	defer close(block)

	h, _ := newTestHandler(t, upstream)

	ctx, cancel := context.WithCancel(context.Background())
	body := `{"model":"claude-sonnet-4","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"normal forwarded streaming request"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body)).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	cancel()
	<-done

	snap := h.stats.Snapshot()
	assert.EqualValues(t, 1, snap.TotalRequests)
}
