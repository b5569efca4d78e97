package gatewayhttp

import (
	"net/http"
	"strings"
)

// hopByHopHeaders must never be forwarded across a proxy hop.
//
// Grounded on the teacher's internal/proxy/forwarder.go hopByHopHeaders
// map, unchanged — hop-by-hop semantics don't depend on the proxied
// protocol.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailers":            true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// buildUpstreamHeaders copies src into a fresh header set suitable for
// the outbound upstream request, per spec.md §6: Authorization/x-api-key
// replaced with apiKey, Host/hop-by-hop stripped, anthropic-version kept
// if present, Accept-Encoding forced to identity so SSE never arrives
// double-compressed.
func buildUpstreamHeaders(src http.Header, apiKey string) http.Header {
	dst := make(http.Header, len(src))
	for key, values := range src {
		if hopByHopHeaders[key] || strings.EqualFold(key, "Host") {
			continue
		}
		if strings.EqualFold(key, "Authorization") || strings.EqualFold(key, "X-Api-Key") {
			continue
		}
		if strings.EqualFold(key, "Accept-Encoding") {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	dst.Set("Authorization", "Bearer "+apiKey)
	dst.Set("X-Api-Key", apiKey)
	dst.Set("Accept-Encoding", "identity")
	return dst
}

// copyResponseHeaders mirrors upstream response headers onto the
// downstream response writer, skipping hop-by-hop headers.
func copyResponseHeaders(dst http.Header, src http.Header) {
	for key, values := range src {
		if hopByHopHeaders[key] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
