// Package rewrite applies the forward-bound request transformations
// described in spec.md §4.G: system-prompt pruning, tool-definition
// pruning, content-tag stripping, and thinking-block patching. Every
// rewrite only removes or normalizes — it never introduces new content
// beyond a capability-driven default thinking block — so repeated
// application is idempotent.
//
// Grounded on the teacher's internal/proxy/response_modifier.go
// map-based block filtering, adapted from "strip a blocked tool_use
// from a response" to "strip a blocked preamble or tag from a request".
// The tool block-list itself is YAML data compiled into gobwas/glob
// patterns, the same shape as internal/engine/matcher.go's path globs.
package rewrite

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ctrlai/llmgate/internal/wire"
)

// Rewrite applies every transformation in spec.md §4.G to req in place,
// given the target upstream's endpoint and (possibly overridden) model.
// Safe to call more than once on the same request — Rewrite is
// idempotent.
func Rewrite(req *wire.Request, upstreamEndpoint, upstreamModel string) {
	pruneSystemPrompts(req)
	pruneTools(req)
	stripContentTags(req)
	patchThinking(req, upstreamEndpoint, upstreamModel)
}

// pruneSystemPrompts removes system blocks matching a known verbose
// preamble, retaining anything else (including project context that
// happens to follow a stripped preamble in the same request).
func pruneSystemPrompts(req *wire.Request) {
	if len(req.System) == 0 {
		return
	}
	kept := req.System[:0:0]
	for _, block := range req.System {
		if block.Type == "text" && hasVerbosePreamble(block.Text) {
			continue
		}
		kept = append(kept, block)
	}
	req.System = kept
}

// pruneTools drops tool definitions in the rarely-used catalog, unless
// the tool name is referenced by a tool_use block already present in
// the message history (a prior turn invoked it, so the client expects
// it to remain callable).
func pruneTools(req *wire.Request) {
	if len(req.Tools) == 0 {
		return
	}
	referenced := referencedToolNames(req.Messages)

	kept := req.Tools[:0:0]
	for _, t := range req.Tools {
		if isRarelyUsedTool(t.Name) && !referenced[t.Name] {
			continue
		}
		kept = append(kept, t)
	}
	req.Tools = kept
}

func referencedToolNames(messages []wire.Message) map[string]bool {
	out := map[string]bool{}
	for _, m := range messages {
		for _, b := range m.Content {
			if b.Type == "tool_use" && b.Name != "" {
				out[b.Name] = true
			}
		}
	}
	return out
}

// stripContentTags removes known XML-like wrapper tags from every user
// message's text content, preserving the inner text.
func stripContentTags(req *wire.Request) {
	for mi := range req.Messages {
		if req.Messages[mi].Role != "user" {
			continue
		}
		for bi := range req.Messages[mi].Content {
			block := &req.Messages[mi].Content[bi]
			if block.Type != "text" {
				continue
			}
			block.Text = stripTags(block.Text)
		}
	}
}

func stripTags(text string) string {
	for _, re := range tagPatterns {
		text = re.ReplaceAllString(text, "$1")
	}
	return text
}

// tagPatterns is built once at package init (in catalog.go's init, right
// after contentTags is loaded) from the fixed contentTags catalog —
// handler requests run concurrently, so these can't be compiled lazily
// into a shared map without a lock.
var tagPatterns []*regexp.Regexp

func buildTagPatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(contentTags))
	for i, tag := range contentTags {
		out[i] = regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(tag) + `>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
	}
	return out
}

// patchThinking strips or injects the thinking field based on the
// target upstream's declared capability.
func patchThinking(req *wire.Request, endpoint, model string) {
	host := endpointHost(endpoint)
	switch capabilityFor(host, model) {
	case thinkingUnsupported:
		req.Thinking = nil
	case thinkingRequiresExplicit:
		if req.Thinking == nil {
			req.Thinking = &wire.ThinkingConfig{Type: "enabled", BudgetTokens: defaultThinkingBudgetTokens}
		}
	case thinkingNative, thinkingUnknown:
		// Leave as supplied by the client.
	}
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return strings.ToLower(u.Host)
}
