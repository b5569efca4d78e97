package gatewayhttp

import (
	"github.com/ctrlai/llmgate/internal/wire"
)

// charsPerToken mirrors the naive length/4 estimate internal/mock uses
// for a mocked reply's input_tokens, so every locally-computed token
// count in the gateway uses one consistent costing convention.
const charsPerToken = 4

func estimateTokens(s string) int64 {
	if s == "" {
		return 0
	}
	return int64(len(s) / charsPerToken)
}

// localTokenEstimate computes the three counters spec.md §4.J wants
// (history_tokens, assistant_tokens, system_tokens) that no upstream
// usage object reports — Anthropic and OpenAI both account only for
// input/output/cache tokens, never broken down by conversation role or
// position. The gateway estimates them itself, the same way it
// estimates a mocked reply's input_tokens in internal/mock, so every
// component uses one consistent costing convention.
//
// historyTokens covers every message except the final user turn — the
// context resent on every single request, which is exactly the waste
// waste_ratio is meant to surface. assistantTokens and systemTokens are
// independent breakdowns of the same conversation, not additional
// counters layered on top of input_tokens.
type localTokenEstimate struct {
	HistoryTokens   int64
	AssistantTokens int64
	SystemTokens    int64
}

func estimateLocalTokens(req *wire.Request) localTokenEstimate {
	var est localTokenEstimate
	est.SystemTokens = estimateTokens(req.SystemText())

	lastUserIndex := -1
	for i, m := range req.Messages {
		if m.Role == "user" {
			lastUserIndex = i
		}
	}

	for i, m := range req.Messages {
		text := m.Text()
		if m.Role == "assistant" {
			est.AssistantTokens += estimateTokens(text)
		}
		if i == lastUserIndex {
			continue
		}
		est.HistoryTokens += estimateTokens(text)
	}
	return est
}
