// Package classify inspects a parsed Anthropic Messages API request and
// assigns it one of the closed-set classification tags described in
// spec.md §4.E. Detection is priority-ordered, first match wins, and is
// pure: the same request always yields the same tag.
//
// Grounded on the teacher's internal/engine/matcher.go — pre-compiled
// regexes evaluated against extracted string fields, AND-combined
// per-rule — generalized from "a list of user-authored rules" to "a
// fixed priority list of built-in detectors", since this gateway has no
// equivalent of the teacher's hand-edited rules.yaml.
package classify

import (
	"regexp"
	"strings"

	"github.com/ctrlai/llmgate/internal/wire"
)

// Tag is one of the seven classification labels.
type Tag string

const (
	TagForward             Tag = "forward"
	TagQuotaProbe          Tag = "quota_probe"
	TagTitleGeneration     Tag = "title_generation"
	TagSuggestionMode      Tag = "suggestion_mode"
	TagHistoricalAnalysis  Tag = "historical_analysis"
	TagFilepathExtraction  Tag = "filepath_extraction"
	TagFastPrefix          Tag = "fast_prefix"
)

// OptimizationTag maps a classification tag to the config optimization
// key that must be set for the tag to be honored. TagForward has no
// corresponding key — it is always honored.
var OptimizationTag = map[Tag]string{
	TagQuotaProbe:         "enable_network_probe_mock",
	TagTitleGeneration:    "enable_title_generation_skip",
	TagSuggestionMode:     "enable_suggestion_mode_skip",
	TagHistoricalAnalysis: "enable_historical_analysis_mock",
	TagFilepathExtraction: "enable_filepath_extraction_mock",
	TagFastPrefix:         "enable_fast_prefix_detection",
}

// boundedPrefixBytes caps the text classification looks at, per spec.md
// §4.E's edge case note: pathological multi-megabyte prompts must not
// slow the classifier down.
const boundedPrefixBytes = 4096

// historicalAnalysisMinMessages is the K in spec.md §4.E rule 4.
const historicalAnalysisMinMessages = 8

var quotaProbeRegex = regexp.MustCompile(quotaProbePattern)

// Result is the classifier's output: the tag plus whatever the mock
// builder needs to synthesize a reply without re-deriving it.
type Result struct {
	Tag Tag

	// FastPrefixCommand is the extracted shell-command prefix (rule 6),
	// populated only when Tag == TagFastPrefix.
	FastPrefixCommand string

	// FilepathExtractionSource is the raw text to scan for paths
	// (rule 5), populated only when Tag == TagFilepathExtraction.
	FilepathExtractionSource string
}

// Classify assigns a classification tag to req. Pure function of req:
// identical input yields an identical Result.
func Classify(req *wire.Request) Result {
	if tag, ok := matchQuotaProbe(req); ok {
		return Result{Tag: tag}
	}
	if matchTitleGeneration(req) {
		return Result{Tag: TagTitleGeneration}
	}
	if matchSuggestionMode(req) {
		return Result{Tag: TagSuggestionMode}
	}
	if matchHistoricalAnalysis(req) {
		return Result{Tag: TagHistoricalAnalysis}
	}
	if src, ok := matchFilepathExtraction(req); ok {
		return Result{Tag: TagFilepathExtraction, FilepathExtractionSource: src}
	}
	if prefix, ok := matchFastPrefix(req); ok {
		return Result{Tag: TagFastPrefix, FastPrefixCommand: prefix}
	}
	return Result{Tag: TagForward}
}

func bounded(s string) string {
	if len(s) > boundedPrefixBytes {
		return s[:boundedPrefixBytes]
	}
	return s
}

// matchQuotaProbe implements spec.md §4.E rule 1.
func matchQuotaProbe(req *wire.Request) (Tag, bool) {
	if req.MaxTokens > 1 {
		return "", false
	}

	userMessages := 0
	var lastUserText string
	for _, m := range req.Messages {
		if m.Role == "user" {
			userMessages++
			lastUserText = m.Text()
		}
	}

	if userMessages == 1 && quotaProbeRegex.MatchString(bounded(strings.TrimSpace(lastUserText))) {
		return TagQuotaProbe, true
	}
	if userMessages == 0 {
		return TagQuotaProbe, true
	}
	return "", false
}

// matchTitleGeneration implements spec.md §4.E rule 2.
func matchTitleGeneration(req *wire.Request) bool {
	if req.MaxTokens > 64 || req.MaxTokens == 0 {
		return false
	}
	haystack := strings.ToLower(bounded(req.SystemText() + "\n" + req.FirstUserText()))
	return containsAny(haystack, titlePreambles)
}

// matchSuggestionMode implements spec.md §4.E rule 3.
func matchSuggestionMode(req *wire.Request) bool {
	if intent, ok := req.Metadata["intent"].(string); ok && intent == "suggestion" {
		return true
	}
	haystack := strings.ToLower(bounded(req.LastUserText()))
	return containsAny(haystack, suggestionPreambles)
}

// matchHistoricalAnalysis implements spec.md §4.E rule 4.
func matchHistoricalAnalysis(req *wire.Request) bool {
	historyCount := 0
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			historyCount++
			continue
		}
		for _, b := range m.Content {
			if b.Type == "tool_result" {
				historyCount++
				break
			}
		}
	}
	if historyCount < historicalAnalysisMinMessages {
		return false
	}
	haystack := strings.ToLower(bounded(req.LastUserText()))
	return containsAny(haystack, historicalPreambles)
}

// matchFilepathExtraction implements spec.md §4.E rule 5.
func matchFilepathExtraction(req *wire.Request) (string, bool) {
	text := req.LastUserText()
	haystack := strings.ToLower(bounded(text))
	if !containsAny(haystack, filepathExtractionPreambles) {
		return "", false
	}
	if !toolReferenced(req, filepathExtractionTools) {
		return "", false
	}
	return text, true
}

// matchFastPrefix implements spec.md §4.E rule 6.
func matchFastPrefix(req *wire.Request) (string, bool) {
	if hasToolContext(req) {
		return "", false
	}
	text := strings.TrimLeft(req.LastUserText(), " \t")
	for _, prefix := range fastPrefixCommands {
		if strings.HasPrefix(text, prefix) {
			return strings.TrimSpace(prefix), true
		}
	}
	return "", false
}

func containsAny(haystack string, catalog []string) bool {
	for _, phrase := range catalog {
		if strings.Contains(haystack, phrase) {
			return true
		}
	}
	return false
}

// toolReferenced reports whether any of the given tool names appears
// either in the request's declared tool list or in a tool_use block in
// the message history.
func toolReferenced(req *wire.Request, names []string) bool {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for _, t := range req.Tools {
		if want[t.Name] {
			return true
		}
	}
	for _, m := range req.Messages {
		for _, b := range m.Content {
			if b.Type == "tool_use" && want[b.Name] {
				return true
			}
		}
	}
	return false
}

// hasToolContext reports whether the request carries any tool
// definitions or tool_use/tool_result content — fast_prefix requires a
// bare command-line message with no such context.
func hasToolContext(req *wire.Request) bool {
	if len(req.Tools) > 0 {
		return true
	}
	for _, m := range req.Messages {
		for _, b := range m.Content {
			if b.Type == "tool_use" || b.Type == "tool_result" {
				return true
			}
		}
	}
	return false
}
