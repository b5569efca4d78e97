package rewrite

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// catalogFile mirrors catalog.yaml's layout.
type catalogFile struct {
	VerbosePreambles    []string `yaml:"verbose_preambles"`
	RarelyUsedToolGlobs []string `yaml:"rarely_used_tool_globs"`
	ContentTags         []string `yaml:"content_tags"`
}

var (
	verbosePreambles  []string
	rarelyUsedToolGlobs []glob.Glob
	contentTags       []string
)

func init() {
	var raw catalogFile
	if err := yaml.Unmarshal(catalogYAML, &raw); err != nil {
		panic(fmt.Sprintf("rewrite: parsing embedded catalog.yaml: %v", err))
	}
	verbosePreambles = raw.VerbosePreambles
	contentTags = raw.ContentTags
	tagPatterns = buildTagPatterns()
	rarelyUsedToolGlobs = make([]glob.Glob, len(raw.RarelyUsedToolGlobs))
	for i, pattern := range raw.RarelyUsedToolGlobs {
		g, err := glob.Compile(pattern)
		if err != nil {
			panic(fmt.Sprintf("rewrite: invalid tool glob %q: %v", pattern, err))
		}
		rarelyUsedToolGlobs[i] = g
	}
}

// hasVerbosePreamble reports whether text begins with a known boilerplate
// preamble.
func hasVerbosePreamble(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, p := range verbosePreambles {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// isRarelyUsedTool reports whether name matches one of the catalog's
// rarely-used-tool glob patterns.
func isRarelyUsedTool(name string) bool {
	for _, g := range rarelyUsedToolGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// thinkingCapability describes whether an upstream, identified by
// (endpoint host substring, model prefix), supports the Anthropic
// `thinking` field and whether it must be explicitly enabled.
type thinkingCapability int

const (
	thinkingUnknown thinkingCapability = iota
	thinkingUnsupported
	thinkingRequiresExplicit
	thinkingNative
)

// thinkingCapabilityMatrix is the constant table spec.md §9 calls for:
// capability keyed by (endpoint host substring, model prefix), to be
// hand-updated as upstream providers evolve.
var thinkingCapabilityMatrix = []struct {
	hostSubstring string
	modelPrefix   string
	capability    thinkingCapability
}{
	{"api.anthropic.com", "claude-opus-4", thinkingNative},
	{"api.anthropic.com", "claude-sonnet-4", thinkingNative},
	{"api.anthropic.com", "claude-3-7", thinkingRequiresExplicit},
	{"api.anthropic.com", "claude-3-5", thinkingUnsupported},
	{"api.openai.com", "o1", thinkingRequiresExplicit},
	{"api.openai.com", "o3", thinkingRequiresExplicit},
	{"api.openai.com", "gpt-4", thinkingUnsupported},
	{"api.moonshot.cn", "", thinkingUnsupported},
}

func capabilityFor(host, model string) thinkingCapability {
	for _, row := range thinkingCapabilityMatrix {
		if !strings.Contains(host, row.hostSubstring) {
			continue
		}
		if row.modelPrefix != "" && !strings.HasPrefix(model, row.modelPrefix) {
			continue
		}
		return row.capability
	}
	return thinkingUnknown
}

const defaultThinkingBudgetTokens = 10000
