// Package config loads, validates, and hot-swaps the gateway's TOML
// configuration: the upstream pool and the optimization (local
// interception) toggles.
//
// Grounded on the teacher's internal/config/config.go — same Load/
// validate/applyDefaults shape — adapted from a single-process YAML
// settings file to a TOML upstream-pool-plus-feature-flags schema.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Dialect identifies the wire format an upstream speaks.
type Dialect string

const (
	DialectAnthropic Dialect = "anthropic"
	DialectOpenAI    Dialect = "openai"
)

// Upstream is one configured remote LLM provider: an endpoint, the model
// name forced onto every request routed there, and a pool of API keys
// rotated round-robin by the selector.
type Upstream struct {
	Endpoint string   `toml:"endpoint"`
	Model    string   `toml:"model"`
	APIKeys  []string `toml:"api_keys"`
	Dialect  Dialect  `toml:"dialect"`
}

// OptimizationTags is the closed set of local-interception toggles.
// Every tag defaults to enabled; a TOML file may only turn tags off, not
// introduce new ones — unrecognized keys are a validation error.
var OptimizationTags = []string{
	"enable_network_probe_mock",
	"enable_fast_prefix_detection",
	"enable_historical_analysis_mock",
	"enable_title_generation_skip",
	"enable_suggestion_mode_skip",
	"enable_filepath_extraction_mock",
}

// Config is the immutable, fully-validated configuration snapshot shared
// by every in-flight request via the atomic Cell.
type Config struct {
	Upstreams     []Upstream
	Optimizations map[string]bool
}

// fileSchema mirrors the TOML file layout: [[upstream]] array-of-tables
// plus a flat [optimizations] table.
type fileSchema struct {
	Upstream      []Upstream      `toml:"upstream"`
	Optimizations map[string]bool `toml:"optimizations"`
}

// Load reads and validates path, returning a ready-to-publish Config.
// Unlike the teacher's config loader, a missing file here is a startup
// error (spec.md §6: the CLI's config-path argument must resolve to a
// real file) rather than a silent defaults fallback — the gateway has no
// sensible default upstream pool to fall back to.
func Load(path string) (*Config, error) {
	var raw fileSchema
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg := &Config{
		Upstreams:     raw.Upstream,
		Optimizations: applyOptimizationDefaults(raw.Optimizations),
	}
	for i := range cfg.Upstreams {
		if cfg.Upstreams[i].Dialect == "" {
			cfg.Upstreams[i].Dialect = inferDialect(cfg.Upstreams[i].Endpoint)
		}
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyOptimizationDefaults fills in any optimization tag missing from
// the file with its default of true, per spec.md §3.
func applyOptimizationDefaults(fromFile map[string]bool) map[string]bool {
	result := make(map[string]bool, len(OptimizationTags))
	for _, tag := range OptimizationTags {
		result[tag] = true
	}
	for k, v := range fromFile {
		result[k] = v
	}
	return result
}

// inferDialect guesses an upstream's dialect from its endpoint when the
// TOML file omits the field, per spec.md §3's Upstream.dialect note.
func inferDialect(endpoint string) Dialect {
	lower := strings.ToLower(endpoint)
	switch {
	case strings.Contains(lower, "anthropic"):
		return DialectAnthropic
	case strings.Contains(lower, "openai"),
		strings.Contains(lower, "moonshot"),
		strings.Contains(lower, "dashscope"),
		strings.Contains(lower, "minimax"),
		strings.Contains(lower, "bigmodel"),
		strings.Contains(lower, "deepseek"):
		return DialectOpenAI
	default:
		return DialectAnthropic
	}
}

// validate enforces spec.md §4.A's rules: at least one upstream, every
// upstream has a non-empty endpoint/model/key set, and every
// optimization key in the file is a known tag.
func validate(cfg *Config) error {
	if len(cfg.Upstreams) == 0 {
		return fmt.Errorf("at least one [[upstream]] is required")
	}
	for i, u := range cfg.Upstreams {
		if u.Endpoint == "" {
			return fmt.Errorf("upstream %d: endpoint must not be empty", i)
		}
		if u.Model == "" {
			return fmt.Errorf("upstream %d: model must not be empty", i)
		}
		if len(u.APIKeys) == 0 {
			return fmt.Errorf("upstream %d: at least one api_keys entry is required", i)
		}
		for j, k := range u.APIKeys {
			if k == "" {
				return fmt.Errorf("upstream %d: api_keys[%d] must not be empty", i, j)
			}
		}
		if u.Dialect != DialectAnthropic && u.Dialect != DialectOpenAI {
			return fmt.Errorf("upstream %d: dialect must be %q or %q, got %q", i, DialectAnthropic, DialectOpenAI, u.Dialect)
		}
	}
	known := make(map[string]bool, len(OptimizationTags))
	for _, t := range OptimizationTags {
		known[t] = true
	}
	for k := range cfg.Optimizations {
		if !known[k] {
			return fmt.Errorf("unknown optimization tag %q", k)
		}
	}
	return nil
}

// OptimizationEnabled reports whether the named tag is on in this
// snapshot. Unknown tags (should not occur post-validation) read as
// disabled.
func (c *Config) OptimizationEnabled(tag string) bool {
	return c.Optimizations[tag]
}
