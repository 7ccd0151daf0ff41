package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gyaneshwarpardhi/scapslice/internal/analyzer"
)

// Validate checks the config for:
//   - an unknown conflict policy or default platform
//   - a default platform without a capability table
//   - regex rules that are unnamed or do not compile
//   - id formats without exactly one %d verb
//   - negative concurrency settings
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if !cfg.Graph.ConflictPolicy.Valid() {
		errs = append(errs, fmt.Sprintf("graph.conflict_policy: unknown policy %q", cfg.Graph.ConflictPolicy))
	}

	for p := range cfg.Analyzer.Capabilities {
		if _, ok := analyzer.ParsePlatform(string(p)); !ok {
			errs = append(errs, fmt.Sprintf("analyzer.capabilities: unknown platform %q", p))
		}
	}
	if p, ok := analyzer.ParsePlatform(string(cfg.Analyzer.DefaultPlatform)); !ok {
		errs = append(errs, fmt.Sprintf("analyzer.default_platform: unknown platform %q", cfg.Analyzer.DefaultPlatform))
	} else if p != cfg.Analyzer.DefaultPlatform {
		errs = append(errs, fmt.Sprintf("analyzer.default_platform: use %q instead of alias %q", p, cfg.Analyzer.DefaultPlatform))
	} else if _, ok := cfg.Analyzer.Capabilities[p]; !ok {
		errs = append(errs, fmt.Sprintf("analyzer.default_platform: %q has no capability table", p))
	}

	names := make(map[string]int)
	for i, r := range cfg.Analyzer.RegexRules {
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("analyzer.regex_rules[%d]: name is required", i))
			continue
		}
		if prev, ok := names[r.Name]; ok {
			errs = append(errs, fmt.Sprintf("duplicate regex rule %q (first seen at [%d], again at [%d])", r.Name, prev, i))
		} else {
			names[r.Name] = i
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			errs = append(errs, fmt.Sprintf("regex rule %s: %v", r.Name, err))
		}
	}

	formats := map[string]string{
		"test_id_format":     cfg.Rewriter.TestIDFormat,
		"state_id_format":    cfg.Rewriter.StateIDFormat,
		"variable_id_format": cfg.Rewriter.VariableIDFormat,
	}
	for _, key := range []string{"test_id_format", "state_id_format", "variable_id_format"} {
		if strings.Count(formats[key], "%d") != 1 || strings.Count(formats[key], "%") != 1 {
			errs = append(errs, fmt.Sprintf("rewriter.%s: %q must contain exactly one %%d", key, formats[key]))
		}
	}

	if cfg.Engine.Workers < 0 {
		errs = append(errs, "engine.workers must not be negative")
	}
	if cfg.Engine.QueueDepth < 0 {
		errs = append(errs, "engine.queue_depth must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
