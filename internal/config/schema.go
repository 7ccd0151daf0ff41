package config

import (
	"github.com/gyaneshwarpardhi/scapslice/internal/analyzer"
	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
	"github.com/gyaneshwarpardhi/scapslice/internal/rewrite"
)

// Config is the top-level YAML structure.
type Config struct {
	Version    string          `yaml:"version"`
	Graph      GraphConf       `yaml:"graph"`
	Serializer SerializerConf  `yaml:"serializer"`
	Analyzer   AnalyzerConf    `yaml:"analyzer"`
	Rewriter   rewrite.Options `yaml:"rewriter"`
	Engine     EngineConf      `yaml:"engine"`
}

// GraphConf controls graph construction and cascading deletes.
type GraphConf struct {
	ConflictPolicy oval.ConflictPolicy `yaml:"conflict_policy"`
	ReverseExtend  bool                `yaml:"reverse_extend"`
}

// SerializerConf controls OVAL output.
type SerializerConf struct {
	// KeepNamespace lists the leaf element names that stay in the common
	// namespace.
	KeepNamespace []string `yaml:"keep_namespace"`
	Indent        string   `yaml:"indent"`
}

// AnalyzerConf holds the capability and regex tables. Empty tables select
// the built-in ones.
type AnalyzerConf struct {
	DefaultPlatform analyzer.Platform     `yaml:"default_platform"`
	Capabilities    analyzer.Capabilities `yaml:"capabilities"`
	RegexRules      []analyzer.RegexRule  `yaml:"regex_rules"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
}

// BuildOptions maps the graph section onto builder options.
func (c *Config) BuildOptions() oval.BuildOptions {
	return oval.BuildOptions{ConflictPolicy: c.Graph.ConflictPolicy}
}

// CascadeOptions maps the graph section onto cascade options.
func (c *Config) CascadeOptions() oval.CascadeOptions {
	return oval.CascadeOptions{ReverseExtend: c.Graph.ReverseExtend}
}

// SerializeOptions maps the serializer section onto serializer options.
func (c *Config) SerializeOptions() oval.SerializeOptions {
	return oval.SerializeOptions{KeepNamespace: c.Serializer.KeepNamespace, Indent: c.Serializer.Indent}
}

// AnalyzerOptions maps the analyzer section onto analyzer options.
func (c *Config) AnalyzerOptions() analyzer.Options {
	return analyzer.Options{
		Capabilities:    c.Analyzer.Capabilities,
		DefaultPlatform: c.Analyzer.DefaultPlatform,
		RegexRules:      c.Analyzer.RegexRules,
	}
}
