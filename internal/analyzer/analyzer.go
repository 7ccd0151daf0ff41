// Package analyzer scores OVAL definitions against per-platform capability
// tables and flags pattern-match expressions that use regex constructs a
// RE2-style engine cannot run.
package analyzer

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// Options configures an Analyzer. Zero values select the built-in tables and
// the Windows fallback.
type Options struct {
	Capabilities    Capabilities
	DefaultPlatform Platform
	RegexRules      []RegexRule
}

// Classification is the capability verdict for one definition.
type Classification struct {
	DefinitionID string
	Platform     Platform
	// Fallback is set when the requested platform was not recognized and the
	// default table was used instead.
	Fallback    bool
	Supported   bool
	Unsupported []string
	ObjectTypes []string
}

// Analyzer reads a built graph; it never mutates it.
type Analyzer struct {
	g        *oval.Graph
	caps     map[Platform]map[string]bool
	fallback Platform
	rules    []compiledRule
}

type compiledRule struct {
	name string
	re   *regexp.Regexp
}

// New prepares an Analyzer over g.
func New(g *oval.Graph, opts Options) (*Analyzer, error) {
	caps := opts.Capabilities
	if caps == nil {
		caps = DefaultCapabilities()
	}
	fallback := opts.DefaultPlatform
	if fallback == "" {
		fallback = Windows
	}
	if _, ok := caps[fallback]; !ok {
		return nil, fmt.Errorf("analyzer: default platform %q has no capability table", fallback)
	}
	rules := opts.RegexRules
	if rules == nil {
		rules = DefaultRegexRules()
	}
	a := &Analyzer{g: g, caps: caps.sets(), fallback: fallback}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("analyzer: regex rule %s: %w", r.Name, err)
		}
		a.rules = append(a.rules, compiledRule{name: r.Name, re: re})
	}
	return a, nil
}

// ObjectTypes returns the sorted local tags of every object reachable from
// the definition.
func (a *Analyzer) ObjectTypes(definitionID string) ([]string, error) {
	n := a.g.Node(definitionID)
	if n == nil {
		return nil, xmltree.NotFound("definition", definitionID)
	}
	if n.Type != oval.NodeTypeDefinition {
		return nil, xmltree.WrongType("definition", definitionID)
	}
	seen := make(map[string]bool)
	for _, id := range a.g.Reachable(definitionID) {
		if node := a.g.Node(id); node.Type == oval.NodeTypeObject {
			seen[node.Tag()] = true
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

// Resolve maps a platform name to its table, falling back to the default
// platform for unknown or empty names.
func (a *Analyzer) Resolve(platform string) (p Platform, fallback bool) {
	if p, ok := ParsePlatform(platform); ok {
		if _, known := a.caps[p]; known {
			return p, false
		}
	}
	return a.fallback, true
}

// Classify reports whether every object type the definition uses is in the
// platform's capability table.
func (a *Analyzer) Classify(definitionID, platform string) (Classification, error) {
	types, err := a.ObjectTypes(definitionID)
	if err != nil {
		return Classification{}, err
	}
	p, fallback := a.Resolve(platform)
	allowed := a.caps[p]
	c := Classification{
		DefinitionID: definitionID,
		Platform:     p,
		Fallback:     fallback,
		ObjectTypes:  types,
		Unsupported:  []string{},
	}
	for _, t := range types {
		if !allowed[t] {
			c.Unsupported = append(c.Unsupported, t)
		}
	}
	c.Supported = len(c.Unsupported) == 0
	return c, nil
}

// ClassifyAll classifies every live definition in graph order.
func (a *Analyzer) ClassifyAll(platform string) []Classification {
	defs := a.g.Definitions()
	out := make([]Classification, 0, len(defs))
	for _, id := range defs {
		c, err := a.Classify(id, platform)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
