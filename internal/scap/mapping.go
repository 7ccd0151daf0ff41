package scap

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xccdf"
	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// ManualRule marks a rule that has no machine-checkable definition.
const ManualRule = "Manual Rule"

var numericSuffix = regexp.MustCompile(`_\d+$`)

// BaseID strips a trailing _<n> suffix. Mapping keys carry one when a rule
// has several checks.
func BaseID(id string) string {
	return numericSuffix.ReplaceAllString(id, "")
}

// Mapping maps rule ids (possibly suffixed) to OVAL definition ids.
type Mapping map[string]string

// RuleMapping reads the check-content-ref names of every rule. A rule with
// several refs yields one key per ref, suffixed _1, _2, ...; a rule with
// none maps to ManualRule.
func RuleMapping(doc *xccdf.Document) Mapping {
	m := make(Mapping)
	for _, id := range doc.IDs(xccdf.KindRule) {
		rule, _ := doc.Rule(id)
		var names []string
		xmltree.Walk(rule, func(el *xmlquery.Node) bool {
			if el.Data == "check-content-ref" && el.Parent != nil && el.Parent.Data == "check" {
				if name := el.SelectAttr("name"); name != "" {
					names = append(names, name)
				}
			}
			return true
		})
		switch len(names) {
		case 0:
			m[id] = ManualRule
		case 1:
			m[id] = names[0]
		default:
			for i, name := range names {
				m[fmt.Sprintf("%s_%d", id, i+1)] = name
			}
		}
	}
	return m
}

// Keys returns the mapping keys sorted.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Automated reports whether key maps to a real definition.
func (m Mapping) Automated(key string) bool {
	def, ok := m[key]
	return ok && def != "" && def != ManualRule
}

// DefinitionsFor returns the distinct definitions mapped from the given rule
// ids, suffixed keys included, in sorted order.
func (m Mapping) DefinitionsFor(ruleIDs []string) []string {
	want := make(map[string]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		want[id] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, k := range m.Keys() {
		if !want[k] && !want[BaseID(k)] {
			continue
		}
		if def := m[k]; m.Automated(k) && !seen[def] {
			seen[def] = true
			out = append(out, def)
		}
	}
	sort.Strings(out)
	return out
}

// LoadMapping reads a JSON mapping file.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	return m, nil
}

// Save writes the mapping as indented JSON.
func (m Mapping) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write mapping %s: %w", path, err)
	}
	return nil
}
