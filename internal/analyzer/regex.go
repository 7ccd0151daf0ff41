package analyzer

import (
	"regexp"
	"sort"

	"github.com/antchfx/xmlquery"
	"github.com/dlclark/regexp2"

	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// OperationPatternMatch is the operation attribute value that marks a regex field.
const OperationPatternMatch = "pattern match"

// unescaped matches the start of a construct that is not itself escaped by
// an odd run of backslashes.
const unescaped = `(?:^|[^\\])(?:\\\\)*`

// RegexRule is one named incompatible-construct detector.
type RegexRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// DefaultRegexRules returns the built-in detectors.
func DefaultRegexRules() []RegexRule {
	return []RegexRule{
		{Name: "word_boundary", Pattern: unescaped + `\\b`},
		{Name: "horizontal_whitespace", Pattern: unescaped + `\\h`},
		{Name: "lookahead_positive", Pattern: unescaped + `\(\?=`},
		{Name: "lookahead_negative", Pattern: unescaped + `\(\?!`},
		{Name: "lookbehind_positive", Pattern: unescaped + `\(\?<=`},
		{Name: "lookbehind_negative", Pattern: unescaped + `\(\?<!`},
	}
}

// RegexIssue is one incompatible construct found in one pattern field.
type RegexIssue struct {
	NodeID   string
	NodeType oval.NodeType
	Field    string
	Pattern  string
	Reason   string
	// Definitions lists every definition that transitively depends on the node.
	Definitions []string
	// SourceValid reports whether the pattern compiles in a backtracking
	// engine with lookaround support.
	SourceValid bool
	// TargetValid reports whether the pattern compiles as RE2.
	TargetValid bool
}

// RegexIssues scans every object and state for pattern-match fields and
// reports one issue per matching detector.
func (a *Analyzer) RegexIssues() []RegexIssue {
	var out []RegexIssue
	owners := make(map[string][]string)
	for _, n := range a.g.Nodes() {
		if n.Type != oval.NodeTypeObject && n.Type != oval.NodeTypeState {
			continue
		}
		xmltree.Walk(n.Element, func(el *xmlquery.Node) bool {
			if el.SelectAttr("operation") != OperationPatternMatch {
				return true
			}
			text := xmltree.Text(el)
			if text == "" {
				return true
			}
			for _, r := range a.rules {
				if !r.re.MatchString(text) {
					continue
				}
				defs, ok := owners[n.ID]
				if !ok {
					defs = a.owningDefinitions(n.ID)
					owners[n.ID] = defs
				}
				out = append(out, RegexIssue{
					NodeID:      n.ID,
					NodeType:    n.Type,
					Field:       el.Data,
					Pattern:     text,
					Reason:      r.name,
					Definitions: defs,
					SourceValid: compilesBacktracking(text),
					TargetValid: compilesRE2(text),
				})
			}
			return true
		})
	}
	return out
}

// owningDefinitions walks reverse edges from id and collects every
// definition met, continuing through definitions so that extending
// definitions are included.
func (a *Analyzer) owningDefinitions(id string) []string {
	seen := map[string]bool{id: true}
	queue := []string{id}
	var defs []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range a.g.Parents(cur) {
			if seen[p] {
				continue
			}
			seen[p] = true
			if n := a.g.Node(p); n != nil && n.Type == oval.NodeTypeDefinition {
				defs = append(defs, p)
			}
			queue = append(queue, p)
		}
	}
	sort.Strings(defs)
	return defs
}

func compilesBacktracking(pattern string) bool {
	_, err := regexp2.Compile(pattern, regexp2.None)
	return err == nil
}

func compilesRE2(pattern string) bool {
	_, err := regexp.Compile(pattern)
	return err == nil
}
