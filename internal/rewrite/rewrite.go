// Package rewrite canonicalizes a single-rule OVAL document and swaps a
// platform-specific trustee identifier check for a variable-bound pattern
// match, producing the XCCDF patch that binds the new variable.
package rewrite

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
	"github.com/gyaneshwarpardhi/scapslice/internal/xccdf"
	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// ErrTitlePattern is returned when the title carries no quoted value list to
// build the trustee pattern from.
var ErrTitlePattern = errors.New("title has no quoted value list")

const defaultVariableComment = "Trustee name variable"

var (
	quotedToken = regexp.MustCompile(`'([^']*)'`)
	xccdfRuleID = regexp.MustCompile(`^xccdf_(.+?)_rule_(.+)$`)
)

// Options names the canonical ids and the fields involved in the swap.
type Options struct {
	DefinitionID     string `yaml:"definition_id"`
	TestIDFormat     string `yaml:"test_id_format"`
	StateIDFormat    string `yaml:"state_id_format"`
	VariableIDFormat string `yaml:"variable_id_format"`
	TrusteeField     string `yaml:"trustee_field"`
	ReplacementField string `yaml:"replacement_field"`
	AnchorEnd        bool   `yaml:"anchor_end"`
}

// DefaultOptions returns the canonical naming scheme.
func DefaultOptions() Options {
	return Options{
		DefinitionID:     "def1",
		TestIDFormat:     "tst%d",
		StateIDFormat:    "ste%d",
		VariableIDFormat: "var%d",
		TrusteeField:     "trustee_sid",
		ReplacementField: "trustee_name",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DefinitionID == "" {
		o.DefinitionID = d.DefinitionID
	}
	if o.TestIDFormat == "" {
		o.TestIDFormat = d.TestIDFormat
	}
	if o.StateIDFormat == "" {
		o.StateIDFormat = d.StateIDFormat
	}
	if o.VariableIDFormat == "" {
		o.VariableIDFormat = d.VariableIDFormat
	}
	if o.TrusteeField == "" {
		o.TrusteeField = d.TrusteeField
	}
	if o.ReplacementField == "" {
		o.ReplacementField = d.ReplacementField
	}
	return o
}

// Input is one extracted rule.
type Input struct {
	RuleID string
	// Title is the rule title the trustee list is read from. The OVAL
	// definition title is used when empty.
	Title string
	OVAL  []byte
}

// Result is the rewritten document and the patch for the XCCDF side.
type Result struct {
	OVAL            []byte
	OldDefinitionID string
	NewDefinitionID string
	Renames         map[string]string
	Variables       []string
	Pattern         string
	Patch           xccdf.CheckPatch
}

// Rewriter applies the canonicalizing transform.
type Rewriter struct {
	opts Options
}

// New returns a Rewriter; empty option fields take their defaults.
func New(opts Options) *Rewriter {
	return &Rewriter{opts: opts.withDefaults()}
}

// Rewrite transforms in.OVAL. It returns nil and no error when no state
// carries the trustee field, meaning the transform does not apply.
func (r *Rewriter) Rewrite(in Input) (*Result, error) {
	_, root, err := xmltree.Parse(in.OVAL)
	if err != nil {
		return nil, err
	}

	var defs, tests, states []*xmlquery.Node
	extended := make(map[string]bool)
	xmltree.Walk(root, func(el *xmlquery.Node) bool {
		if el.Data == "extend_definition" {
			extended[el.SelectAttr("definition_ref")] = true
		}
		if el.SelectAttr("id") == "" {
			return true
		}
		switch kind, _ := oval.KindOf(el); kind {
		case oval.NodeTypeDefinition:
			defs = append(defs, el)
		case oval.NodeTypeTest:
			tests = append(tests, el)
		case oval.NodeTypeState:
			states = append(states, el)
		}
		return true
	})
	if !r.hasTrustee(states) {
		return nil, nil
	}
	def := primaryDefinition(defs, extended)
	if def == nil {
		return nil, xmltree.NotFound("definition", in.RuleID)
	}

	title := in.Title
	if title == "" {
		title = definitionTitle(def)
	}
	pattern, err := r.trusteePattern(title)
	if err != nil {
		return nil, fmt.Errorf("rewrite %s: %w", in.RuleID, err)
	}

	res := &Result{
		OldDefinitionID: def.SelectAttr("id"),
		NewDefinitionID: r.opts.DefinitionID,
		Renames:         make(map[string]string),
		Pattern:         pattern,
	}
	res.Renames[res.OldDefinitionID] = r.opts.DefinitionID
	for i, el := range tests {
		res.Renames[el.SelectAttr("id")] = fmt.Sprintf(r.opts.TestIDFormat, i+1)
	}
	for i, el := range states {
		res.Renames[el.SelectAttr("id")] = fmt.Sprintf(r.opts.StateIDFormat, i+1)
		fields := r.trusteeFields(el)
		if len(fields) == 0 {
			continue
		}
		varID := fmt.Sprintf(r.opts.VariableIDFormat, len(res.Variables)+1)
		res.Variables = append(res.Variables, varID)
		for _, f := range fields {
			xmltree.Replace(f, r.replacementField(f, varID))
		}
	}
	renameAll(root, res.Renames)

	comment := definitionTitle(def)
	if comment == "" {
		comment = defaultVariableComment
	}
	vars := variablesSection(root)
	for _, id := range res.Variables {
		v := xmltree.NewElementLike(root, "external_variable")
		xmlquery.AddAttr(v, "id", id)
		xmlquery.AddAttr(v, "datatype", "string")
		xmlquery.AddAttr(v, "comment", comment)
		xmlquery.AddAttr(v, "version", "1")
		xmlquery.AddChild(vars, v)
	}

	res.Patch = xccdf.CheckPatch{
		RuleID:          in.RuleID,
		OldDefinitionID: res.OldDefinitionID,
		NewDefinitionID: res.NewDefinitionID,
	}
	for _, id := range res.Variables {
		valueID := ValueID(in.RuleID, id)
		res.Patch.Exports = append(res.Patch.Exports, xccdf.CheckExport{ValueID: valueID, ExportName: id})
		res.Patch.Values = append(res.Patch.Values, xccdf.ValueSpec{
			ID:       valueID,
			Title:    comment,
			Type:     "string",
			Operator: "pattern match",
			Value:    pattern,
		})
	}
	res.OVAL = xmltree.Marshal(root)
	return res, nil
}

func (r *Rewriter) hasTrustee(states []*xmlquery.Node) bool {
	for _, s := range states {
		if len(r.trusteeFields(s)) > 0 {
			return true
		}
	}
	return false
}

func (r *Rewriter) trusteeFields(state *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for _, el := range xmltree.Descendants(state) {
		if el.Data == r.opts.TrusteeField {
			out = append(out, el)
		}
	}
	return out
}

func (r *Rewriter) replacementField(old *xmlquery.Node, varID string) *xmlquery.Node {
	el := xmltree.NewElementLike(old, r.opts.ReplacementField)
	xmlquery.AddAttr(el, "var_ref", varID)
	xmlquery.AddAttr(el, "datatype", "string")
	xmlquery.AddAttr(el, "operation", "pattern match")
	return el
}

// trusteePattern turns the second quoted token of title, a comma separated
// list, into an anchored alternation.
func (r *Rewriter) trusteePattern(title string) (string, error) {
	m := quotedToken.FindAllStringSubmatch(title, -1)
	if len(m) < 2 {
		return "", ErrTitlePattern
	}
	var alts []string
	for _, part := range strings.Split(m[1][1], ",") {
		if part = strings.TrimSpace(part); part != "" {
			alts = append(alts, regexp.QuoteMeta(part))
		}
	}
	if len(alts) == 0 {
		return "", ErrTitlePattern
	}
	p := "^(" + strings.Join(alts, "|") + ")"
	if r.opts.AnchorEnd {
		p += "$"
	}
	return p, nil
}

// ValueID derives the XCCDF Value id bound to a variable of a rule.
func ValueID(ruleID, varID string) string {
	if m := xccdfRuleID.FindStringSubmatch(ruleID); m != nil {
		return fmt.Sprintf("xccdf_%s_value_%s_%s", m[1], m[2], varID)
	}
	return ruleID + "_" + varID
}

// primaryDefinition picks the definition no other definition extends.
func primaryDefinition(defs []*xmlquery.Node, extended map[string]bool) *xmlquery.Node {
	for _, d := range defs {
		if !extended[d.SelectAttr("id")] {
			return d
		}
	}
	if len(defs) > 0 {
		return defs[0]
	}
	return nil
}

func definitionTitle(def *xmlquery.Node) string {
	for _, el := range xmltree.Descendants(def) {
		if el.Data == "title" {
			return xmltree.Text(el)
		}
	}
	return ""
}

// renameAll rewrites every attribute value equal to an old id, plus the
// text of the elements that reference ids by content.
func renameAll(root *xmlquery.Node, renames map[string]string) {
	xmltree.Walk(root, func(el *xmlquery.Node) bool {
		for i, a := range el.Attr {
			if xmltree.IsNamespaceDecl(a) {
				continue
			}
			if to, ok := renames[a.Value]; ok {
				el.Attr[i].Value = to
			}
		}
		if el.Data == "filter" || el.Data == "object_reference" {
			if to, ok := renames[xmltree.Text(el)]; ok {
				xmltree.SetText(el, to)
			}
		}
		return true
	})
}

func variablesSection(root *xmlquery.Node) *xmlquery.Node {
	if v := xmltree.Child(root, "variables"); v != nil {
		return v
	}
	v := xmltree.NewElementLike(root, "variables")
	xmlquery.AddChild(root, v)
	return v
}
