package xccdf

import (
	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// ExtractRule builds a minimal benchmark holding the rule, its enclosing
// Group chain reduced to title and description, and every Value the rule
// refers to by id. The result shares no nodes with d.
func (d *Document) ExtractRule(ruleID string) (*Document, error) {
	rule, ok := d.Rule(ruleID)
	if !ok {
		return nil, xmltree.NotFound("rule", ruleID)
	}

	var chain []*xmlquery.Node
	for p := rule.Parent; isXCCDF(p, "Group"); p = p.Parent {
		chain = append(chain, p)
	}

	root := shallowCopy(d.root)
	parent := root
	for i := len(chain) - 1; i >= 0; i-- {
		g := shallowCopy(chain[i])
		xmlquery.AddChild(parent, g)
		for _, c := range xmltree.ChildElements(chain[i]) {
			if c.Data == "title" || c.Data == "description" {
				xmlquery.AddChild(g, xmltree.Rehome(c, g))
			}
		}
		parent = g
	}
	xmlquery.AddChild(parent, xmltree.Rehome(rule, parent))

	refs := d.valueRefs(rule)
	xmltree.Walk(d.root, func(el *xmlquery.Node) bool {
		if !isXCCDF(el, "Value") {
			return true
		}
		if id := el.SelectAttr("id"); refs[id] && d.index[KindValue][id] == el {
			xmlquery.AddChild(root, xmltree.Rehome(el, root))
		}
		return false
	})
	return FromRoot(root)
}

// valueRefs collects the known Value ids named by any attribute value or
// element text below the rule.
func (d *Document) valueRefs(rule *xmlquery.Node) map[string]bool {
	refs := make(map[string]bool)
	for _, el := range xmltree.Descendants(rule) {
		for _, a := range el.Attr {
			if _, ok := d.index[KindValue][a.Value]; ok {
				refs[a.Value] = true
			}
		}
		if text := xmltree.Text(el); text != "" {
			if _, ok := d.index[KindValue][text]; ok {
				refs[text] = true
			}
		}
	}
	return refs
}

// shallowCopy copies an element with its attributes, namespace
// declarations included, but none of its children.
func shallowCopy(el *xmlquery.Node) *xmlquery.Node {
	cp := xmltree.NewElementLike(el, el.Data)
	cp.Attr = append([]xmlquery.Attr(nil), el.Attr...)
	return cp
}
