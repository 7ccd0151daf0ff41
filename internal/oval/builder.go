package oval

import (
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// BuildOptions controls graph construction.
type BuildOptions struct {
	ConflictPolicy ConflictPolicy
}

// Build parses an OVAL definitions document and constructs its reference graph.
// References to ids missing from the document are skipped, not reported.
func Build(data []byte, opts BuildOptions) (*Graph, error) {
	_, root, err := xmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	return BuildFromRoot(root, opts)
}

// BuildFromRoot constructs the graph over an already parsed root element.
// The graph keeps pointers into the tree, which must not be mutated afterwards.
func BuildFromRoot(root *xmlquery.Node, opts BuildOptions) (*Graph, error) {
	if !opts.ConflictPolicy.Valid() {
		return nil, fmt.Errorf("build: unknown conflict policy %q", opts.ConflictPolicy)
	}
	ix, err := NewIndex(root, opts.ConflictPolicy)
	if err != nil {
		return nil, err
	}
	b := &builder{g: NewGraph(root, ix), ix: ix}
	defs := xmltree.Child(root, "definitions")
	if defs == nil {
		return b.g, nil
	}
	for _, el := range xmltree.ChildElements(defs) {
		if el.Data != "definition" {
			continue
		}
		if id := el.SelectAttr("id"); id != "" {
			b.materialize(id)
		}
	}
	return b.g, nil
}

type builder struct {
	g     *Graph
	ix    *Index
	stack []string
}

// materialize adds id and everything reachable from it. Already visited
// nodes are not expanded twice, which also breaks extend_definition cycles.
func (b *builder) materialize(id string) {
	if b.g.Has(id) {
		return
	}
	el, ok := b.ix.Lookup(id)
	if !ok {
		return
	}
	kind, ok := b.ix.Kind(id)
	if !ok || kind != NodeTypeDefinition {
		return
	}
	b.g.AddNode(newNode(id, kind, el))
	b.stack = append(b.stack[:0], id)
	for len(b.stack) > 0 {
		cur := b.g.Node(b.stack[len(b.stack)-1])
		b.stack = b.stack[:len(b.stack)-1]
		b.expand(cur)
	}
}

func (b *builder) expand(n *Node) {
	switch n.Type {
	case NodeTypeDefinition:
		b.expandDefinition(n)
	case NodeTypeTest:
		xmltree.Walk(n.Element, func(el *xmlquery.Node) bool {
			switch el.Data {
			case "object":
				b.link(n.ID, el.SelectAttr("object_ref"), NodeTypeObject)
			case "state":
				b.link(n.ID, el.SelectAttr("state_ref"), NodeTypeState)
			}
			return true
		})
	case NodeTypeObject:
		xmltree.Walk(n.Element, func(el *xmlquery.Node) bool {
			switch el.Data {
			case "object_reference":
				b.link(n.ID, xmltree.Text(el), NodeTypeObject)
			case "filter":
				b.link(n.ID, xmltree.Text(el), NodeTypeState)
			}
			b.linkAttr(n.ID, el, "var_ref", NodeTypeVariable)
			return true
		})
	case NodeTypeState:
		xmltree.Walk(n.Element, func(el *xmlquery.Node) bool {
			b.linkAttr(n.ID, el, "var_ref", NodeTypeVariable)
			return true
		})
	case NodeTypeVariable:
		xmltree.Walk(n.Element, func(el *xmlquery.Node) bool {
			b.linkAttr(n.ID, el, "var_ref", NodeTypeVariable)
			b.linkAttr(n.ID, el, "object_ref", NodeTypeObject)
			return true
		})
	}
}

func (b *builder) expandDefinition(n *Node) {
	xmltree.Walk(n.Element, func(el *xmlquery.Node) bool {
		switch el.Data {
		case "extend_definition":
			b.link(n.ID, el.SelectAttr("definition_ref"), NodeTypeDefinition)
		case "criterion":
			ref := el.SelectAttr("test_ref")
			if ref == "" {
				return true
			}
			cid := CriterionID(n.ID, ref)
			b.g.AddNode(newNode(cid, NodeTypeCriterion, el))
			b.g.AddEdge(n.ID, cid)
			b.link(cid, ref, NodeTypeTest)
		}
		return true
	})
}

func (b *builder) linkAttr(parentID string, el *xmlquery.Node, attr string, want NodeType) {
	for _, a := range el.Attr {
		if a.Name.Local == attr && a.Name.Space == "" {
			b.link(parentID, a.Value, want)
		}
	}
}

// link adds the edge parent → target when target is indexed with the wanted
// kind, scheduling target for expansion the first time it is seen.
func (b *builder) link(parentID, target string, want NodeType) {
	if target == "" {
		return
	}
	kind, ok := b.ix.Kind(target)
	if !ok || kind != want {
		return
	}
	if !b.g.Has(target) {
		el, _ := b.ix.Lookup(target)
		b.g.AddNode(newNode(target, kind, el))
		b.stack = append(b.stack, target)
	}
	b.g.AddEdge(parentID, target)
}
