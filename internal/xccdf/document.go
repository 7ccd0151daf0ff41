// Package xccdf slices single rules out of an XCCDF benchmark and merges
// edited fragments back into the master document.
package xccdf

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// NamespacePrefix is shared by every XCCDF schema version namespace.
const NamespacePrefix = "http://checklists.nist.gov/xccdf/"

// Kind is one of the id-bearing structural element types.
type Kind string

const (
	KindRule    Kind = "Rule"
	KindGroup   Kind = "Group"
	KindValue   Kind = "Value"
	KindProfile Kind = "Profile"
)

// Document is a parsed benchmark with its structural elements indexed by id.
// Vendor extension content is carried through untouched.
type Document struct {
	root       *xmlquery.Node
	index      map[Kind]map[string]*xmlquery.Node
	signatures []*xmlquery.Node
}

// Parse reads a Benchmark document.
func Parse(data []byte) (*Document, error) {
	_, root, err := xmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	return FromRoot(root)
}

// FromRoot indexes an already parsed Benchmark element. The document takes
// ownership of the tree.
func FromRoot(root *xmlquery.Node) (*Document, error) {
	if !isXCCDF(root, "Benchmark") {
		return nil, xmltree.WrongType("benchmark", root.Data)
	}
	d := &Document{root: root}
	d.reindex()
	return d, nil
}

func isXCCDF(el *xmlquery.Node, local string) bool {
	return el != nil && el.Type == xmlquery.ElementNode && el.Data == local &&
		strings.HasPrefix(el.NamespaceURI, NamespacePrefix)
}

func kindOf(el *xmlquery.Node) (Kind, bool) {
	if !strings.HasPrefix(el.NamespaceURI, NamespacePrefix) {
		return "", false
	}
	switch k := Kind(el.Data); k {
	case KindRule, KindGroup, KindValue, KindProfile:
		return k, true
	}
	return "", false
}

func (d *Document) reindex() {
	d.index = map[Kind]map[string]*xmlquery.Node{
		KindRule:    {},
		KindGroup:   {},
		KindValue:   {},
		KindProfile: {},
	}
	d.signatures = nil
	d.indexSubtree(d.root)
}

func (d *Document) indexSubtree(n *xmlquery.Node) {
	xmltree.Walk(n, func(el *xmlquery.Node) bool {
		if isXCCDF(el, "signature") {
			d.signatures = append(d.signatures, el)
			return false
		}
		if k, ok := kindOf(el); ok {
			if id := el.SelectAttr("id"); id != "" {
				d.index[k][id] = el
			}
		}
		return true
	})
}

func (d *Document) unindexSubtree(n *xmlquery.Node) {
	xmltree.Walk(n, func(el *xmlquery.Node) bool {
		if k, ok := kindOf(el); ok {
			if id := el.SelectAttr("id"); id != "" && d.index[k][id] == el {
				delete(d.index[k], id)
			}
		}
		return true
	})
}

// Root returns the Benchmark element.
func (d *Document) Root() *xmlquery.Node { return d.root }

// Lookup returns the element of kind k with the given id.
func (d *Document) Lookup(k Kind, id string) (*xmlquery.Node, bool) {
	el, ok := d.index[k][id]
	return el, ok
}

// Rule returns the Rule element with the given id.
func (d *Document) Rule(id string) (*xmlquery.Node, bool) { return d.Lookup(KindRule, id) }

// Value returns the Value element with the given id.
func (d *Document) Value(id string) (*xmlquery.Node, bool) { return d.Lookup(KindValue, id) }

// IDs returns the ids of every element of kind k in document order.
func (d *Document) IDs(k Kind) []string {
	var out []string
	xmltree.Walk(d.root, func(el *xmlquery.Node) bool {
		if kk, ok := kindOf(el); ok && kk == k {
			if id := el.SelectAttr("id"); id != "" && d.index[k][id] == el {
				out = append(out, id)
			}
		}
		return true
	})
	return out
}

// Signatures returns the preserved signature blocks in document order.
func (d *Document) Signatures() []*xmlquery.Node {
	return d.signatures
}

// Clone returns an independent deep copy.
func (d *Document) Clone() *Document {
	cp := &Document{root: xmltree.Clone(d.root)}
	cp.reindex()
	return cp
}

// Bytes renders the document as indented XML.
func (d *Document) Bytes() []byte {
	return xmltree.Marshal(d.root)
}

// appendToRoot adds el as a root child, keeping signature blocks last.
func (d *Document) appendToRoot(el *xmlquery.Node) {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if isXCCDF(c, "signature") {
			xmltree.InsertBefore(c, el)
			return
		}
	}
	xmlquery.AddChild(d.root, el)
}
