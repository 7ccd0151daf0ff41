package oval

import (
	"encoding/xml"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// commonPrefix is the prefix bound to NamespaceCommon on every emitted root.
const commonPrefix = "oval"

// DefaultKeepNamespace lists the metadata leaves that stay in the common
// namespace when everything else is folded into the default namespace.
var DefaultKeepNamespace = []string{"product_name", "product_version", "schema_version", "timestamp"}

// SerializeOptions controls document output.
type SerializeOptions struct {
	KeepNamespace []string
	Indent        string
}

func (o SerializeOptions) keepSet() map[string]bool {
	names := o.KeepNamespace
	if names == nil {
		names = DefaultKeepNamespace
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	return keep
}

// Serialize renders the live node set as a standalone OVAL document.
func (g *Graph) Serialize(opts SerializeOptions) []byte {
	return xmltree.MarshalIndent(g.Document(opts), opts.Indent)
}

// Document builds a new oval_definitions root from the live node set. Every
// element is deep-copied, so the result never aliases the graph.
func (g *Graph) Document(opts SerializeOptions) *xmlquery.Node {
	w := newDocWriter(g.root, opts)
	if g.root != nil {
		w.setGenerator(xmltree.Child(g.root, "generator"))
	}
	for _, t := range sectionOrder {
		var els []*xmlquery.Node
		for _, n := range g.NodesOfType(t) {
			if n.Element != nil {
				els = append(els, n.Element)
			}
		}
		w.addSection(t, els)
	}
	return w.root
}

// docWriter assembles a normalized OVAL document section by section.
type docWriter struct {
	root *xmlquery.Node
	keep map[string]bool
}

func newDocWriter(src *xmlquery.Node, opts SerializeOptions) *docWriter {
	root := xmltree.NewElement("", NamespaceDefinitions, "oval_definitions")
	root.Attr = append(root.Attr,
		xmlquery.Attr{Name: xml.Name{Local: xmltree.NamespaceXMLNS}, Value: NamespaceDefinitions},
		xmlquery.Attr{Name: xml.Name{Space: xmltree.NamespaceXMLNS, Local: commonPrefix}, Value: NamespaceCommon},
	)
	if src != nil {
		for _, a := range src.Attr {
			if a.Name.Space == "" && !xmltree.IsNamespaceDecl(a) {
				root.Attr = append(root.Attr, xmlquery.Attr{Name: a.Name, Value: a.Value})
			}
		}
	}
	return &docWriter{root: root, keep: opts.keepSet()}
}

func (w *docWriter) setGenerator(src *xmlquery.Node) {
	if src == nil {
		return
	}
	gen := xmltree.Clone(src)
	w.normalize(gen)
	for _, c := range xmltree.ChildElements(gen) {
		xmltree.Walk(c, func(el *xmlquery.Node) bool {
			el.Prefix = commonPrefix
			el.NamespaceURI = NamespaceCommon
			return true
		})
	}
	xmlquery.AddChild(w.root, gen)
}

func (w *docWriter) addSection(t NodeType, els []*xmlquery.Node) {
	if len(els) == 0 {
		return
	}
	sec := xmltree.NewElement("", NamespaceDefinitions, t.Section())
	for _, el := range els {
		cp := xmltree.Clone(el)
		w.normalize(cp)
		xmlquery.AddChild(sec, cp)
	}
	xmlquery.AddChild(w.root, sec)
}

// normalize folds el and its subtree into the default namespace, except for
// the configured metadata leaves which are bound to the common namespace.
func (w *docWriter) normalize(el *xmlquery.Node) {
	xmltree.Walk(el, func(n *xmlquery.Node) bool {
		if w.keep[n.Data] {
			n.Prefix = commonPrefix
			n.NamespaceURI = NamespaceCommon
		} else {
			n.Prefix = ""
			n.NamespaceURI = NamespaceDefinitions
		}
		attrs := n.Attr[:0]
		for _, a := range n.Attr {
			if xmltree.IsNamespaceDecl(a) {
				continue
			}
			if a.Name.Space != xmltree.PrefixXML {
				a.Name.Space = ""
			}
			a.NamespaceURI = ""
			attrs = append(attrs, a)
		}
		n.Attr = attrs
		return true
	})
}
