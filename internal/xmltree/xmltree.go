// Package xmltree holds the small set of tree operations shared by the OVAL,
// XCCDF and data-stream packages on top of xmlquery nodes.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
)

const (
	// NamespaceXMLNS is the prefix reserved for namespace declarations.
	NamespaceXMLNS = "xmlns"

	// PrefixXML is the reserved xml prefix (xml:lang, xml:space).
	PrefixXML = "xml"

	namespaceXML = "http://www.w3.org/XML/1998/namespace"

	defaultIndent = "  "
)

// Parse reads a whole document. It returns the document node and its root element.
func Parse(data []byte) (doc, root *xmlquery.Node, err error) {
	doc, err = xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	root = RootElement(doc)
	if root == nil {
		return nil, nil, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}
	return doc, root, nil
}

// RootElement returns the first element child of a document node.
func RootElement(doc *xmlquery.Node) *xmlquery.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// ChildElements returns the element children of n in document order.
func ChildElements(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first element child of n with the given local name.
func Child(n *xmlquery.Node, local string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == local {
			return c
		}
	}
	return nil
}

// Walk visits n and every descendant element in document order. Returning
// false from fn skips the subtree below the visited element.
func Walk(n *xmlquery.Node, fn func(*xmlquery.Node) bool) {
	stack := []*xmlquery.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type != xmlquery.ElementNode {
			continue
		}
		if !fn(cur) {
			continue
		}
		// push in reverse so the first child is visited first
		for c := cur.LastChild; c != nil; c = c.PrevSibling {
			if c.Type == xmlquery.ElementNode {
				stack = append(stack, c)
			}
		}
	}
}

// Descendants returns every element below n (n excluded) in document order.
func Descendants(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	Walk(n, func(e *xmlquery.Node) bool {
		if e != n {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Text returns the concatenated direct text children of n, trimmed.
func Text(n *xmlquery.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// SetText replaces the text children of n with a single text node.
func SetText(n *xmlquery.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			xmlquery.RemoveFromTree(c)
		}
		c = next
	}
	if text == "" {
		return
	}
	t := &xmlquery.Node{Type: xmlquery.TextNode, Data: text}
	if n.FirstChild == nil {
		xmlquery.AddChild(n, t)
		return
	}
	InsertBefore(n.FirstChild, t)
}

// IsNamespaceDecl reports whether a is an xmlns or xmlns:prefix attribute.
func IsNamespaceDecl(a xmlquery.Attr) bool {
	return a.Name.Space == NamespaceXMLNS || (a.Name.Space == "" && a.Name.Local == NamespaceXMLNS)
}

// NamespaceDecls returns the namespace declarations carried by n and its
// ancestors, nearest declaration winning, keyed by prefix ("" for default).
func NamespaceDecls(n *xmlquery.Node) map[string]string {
	out := make(map[string]string)
	for cur := n; cur != nil; cur = cur.Parent {
		for _, a := range cur.Attr {
			if !IsNamespaceDecl(a) {
				continue
			}
			prefix := ""
			if a.Name.Space == NamespaceXMLNS {
				prefix = a.Name.Local
			}
			if _, seen := out[prefix]; !seen {
				out[prefix] = a.Value
			}
		}
	}
	return out
}

// NewElement allocates a detached element.
func NewElement(prefix, namespace, local string) *xmlquery.Node {
	return &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         local,
		Prefix:       prefix,
		NamespaceURI: namespace,
	}
}

// NewElementLike allocates a detached element in the same namespace as ref.
func NewElementLike(ref *xmlquery.Node, local string) *xmlquery.Node {
	return NewElement(ref.Prefix, ref.NamespaceURI, local)
}

// Clone deep-copies n and its subtree. The copy is detached and shares no
// node or attribute storage with the original. Whitespace-only text between
// the children of an element-only element is dropped; text in mixed or
// text-only content is copied as is.
func Clone(n *xmlquery.Node) *xmlquery.Node {
	cp := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		cp.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(cp.Attr, n.Attr)
		for i := range cp.Attr {
			// the decoder leaves xml:* attributes keyed by namespace URI
			if cp.Attr[i].Name.Space == namespaceXML {
				cp.Attr[i].Name.Space = PrefixXML
			}
		}
	}
	skipBlank := elementOnly(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if skipBlank && isBlank(c) {
			continue
		}
		xmlquery.AddChild(cp, Clone(c))
	}
	return cp
}

// elementOnly reports whether n holds child elements and no text other than
// whitespace, so that whitespace between its children is not content.
func elementOnly(n *xmlquery.Node) bool {
	if n.Type != xmlquery.ElementNode || spacePreserved(n) {
		return false
	}
	hasElement := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.ElementNode:
			hasElement = true
		case xmlquery.CharDataNode:
			return false
		case xmlquery.TextNode:
			if !isBlank(c) {
				return false
			}
		}
	}
	return hasElement
}

func isBlank(n *xmlquery.Node) bool {
	return n.Type == xmlquery.TextNode && strings.TrimSpace(n.Data) == ""
}

// spacePreserved reports whether xml:space="preserve" is in effect at n.
func spacePreserved(n *xmlquery.Node) bool {
	for cur := n; cur != nil && cur.Type == xmlquery.ElementNode; cur = cur.Parent {
		for _, a := range cur.Attr {
			if a.Name.Local != "space" || (a.Name.Space != PrefixXML && a.Name.Space != namespaceXML) {
				continue
			}
			return a.Value == "preserve"
		}
	}
	return false
}

// Rehome clones n for insertion below dst. Every namespace declaration in
// scope at n's original position that is absent or bound differently at dst
// is declared on the copy, so the copy stays namespace-well-formed in its new
// place. A nil dst makes the copy a standalone document root.
func Rehome(n, dst *xmlquery.Node) *xmlquery.Node {
	cp := Clone(n)
	if n.Parent == nil {
		return cp
	}
	own := make(map[string]bool)
	for _, a := range n.Attr {
		if IsNamespaceDecl(a) {
			own[a.Name.Space+":"+a.Name.Local] = true
		}
	}
	have := map[string]string{}
	if dst != nil {
		have = NamespaceDecls(dst)
	}
	inherited := NamespaceDecls(n.Parent)
	prefixes := make([]string, 0, len(inherited))
	for p := range inherited {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		if v, ok := have[p]; ok && v == inherited[p] {
			continue
		}
		name := xml.Name{Space: NamespaceXMLNS, Local: p}
		if p == "" {
			name = xml.Name{Local: NamespaceXMLNS}
		}
		if own[name.Space+":"+name.Local] {
			continue
		}
		cp.Attr = append(cp.Attr, xmlquery.Attr{Name: name, Value: inherited[p]})
	}
	return cp
}

// Standalone clones n and copies onto the copy every namespace declaration
// in scope at n that n does not declare itself, so the copy can be written
// out as its own document.
func Standalone(n *xmlquery.Node) *xmlquery.Node {
	return Rehome(n, nil)
}

// InsertBefore links n into the tree as the previous sibling of ref.
func InsertBefore(ref, n *xmlquery.Node) {
	parent := ref.Parent
	n.Parent = parent
	n.NextSibling = ref
	n.PrevSibling = ref.PrevSibling
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else if parent != nil {
		parent.FirstChild = n
	}
	ref.PrevSibling = n
}

// Replace puts n where old was and detaches old.
func Replace(old, n *xmlquery.Node) {
	InsertBefore(old, n)
	xmlquery.RemoveFromTree(old)
}

// Marshal renders a document node or an element as indented UTF-8 XML. The
// input tree is never modified.
func Marshal(n *xmlquery.Node) []byte {
	return MarshalIndent(n, defaultIndent)
}

// MarshalIndent is Marshal with a caller-chosen indentation unit. Only
// element-only content is indented; mixed and text-only elements are written
// exactly as they are so their text keeps its whitespace.
func MarshalIndent(n *xmlquery.Node, indent string) []byte {
	if indent == "" {
		indent = defaultIndent
	}
	if n.Type == xmlquery.DocumentNode {
		if root := RootElement(n); root != nil {
			n = root
		}
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	writeIndented(&b, Clone(n), indent, 0)
	b.WriteString("\n")
	return []byte(b.String())
}

func writeIndented(b *strings.Builder, n *xmlquery.Node, indent string, level int) {
	b.WriteString("\n")
	b.WriteString(strings.Repeat(indent, level))
	if !elementOnly(n) {
		b.WriteString(n.OutputXMLWithOptions(
			xmlquery.WithOutputSelf(),
			xmlquery.WithEmptyTagSupport(),
			xmlquery.WithPreserveSpace(),
		))
		return
	}
	name := n.Data
	if n.Prefix != "" {
		name = n.Prefix + ":" + name
	}
	b.WriteString("<" + name)
	for _, a := range n.Attr {
		b.WriteString(" ")
		if a.Name.Space != "" {
			b.WriteString(a.Name.Space + ":")
		}
		// same escaping xmlquery applies to the subtrees it writes
		b.WriteString(a.Name.Local + `="` + html.EscapeString(a.Value) + `"`)
	}
	b.WriteString(">")
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.ElementNode:
			writeIndented(b, c, indent, level+1)
		case xmlquery.CommentNode:
			b.WriteString("\n" + strings.Repeat(indent, level+1) + "<!--" + c.Data + "-->")
		}
	}
	b.WriteString("\n" + strings.Repeat(indent, level) + "</" + name + ">")
}
