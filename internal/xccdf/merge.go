package xccdf

import (
	"encoding/xml"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// MergeReport lists what a merge did, by kind and id.
type MergeReport struct {
	Replaced []string
	Added    []string
}

// Merge applies edited fragments to a copy of master and returns it. For
// every Value, Group, Rule and Profile in a fragment, in document order, an
// element with the same id in master is replaced in place. A new element is
// appended to the master Group matching its fragment parent, or at the root
// when there is none. Later fragments win. Groups already in master only
// take the fragment's attributes and header children, so that sibling rules
// which the fragment does not carry are kept.
func Merge(master *Document, fragments ...*Document) (*Document, MergeReport) {
	out := master.Clone()
	var rep MergeReport
	for _, f := range fragments {
		xmltree.Walk(f.root, func(el *xmlquery.Node) bool {
			if el == f.root {
				return true
			}
			k, ok := kindOf(el)
			if !ok {
				return true
			}
			id := el.SelectAttr("id")
			if id == "" {
				return true
			}
			existing, found := out.Lookup(k, id)
			switch {
			case !found:
				if g := out.enclosingGroup(el, f.root); g != nil {
					cp := xmltree.Rehome(el, g)
					xmlquery.AddChild(g, cp)
					out.indexSubtree(cp)
				} else {
					cp := xmltree.Rehome(el, out.root)
					out.appendToRoot(cp)
					out.indexSubtree(cp)
				}
				rep.Added = append(rep.Added, string(k)+":"+id)
				return false
			case k == KindGroup:
				mergeGroupHeader(existing, el)
				rep.Replaced = append(rep.Replaced, string(k)+":"+id)
				return true
			default:
				cp := xmltree.Rehome(el, existing.Parent)
				out.unindexSubtree(existing)
				xmltree.Replace(existing, cp)
				out.indexSubtree(cp)
				rep.Replaced = append(rep.Replaced, string(k)+":"+id)
				return false
			}
		})
	}
	out.signatures = nil
	xmltree.Walk(out.root, func(el *xmlquery.Node) bool {
		if isXCCDF(el, "signature") {
			out.signatures = append(out.signatures, el)
			return false
		}
		return true
	})
	return out, rep
}

// enclosingGroup returns the Group in d with the id of el's parent in the
// fragment, or nil when el sits directly under the fragment root.
func (d *Document) enclosingGroup(el, fragmentRoot *xmlquery.Node) *xmlquery.Node {
	p := el.Parent
	if p == nil || p == fragmentRoot || !isXCCDF(p, "Group") {
		return nil
	}
	g, ok := d.Lookup(KindGroup, p.SelectAttr("id"))
	if !ok {
		return nil
	}
	return g
}

func isStructural(el *xmlquery.Node) bool {
	k, ok := kindOf(el)
	return ok && (k == KindGroup || k == KindRule || k == KindValue)
}

// mergeGroupHeader replaces dst's attributes and non-structural children
// with those of src, leaving dst's nested Groups, Rules and Values alone.
// Namespace declarations of dst that src does not redeclare are kept, since
// the nested content may use them.
func mergeGroupHeader(dst, src *xmlquery.Node) {
	attrs := append([]xmlquery.Attr(nil), src.Attr...)
	declared := make(map[xml.Name]bool)
	for _, a := range attrs {
		declared[a.Name] = true
	}
	for _, a := range dst.Attr {
		if xmltree.IsNamespaceDecl(a) && !declared[a.Name] {
			attrs = append(attrs, a)
		}
	}
	dst.Attr = attrs
	for c := dst.FirstChild; c != nil; {
		next := c.NextSibling
		if !isStructural(c) {
			xmlquery.RemoveFromTree(c)
		}
		c = next
	}
	first := dst.FirstChild
	for _, c := range xmltree.ChildElements(src) {
		if isStructural(c) {
			continue
		}
		cp := xmltree.Rehome(c, dst)
		if first != nil {
			xmltree.InsertBefore(first, cp)
		} else {
			xmlquery.AddChild(dst, cp)
		}
	}
}
