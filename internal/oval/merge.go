package oval

import (
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// Merge combines several OVAL documents into one. Within each section the
// first element seen with a given id wins; the generator comes from the first
// document that has one.
func Merge(opts SerializeOptions, docs ...[]byte) ([]byte, error) {
	roots := make([]*xmlquery.Node, 0, len(docs))
	for i, data := range docs {
		_, root, err := xmltree.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("merge: document %d: %w", i, err)
		}
		roots = append(roots, root)
	}
	return xmltree.MarshalIndent(MergeRoots(opts, roots...), opts.Indent), nil
}

// MergeRoots is Merge over parsed root elements.
func MergeRoots(opts SerializeOptions, roots ...*xmlquery.Node) *xmlquery.Node {
	var first *xmlquery.Node
	if len(roots) > 0 {
		first = roots[0]
	}
	w := newDocWriter(first, opts)
	for _, root := range roots {
		if gen := xmltree.Child(root, "generator"); gen != nil {
			w.setGenerator(gen)
			break
		}
	}
	for _, t := range sectionOrder {
		seen := make(map[string]bool)
		var els []*xmlquery.Node
		for _, root := range roots {
			sec := xmltree.Child(root, t.Section())
			if sec == nil {
				continue
			}
			for _, el := range xmltree.ChildElements(sec) {
				id := el.SelectAttr("id")
				if id == "" || seen[id] {
					continue
				}
				seen[id] = true
				els = append(els, el)
			}
		}
		w.addSection(t, els)
	}
	return w.root
}
