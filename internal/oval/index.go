package oval

import (
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// ConflictPolicy decides what happens when two elements carry the same id.
type ConflictPolicy string

const (
	KeepLast  ConflictPolicy = "keep_last"
	KeepFirst ConflictPolicy = "keep_first"
	Reject    ConflictPolicy = "reject"
)

// Valid reports whether p is a known policy. The empty policy means KeepLast.
func (p ConflictPolicy) Valid() bool {
	switch p {
	case "", KeepLast, KeepFirst, Reject:
		return true
	}
	return false
}

// Index maps every element id in a document to its element.
type Index struct {
	byID       map[string]*xmlquery.Node
	kinds      map[string]NodeType
	duplicates []string
}

// NewIndex records every element below root that has a non-empty id
// attribute, in a single pass.
func NewIndex(root *xmlquery.Node, policy ConflictPolicy) (*Index, error) {
	ix := &Index{
		byID:  make(map[string]*xmlquery.Node),
		kinds: make(map[string]NodeType),
	}
	var err error
	xmltree.Walk(root, func(el *xmlquery.Node) bool {
		if err != nil {
			return false
		}
		id := el.SelectAttr("id")
		if id == "" {
			return true
		}
		if _, seen := ix.byID[id]; seen {
			ix.duplicates = append(ix.duplicates, id)
			switch policy {
			case Reject:
				err = &xmltree.LookupError{Kind: "element", ID: id, Err: xmltree.ErrDuplicateID}
				return false
			case KeepFirst:
				return true
			}
		}
		ix.byID[id] = el
		if kind, ok := KindOf(el); ok {
			ix.kinds[id] = kind
		} else {
			delete(ix.kinds, id)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return ix, nil
}

// Lookup returns the element registered under id.
func (ix *Index) Lookup(id string) (*xmlquery.Node, bool) {
	el, ok := ix.byID[id]
	return el, ok
}

// Kind returns the element kind recorded for id at index time.
func (ix *Index) Kind(id string) (NodeType, bool) {
	k, ok := ix.kinds[id]
	return k, ok
}

// Len returns the number of distinct ids.
func (ix *Index) Len() int {
	return len(ix.byID)
}

// Duplicates returns every id seen more than once, once per repeat.
func (ix *Index) Duplicates() []string {
	return ix.duplicates
}
