package oval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
)

const (
	// NamespaceDefinitions is the OVAL definitions schema namespace.
	NamespaceDefinitions = "http://oval.mitre.org/XMLSchema/oval-definitions-5"
	// NamespaceCommon is the OVAL common schema namespace used by generator fields.
	NamespaceCommon = "http://oval.mitre.org/XMLSchema/oval-common-5"
)

// NodeType discriminates the six kinds of graph nodes.
type NodeType string

const (
	NodeTypeDefinition NodeType = "definition"
	NodeTypeCriterion  NodeType = "criterion"
	NodeTypeTest       NodeType = "test"
	NodeTypeObject     NodeType = "object"
	NodeTypeState      NodeType = "state"
	NodeTypeVariable   NodeType = "variable"
)

// sectionOrder is the fixed order of output sections.
var sectionOrder = []NodeType{
	NodeTypeDefinition,
	NodeTypeTest,
	NodeTypeObject,
	NodeTypeState,
	NodeTypeVariable,
}

// Section returns the document section holding elements of this type.
// Criteria live inside their definition and have no section.
func (t NodeType) Section() string {
	switch t {
	case NodeTypeDefinition, NodeTypeTest, NodeTypeObject, NodeTypeState, NodeTypeVariable:
		return string(t) + "s"
	}
	return ""
}

// KindOf classifies an element from its qualified name. It is computed once
// when the element is indexed. Only elements in the definitions namespace or
// one of its platform extensions (".../oval-definitions-5#windows") count.
func KindOf(el *xmlquery.Node) (NodeType, bool) {
	if el.Type != xmlquery.ElementNode || !strings.HasPrefix(el.NamespaceURI, NamespaceDefinitions) {
		return "", false
	}
	local := el.Data
	switch {
	case local == "definition":
		return NodeTypeDefinition, true
	case local == "criterion":
		return NodeTypeCriterion, true
	case strings.HasSuffix(local, "_test"):
		return NodeTypeTest, true
	case strings.HasSuffix(local, "_object"):
		return NodeTypeObject, true
	case strings.HasSuffix(local, "_state"):
		return NodeTypeState, true
	case strings.HasSuffix(local, "_variable"):
		return NodeTypeVariable, true
	}
	return "", false
}

// CriterionID is the composite key of a criterion occurrence.
func CriterionID(definitionID, testRef string) string {
	return fmt.Sprintf("criterion:%s:%s", definitionID, testRef)
}

// Node is one vertex of the reference graph. Element is owned by the graph
// and must be treated as read-only; serialized output always copies it.
type Node struct {
	ID       string
	Type     NodeType
	Element  *xmlquery.Node
	Children idSet
}

func newNode(id string, typ NodeType, el *xmlquery.Node) *Node {
	return &Node{ID: id, Type: typ, Element: el, Children: make(idSet)}
}

// Tag returns the local (namespace-stripped) tag of the node's element.
func (n *Node) Tag() string {
	if n.Element == nil {
		return ""
	}
	return n.Element.Data
}

// ChildIDs returns the node's children in sorted order.
func (n *Node) ChildIDs() []string {
	return n.Children.sorted()
}

// idSet is a set of node ids.
type idSet map[string]struct{}

func (s idSet) add(id string) { s[id] = struct{}{} }
func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) remove(id string) { delete(s, id) }

func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s idSet) clone() idSet {
	out := make(idSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}
