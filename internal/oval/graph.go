package oval

import (
	"github.com/antchfx/xmlquery"
)

// Graph holds the live node set and the reverse adjacency of the children
// relation. It is not safe for concurrent mutation; use Clone to derive an
// independent view before pruning.
type Graph struct {
	nodes   map[string]*Node
	order   []string         // insertion order, may contain removed ids
	reverse map[string]idSet // child id → parent ids
	root    *xmlquery.Node   // source root element, read-only
	index   *Index
}

// NewGraph allocates an empty Graph over a source root element.
func NewGraph(root *xmlquery.Node, index *Index) *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		reverse: make(map[string]idSet),
		root:    root,
		index:   index,
	}
}

// AddNode registers a node by its ID. An existing node with the same ID is kept.
func (g *Graph) AddNode(n *Node) *Node {
	if existing, ok := g.nodes[n.ID]; ok {
		return existing
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return n
}

// AddEdge records that parent has child as a direct successor and keeps
// the reverse relation in step.
func (g *Graph) AddEdge(parentID, childID string) {
	parent, ok := g.nodes[parentID]
	if !ok {
		return
	}
	parent.Children.add(childID)
	refs, ok := g.reverse[childID]
	if !ok {
		refs = make(idSet)
		g.reverse[childID] = refs
	}
	refs.add(parentID)
}

// Node returns a node by ID (nil if not found).
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Has reports whether id is a live node.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Children returns the direct successors of a node, sorted.
func (g *Graph) Children(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.Children.sorted()
}

// Parents returns the live nodes that list id as a child, sorted.
func (g *Graph) Parents(id string) []string {
	return g.reverse[id].sorted()
}

// Nodes returns the live nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, id := range g.order {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// NodesOfType returns the live nodes of one type in insertion order.
func (g *Graph) NodesOfType(t NodeType) []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Definitions returns the IDs of live definition nodes in insertion order.
func (g *Graph) Definitions() []string {
	var out []string
	for _, n := range g.NodesOfType(NodeTypeDefinition) {
		out = append(out, n.ID)
	}
	return out
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Index returns the element index the graph was built from.
func (g *Graph) Index() *Index {
	return g.index
}

// Root returns the source root element. Callers must not modify it.
func (g *Graph) Root() *xmlquery.Node {
	return g.root
}

// Clone returns an independent graph over the same read-only elements.
func (g *Graph) Clone() *Graph {
	cp := &Graph{
		nodes:   make(map[string]*Node, len(g.nodes)),
		order:   make([]string, 0, len(g.nodes)),
		reverse: make(map[string]idSet, len(g.reverse)),
		root:    g.root,
		index:   g.index,
	}
	for _, id := range g.order {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		cp.nodes[id] = &Node{ID: n.ID, Type: n.Type, Element: n.Element, Children: n.Children.clone()}
		cp.order = append(cp.order, id)
	}
	for id, refs := range g.reverse {
		cp.reverse[id] = refs.clone()
	}
	return cp
}

// removeNode drops id from the node map together with every edge touching
// it, in both directions.
func (g *Graph) removeNode(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for child := range n.Children {
		if refs, ok := g.reverse[child]; ok {
			refs.remove(id)
			if len(refs) == 0 {
				delete(g.reverse, child)
			}
		}
	}
	for parent := range g.reverse[id] {
		if p, ok := g.nodes[parent]; ok {
			p.Children.remove(id)
		}
	}
	delete(g.reverse, id)
	delete(g.nodes, id)
}
