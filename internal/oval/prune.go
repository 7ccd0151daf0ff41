package oval

import (
	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// CascadeOptions tunes CascadeDelete.
type CascadeOptions struct {
	// ReverseExtend also deletes every definition that extends a deleted
	// definition, cascading from there as usual.
	ReverseExtend bool
}

// RetainReachableFrom keeps exactly the nodes reachable from roots through
// children edges and deletes everything else. Reference counts are ignored.
// Every root must be a live definition; nothing is removed otherwise.
func (g *Graph) RetainReachableFrom(roots []string) error {
	for _, id := range roots {
		if err := g.checkDefinition(id); err != nil {
			return err
		}
	}
	keep := g.reachable(roots)
	for _, id := range g.order {
		if _, ok := g.nodes[id]; ok && !keep.has(id) {
			g.removeNode(id)
		}
	}
	g.compact()
	return nil
}

// Reachable returns the ids reachable from roots, roots included, sorted.
// Unknown roots contribute nothing.
func (g *Graph) Reachable(roots ...string) []string {
	return g.reachable(roots).sorted()
}

func (g *Graph) reachable(roots []string) idSet {
	seen := make(idSet)
	queue := make([]string, 0, len(roots))
	for _, id := range roots {
		if g.Has(id) && !seen.has(id) {
			seen.add(id)
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for child := range g.nodes[cur].Children {
			if g.Has(child) && !seen.has(child) {
				seen.add(child)
				queue = append(queue, child)
			}
		}
	}
	return seen
}

// CascadeDelete removes root and then every former child left without a
// retained parent, repeatedly. Nodes still referenced by another retained
// node survive. Deleting an id that is gone reports a lookup failure and
// changes nothing.
func (g *Graph) CascadeDelete(root string, opts CascadeOptions) error {
	if err := g.checkDefinition(root); err != nil {
		return err
	}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		children := n.Children.sorted()
		var extenders []string
		if opts.ReverseExtend && n.Type == NodeTypeDefinition {
			for _, p := range g.Parents(id) {
				if pn, ok := g.nodes[p]; ok && pn.Type == NodeTypeDefinition {
					extenders = append(extenders, p)
				}
			}
		}
		g.removeNode(id)
		for _, child := range children {
			if g.Has(child) && len(g.reverse[child]) == 0 {
				stack = append(stack, child)
			}
		}
		stack = append(stack, extenders...)
	}
	g.compact()
	return nil
}

func (g *Graph) checkDefinition(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return xmltree.NotFound("definition", id)
	}
	if n.Type != NodeTypeDefinition {
		return xmltree.WrongType("definition", id)
	}
	return nil
}

// compact drops removed ids from the insertion order.
func (g *Graph) compact() {
	live := g.order[:0]
	for _, id := range g.order {
		if _, ok := g.nodes[id]; ok {
			live = append(live, id)
		}
	}
	g.order = live
}
