package oval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const consistencyDoc = `<oval_definitions xmlns="http://oval.mitre.org/XMLSchema/oval-definitions-5">
  <definitions>
    <definition id="a" version="1"><criteria>
      <criterion test_ref="t1"/><extend_definition definition_ref="b"/>
    </criteria></definition>
    <definition id="b" version="1"><criteria>
      <criterion test_ref="t1"/><criterion test_ref="t2"/>
    </criteria></definition>
    <definition id="c" version="1"><criteria>
      <criterion test_ref="t2"/>
    </criteria></definition>
  </definitions>
  <tests>
    <family_test id="t1" version="1"><object object_ref="o1"/><state state_ref="s1"/></family_test>
    <family_test id="t2" version="1"><object object_ref="o1"/></family_test>
  </tests>
  <objects><family_object id="o1" version="1"/></objects>
  <states><family_state id="s1" version="1"><family var_ref="v1"/></family_state></states>
  <variables><external_variable id="v1" datatype="string" version="1"/></variables>
</oval_definitions>`

// assertConsistent checks that reverse mirrors children for every live edge
// and holds no id absent from the node map.
func assertConsistent(t *testing.T, g *Graph) {
	t.Helper()
	for id, n := range g.nodes {
		for child := range n.Children {
			if _, live := g.nodes[child]; live {
				assert.True(t, g.reverse[child].has(id), "%s missing from reverse[%s]", id, child)
			}
		}
	}
	for child, parents := range g.reverse {
		_, live := g.nodes[child]
		assert.True(t, live, "reverse holds removed child %s", child)
		assert.NotEmpty(t, parents, "empty reverse entry for %s", child)
		for p := range parents {
			pn, ok := g.nodes[p]
			if assert.True(t, ok, "reverse[%s] holds removed parent %s", child, p) {
				assert.True(t, pn.Children.has(child))
			}
		}
	}
}

func TestReverseConsistency(t *testing.T) {
	steps := []struct {
		name string
		run  func(g *Graph) error
	}{
		{"build", func(*Graph) error { return nil }},
		{"cascade a", func(g *Graph) error { return g.CascadeDelete("a", CascadeOptions{}) }},
		{"retain c", func(g *Graph) error { return g.RetainReachableFrom([]string{"c"}) }},
		{"cascade c", func(g *Graph) error { return g.CascadeDelete("c", CascadeOptions{}) }},
	}

	g, err := Build([]byte(consistencyDoc), BuildOptions{})
	require.NoError(t, err)
	for _, s := range steps {
		require.NoError(t, s.run(g), s.name)
		assertConsistent(t, g)
		assert.Equal(t, len(g.nodes), len(g.order), "%s: order not compacted", s.name)
	}
	assert.Empty(t, g.nodes)
	assert.Empty(t, g.reverse)
}

func TestReverseConsistency_ReverseExtend(t *testing.T) {
	g, err := Build([]byte(consistencyDoc), BuildOptions{})
	require.NoError(t, err)

	require.NoError(t, g.CascadeDelete("b", CascadeOptions{ReverseExtend: true}))
	assertConsistent(t, g)
	assert.NotContains(t, g.nodes, "a")
	assert.Contains(t, g.nodes, "c")
	assert.Contains(t, g.nodes, "t2")
	assert.Contains(t, g.nodes, "o1")
	assert.NotContains(t, g.nodes, "t1")
	assert.NotContains(t, g.nodes, "v1")
}
