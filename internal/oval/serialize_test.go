package oval_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
)

func TestSerialize_RoundTrip(t *testing.T) {
	for name, doc := range map[string]string{"shared": sharedDoc, "rich": richDoc} {
		t.Run(name, func(t *testing.T) {
			g := build(t, doc)
			again, err := oval.Build(g.Serialize(oval.SerializeOptions{}), oval.BuildOptions{})
			require.NoError(t, err)

			require.ElementsMatch(t, nodeIDs(g), nodeIDs(again))
			for _, n := range g.Nodes() {
				m := again.Node(n.ID)
				assert.Equal(t, n.Type, m.Type, n.ID)
				assert.Equal(t, n.ChildIDs(), m.ChildIDs(), n.ID)
			}
		})
	}
}

func TestSerialize_Layout(t *testing.T) {
	g := build(t, sharedDoc)
	require.NoError(t, g.RetainReachableFrom([]string{"def1"}))
	out := string(g.Serialize(oval.SerializeOptions{}))

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `<oval_definitions xmlns="http://oval.mitre.org/XMLSchema/oval-definitions-5" xmlns:oval="http://oval.mitre.org/XMLSchema/oval-common-5">`)
	assert.Contains(t, out, `<oval:product_name>fixture</oval:product_name>`)
	assert.Contains(t, out, `<oval:timestamp>2024-01-01T00:00:00</oval:timestamp>`)
	assert.Contains(t, out, `<textfilecontent54_test id="test1" check="all" version="1">`)
	assert.Contains(t, out, `<object object_ref="obj1"/>`)
	assert.NotContains(t, out, "ind:")
	assert.NotContains(t, out, "obj2")
	assert.NotContains(t, out, "<states>")
	assert.NotContains(t, out, "<variables>")

	gen := strings.Index(out, "<generator>")
	defs := strings.Index(out, "<definitions>")
	tests := strings.Index(out, "<tests>")
	objs := strings.Index(out, "<objects>")
	assert.True(t, gen < defs && defs < tests && tests < objs, "section order")
}

func TestSerialize_KeepNamespaceOverride(t *testing.T) {
	g := build(t, sharedDoc)
	out := string(g.Serialize(oval.SerializeOptions{KeepNamespace: []string{"timestamp"}, Indent: "\t"}))

	// generator children always live in the common namespace
	assert.Contains(t, out, "<oval:product_name>")
	assert.Contains(t, out, "\n\t<definitions>")
}

func TestSerialize_Deterministic(t *testing.T) {
	a := build(t, richDoc).Serialize(oval.SerializeOptions{})
	b := build(t, richDoc).Serialize(oval.SerializeOptions{})
	assert.Equal(t, string(a), string(b))
}

func TestDocument_DoesNotAliasGraph(t *testing.T) {
	g := build(t, sharedDoc)
	doc := g.Document(oval.SerializeOptions{})

	var tests int
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Data != "tests" {
			continue
		}
		for el := c.FirstChild; el != nil; el = el.NextSibling {
			el.SetAttr("id", "mutated")
			tests++
		}
	}
	require.Equal(t, 2, tests)
	assert.Equal(t, "test1", g.Node("test1").Element.SelectAttr("id"))
	assert.NotContains(t, string(g.Serialize(oval.SerializeOptions{})), "mutated")
}

func TestMerge_FirstWins(t *testing.T) {
	a := build(t, sharedDoc)
	require.NoError(t, a.RetainReachableFrom([]string{"def1"}))
	b := build(t, sharedDoc)
	require.NoError(t, b.RetainReachableFrom([]string{"def2"}))

	other := strings.Replace(string(b.Serialize(oval.SerializeOptions{})), "/etc/issue", "/etc/changed", 1)
	out, err := oval.Merge(oval.SerializeOptions{}, a.Serialize(oval.SerializeOptions{}), []byte(other))
	require.NoError(t, err)

	assert.Contains(t, string(out), "/etc/issue")
	assert.NotContains(t, string(out), "/etc/changed")
	assert.Equal(t, 1, strings.Count(string(out), `id="test1"`))
	assert.Equal(t, 1, strings.Count(string(out), "<generator>"))

	merged, err := oval.Build(out, oval.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"def1", "def2"}, merged.Definitions())
	assert.Equal(t, 9, merged.NodeCount())
}

func TestMerge_Malformed(t *testing.T) {
	_, err := oval.Merge(oval.SerializeOptions{}, []byte(sharedDoc), []byte("<oops"))
	assert.ErrorContains(t, err, "document 1")
}

func TestSerialize_KeepsValueWhitespace(t *testing.T) {
	g := build(t, `<oval_definitions xmlns="http://oval.mitre.org/XMLSchema/oval-definitions-5"
    xmlns:ind="http://oval.mitre.org/XMLSchema/oval-definitions-5#independent">
  <definitions>
    <definition id="d" version="1"><criteria><criterion test_ref="t"/></criteria></definition>
  </definitions>
  <tests>
    <ind:textfilecontent54_test id="t" check="all" version="1">
      <ind:object object_ref="o"/>
      <ind:state state_ref="s"/>
    </ind:textfilecontent54_test>
  </tests>
  <objects>
    <ind:textfilecontent54_object id="o" version="1"><ind:filepath>/etc/issue</ind:filepath></ind:textfilecontent54_object>
  </objects>
  <states>
    <ind:textfilecontent54_state id="s" version="1">
      <ind:subexpression operation="equals"> </ind:subexpression>
    </ind:textfilecontent54_state>
  </states>
</oval_definitions>`)
	out := string(g.Serialize(oval.SerializeOptions{}))

	assert.Contains(t, out, `<subexpression operation="equals"> </subexpression>`)
	assert.Contains(t, out, "\n    <textfilecontent54_state id=\"s\" version=\"1\">\n      <subexpression")
}
