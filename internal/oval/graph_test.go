package oval_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

func TestBuild_SharedSubgraph(t *testing.T) {
	g := build(t, sharedDoc)

	assert.ElementsMatch(t, []string{
		"def1", "def2",
		oval.CriterionID("def1", "test1"),
		oval.CriterionID("def2", "test1"),
		oval.CriterionID("def2", "test2"),
		"test1", "test2", "obj1", "obj2",
	}, nodeIDs(g))
	assert.Equal(t, []string{"def1", "def2"}, g.Definitions())
	assert.Equal(t, []string{"criterion:def2:test1", "criterion:def2:test2"}, g.Children("def2"))
	assert.Equal(t, []string{"test1"}, g.Children("criterion:def1:test1"))
	assert.Equal(t, []string{"criterion:def1:test1", "criterion:def2:test1"}, g.Parents("test1"))
	assert.Equal(t, oval.NodeTypeObject, g.Node("obj1").Type)
	assert.Equal(t, "textfilecontent54_object", g.Node("obj1").Tag())
}

func TestBuild_EdgeKinds(t *testing.T) {
	g := build(t, richDoc)

	tests := []struct {
		id       string
		children []string
	}{
		{"def3", []string{"criterion:def3:test3", "def4"}},
		{"def4", []string{"criterion:def4:test_missing", "def3"}},
		{"def5", []string{"def6"}},
		{"criterion:def3:test3", []string{"test3"}},
		{"test3", []string{"obj3", "ste3"}},
		{"obj3", []string{"obj4", "ste4"}},
		{"obj4", []string{"var1"}},
		{"var1", []string{"obj5"}},
		{"ste3", []string{"var2"}},
		{"obj5", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			require.NotNil(t, g.Node(tt.id))
			assert.Equal(t, tt.children, g.Node(tt.id).ChildIDs())
		})
	}
}

func TestBuild_DanglingReferenceSkipped(t *testing.T) {
	g := build(t, richDoc)

	crit := g.Node("criterion:def4:test_missing")
	require.NotNil(t, crit)
	assert.Empty(t, crit.ChildIDs())
	assert.Nil(t, g.Node("test_missing"))
}

func TestBuild_ForeignNamespaceNotIndexedAsOVAL(t *testing.T) {
	g := build(t, `<oval_definitions xmlns="http://oval.mitre.org/XMLSchema/oval-definitions-5"
    xmlns:x="urn:example:other">
  <definitions>
    <definition id="d" version="1"><criteria><criterion test_ref="t"/></criteria></definition>
  </definitions>
  <tests><x:probe_test id="t"/></tests>
</oval_definitions>`)

	_, indexed := g.Index().Lookup("t")
	assert.True(t, indexed)
	_, typed := g.Index().Kind("t")
	assert.False(t, typed)
	assert.Nil(t, g.Node("t"))
	assert.Empty(t, g.Children(oval.CriterionID("d", "t")))
}

func TestBuild_MalformedDocument(t *testing.T) {
	_, err := oval.Build([]byte("<oval_definitions><definitions>"), oval.BuildOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, xmltree.ErrMalformedDocument))
}

const duplicateDoc = `<oval_definitions xmlns="http://oval.mitre.org/XMLSchema/oval-definitions-5">
  <definitions>
    <definition id="d" version="1"><criteria><criterion test_ref="t"/></criteria></definition>
  </definitions>
  <tests>
    <family_test id="t" version="1" comment="first"/>
    <family_test id="t" version="1" comment="second"/>
  </tests>
</oval_definitions>`

func TestBuild_ConflictPolicy(t *testing.T) {
	tests := []struct {
		policy  oval.ConflictPolicy
		comment string
		wantErr error
	}{
		{"", "second", nil},
		{oval.KeepLast, "second", nil},
		{oval.KeepFirst, "first", nil},
		{oval.Reject, "", xmltree.ErrDuplicateID},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			g, err := oval.Build([]byte(duplicateDoc), oval.BuildOptions{ConflictPolicy: tt.policy})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.comment, g.Node("t").Element.SelectAttr("comment"))
			assert.Equal(t, []string{"t"}, g.Index().Duplicates())
		})
	}

	_, err := oval.Build([]byte(duplicateDoc), oval.BuildOptions{ConflictPolicy: "newest"})
	assert.Error(t, err)
}

func TestRetainReachableFrom(t *testing.T) {
	g := build(t, sharedDoc)

	require.NoError(t, g.RetainReachableFrom([]string{"def1"}))
	assert.ElementsMatch(t, []string{"def1", "criterion:def1:test1", "test1", "obj1"}, nodeIDs(g))
	assert.Equal(t, []string{"criterion:def1:test1"}, g.Parents("test1"))
}

func TestRetainReachableFrom_RejectsBadRoots(t *testing.T) {
	g := build(t, sharedDoc)
	before := g.NodeCount()

	err := g.RetainReachableFrom([]string{"def1", "nope"})
	assert.ErrorIs(t, err, xmltree.ErrNotFound)

	err = g.RetainReachableFrom([]string{"obj1"})
	assert.ErrorIs(t, err, xmltree.ErrWrongType)

	var lerr *xmltree.LookupError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "obj1", lerr.ID)
	assert.Equal(t, before, g.NodeCount())
}

func TestRetainReachableFrom_Cycle(t *testing.T) {
	g := build(t, richDoc)

	require.NoError(t, g.RetainReachableFrom([]string{"def4"}))
	assert.Contains(t, nodeIDs(g), "def3")
	assert.Contains(t, nodeIDs(g), "var2")
	assert.NotContains(t, nodeIDs(g), "def5")
	assert.NotContains(t, nodeIDs(g), "def6")
}

func TestCascadeDelete_PreservesSharedSubgraph(t *testing.T) {
	g := build(t, sharedDoc)

	require.NoError(t, g.CascadeDelete("def1", oval.CascadeOptions{}))
	assert.ElementsMatch(t, []string{
		"def2", "criterion:def2:test1", "criterion:def2:test2",
		"test1", "test2", "obj1", "obj2",
	}, nodeIDs(g))
	assert.Equal(t, []string{"criterion:def2:test1"}, g.Parents("test1"))

	require.NoError(t, g.CascadeDelete("def2", oval.CascadeOptions{}))
	assert.Zero(t, g.NodeCount())
}

func TestCascadeDelete_RepeatIsReportedNoop(t *testing.T) {
	g := build(t, sharedDoc)

	require.NoError(t, g.CascadeDelete("def1", oval.CascadeOptions{}))
	count := g.NodeCount()

	err := g.CascadeDelete("def1", oval.CascadeOptions{})
	assert.ErrorIs(t, err, xmltree.ErrNotFound)
	assert.Equal(t, count, g.NodeCount())
}

func TestCascadeDelete_WrongType(t *testing.T) {
	g := build(t, sharedDoc)

	err := g.CascadeDelete("test1", oval.CascadeOptions{})
	assert.ErrorIs(t, err, xmltree.ErrWrongType)
	assert.True(t, g.Has("test1"))
}

func TestCascadeDelete_ReverseExtend(t *testing.T) {
	t.Run("off", func(t *testing.T) {
		g := build(t, richDoc)
		require.NoError(t, g.CascadeDelete("def6", oval.CascadeOptions{}))
		assert.True(t, g.Has("def5"))
		assert.Empty(t, g.Children("def5"))
		// still needed by def3
		assert.True(t, g.Has("test3"))
	})
	t.Run("on", func(t *testing.T) {
		g := build(t, richDoc)
		require.NoError(t, g.CascadeDelete("def6", oval.CascadeOptions{ReverseExtend: true}))
		assert.False(t, g.Has("def5"))
		assert.True(t, g.Has("def3"))
		assert.True(t, g.Has("test3"))
	})
}

func TestCascadeDelete_ExtendCycle(t *testing.T) {
	g := build(t, richDoc)

	require.NoError(t, g.CascadeDelete("def3", oval.CascadeOptions{}))
	assert.False(t, g.Has("def3"))
	assert.False(t, g.Has("def4"))
	// test3 is still reached through def6
	assert.True(t, g.Has("test3"))
	assert.True(t, g.Has("var1"))
}

func TestClone_IsIndependent(t *testing.T) {
	g := build(t, sharedDoc)
	cp := g.Clone()

	require.NoError(t, cp.RetainReachableFrom([]string{"def1"}))
	assert.Equal(t, 4, cp.NodeCount())
	assert.Equal(t, 9, g.NodeCount())
	assert.Equal(t, []string{"criterion:def1:test1", "criterion:def2:test1"}, g.Parents("test1"))
}

func TestReachable(t *testing.T) {
	g := build(t, sharedDoc)

	assert.Equal(t, []string{"criterion:def2:test1", "criterion:def2:test2", "def2", "obj1", "obj2", "test1", "test2"},
		g.Reachable("def2"))
	assert.Empty(t, g.Reachable("missing"))
}
