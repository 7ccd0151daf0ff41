package scap_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/scapslice/internal/analyzer"
	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
	"github.com/gyaneshwarpardhi/scapslice/internal/scap"
	"github.com/gyaneshwarpardhi/scapslice/internal/xccdf"
	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

const dataStream = `<?xml version="1.0" encoding="UTF-8"?>
<ds:data-stream-collection xmlns:ds="http://scap.nist.gov/schema/scap/source/1.2"
    xmlns:xlink="http://www.w3.org/1999/xlink"
    xmlns:xccdf="http://checklists.nist.gov/xccdf/1.2"
    xmlns:oval="http://oval.mitre.org/XMLSchema/oval-definitions-5"
    id="scap_example_collection">
  <ds:data-stream id="scap_example_datastream">
    <ds:checklists>
      <ds:component-ref id="scap_example_cref_U_Example-xccdf.xml" xlink:href="#scap_example_comp_xccdf"/>
    </ds:checklists>
    <ds:checks>
      <ds:component-ref id="scap_example_cref_U_Example-oval.xml" xlink:href="#scap_example_comp_oval"/>
      <ds:component-ref id="scap_example_cref_U_Example-cpe-oval.xml" xlink:href="#scap_example_comp_cpe_oval"/>
    </ds:checks>
  </ds:data-stream>
  <ds:component id="scap_example_comp_xccdf">
    <xccdf:Benchmark id="xccdf_example_benchmark" resolved="1">
      <xccdf:platform idref="cpe:/o:microsoft:windows_server_2019"/>
      <xccdf:Group id="xccdf_example_group_V-1">
        <xccdf:title>SRG</xccdf:title>
        <xccdf:Rule id="xccdf_example_rule_SV-1r1_rule">
          <xccdf:title>Automated</xccdf:title>
          <xccdf:check system="http://oval.mitre.org/XMLSchema/oval-definitions-5">
            <xccdf:check-content-ref href="#oval" name="oval:example:def:1"/>
          </xccdf:check>
        </xccdf:Rule>
        <xccdf:Rule id="xccdf_example_rule_SV-2r1_rule">
          <xccdf:title>Two checks</xccdf:title>
          <xccdf:check system="http://oval.mitre.org/XMLSchema/oval-definitions-5">
            <xccdf:check-content-ref href="#oval" name="oval:example:def:2"/>
          </xccdf:check>
          <xccdf:check system="http://oval.mitre.org/XMLSchema/oval-definitions-5">
            <xccdf:check-content-ref href="#oval" name="oval:example:def:3"/>
          </xccdf:check>
        </xccdf:Rule>
        <xccdf:Rule id="xccdf_example_rule_SV-3r1_rule">
          <xccdf:title>Manual</xccdf:title>
        </xccdf:Rule>
      </xccdf:Group>
    </xccdf:Benchmark>
  </ds:component>
  <ds:component id="scap_example_comp_oval">
    <oval:oval_definitions>
      <oval:definitions>
        <oval:definition id="oval:example:def:1" class="compliance" version="1">
          <oval:metadata>
            <oval:affected family="windows"><oval:platform>Microsoft Windows Server 2019</oval:platform></oval:affected>
          </oval:metadata>
          <oval:criteria><oval:criterion test_ref="oval:example:tst:1"/></oval:criteria>
        </oval:definition>
      </oval:definitions>
      <oval:tests>
        <family_test xmlns="http://oval.mitre.org/XMLSchema/oval-definitions-5#independent" id="oval:example:tst:1" version="1"/>
      </oval:tests>
    </oval:oval_definitions>
  </ds:component>
  <ds:component id="scap_example_comp_cpe_oval">
    <oval:oval_definitions><oval:definitions/></oval:oval_definitions>
  </ds:component>
</ds:data-stream-collection>
`

func split(t *testing.T) scap.Components {
	t.Helper()
	comps, err := scap.SplitDataStream([]byte(dataStream))
	require.NoError(t, err)
	return comps
}

func TestSplitDataStream(t *testing.T) {
	comps := split(t)

	require.Contains(t, comps, scap.ComponentXCCDF)
	require.Contains(t, comps, scap.ComponentOVAL)
	require.Contains(t, comps, scap.ComponentCPEOVAL)
	assert.NotContains(t, comps, scap.ComponentCPEDictionary)
	assert.Equal(t, "cpe-oval.xml", scap.ComponentCPEOVAL.FileName())

	xb, ok := comps.Bytes(scap.ComponentXCCDF)
	require.True(t, ok)
	doc, err := xccdf.Parse(xb)
	require.NoError(t, err)
	assert.Len(t, doc.IDs(xccdf.KindRule), 3)

	ob, ok := comps.Bytes(scap.ComponentOVAL)
	require.True(t, ok)
	g, err := oval.Build(ob, oval.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"oval:example:def:1"}, g.Definitions())
	assert.True(t, g.Has("oval:example:tst:1"))
}

func TestSplitDataStream_NoComponents(t *testing.T) {
	_, err := scap.SplitDataStream([]byte(`<ds:data-stream-collection xmlns:ds="http://scap.nist.gov/schema/scap/source/1.2"/>`))
	assert.ErrorIs(t, err, xmltree.ErrNotFound)
}

func TestRuleMapping(t *testing.T) {
	comps := split(t)
	doc, err := xccdf.FromRoot(comps[scap.ComponentXCCDF])
	require.NoError(t, err)

	m := scap.RuleMapping(doc)
	assert.Equal(t, scap.Mapping{
		"xccdf_example_rule_SV-1r1_rule":   "oval:example:def:1",
		"xccdf_example_rule_SV-2r1_rule_1": "oval:example:def:2",
		"xccdf_example_rule_SV-2r1_rule_2": "oval:example:def:3",
		"xccdf_example_rule_SV-3r1_rule":   scap.ManualRule,
	}, m)
	assert.False(t, m.Automated("xccdf_example_rule_SV-3r1_rule"))
	assert.Equal(t, []string{"oval:example:def:2", "oval:example:def:3"},
		m.DefinitionsFor([]string{"xccdf_example_rule_SV-2r1_rule", "xccdf_example_rule_SV-3r1_rule"}))

	path := filepath.Join(t.TempDir(), "map.json")
	require.NoError(t, m.Save(path))
	loaded, err := scap.LoadMapping(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	_, err = scap.LoadMapping(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDetectPlatform(t *testing.T) {
	comps := split(t)

	p, ok := scap.DetectPlatform(comps[scap.ComponentXCCDF], comps[scap.ComponentOVAL])
	assert.True(t, ok)
	assert.Equal(t, analyzer.Windows, p)

	_, root, err := xmltree.Parse([]byte(`<oval_definitions><definitions><definition id="d"><metadata>
<affected family="unix"><platform>Red Hat Enterprise Linux 9</platform></affected></metadata></definition></definitions></oval_definitions>`))
	require.NoError(t, err)
	p, ok = scap.DetectPlatform(nil, root)
	assert.True(t, ok)
	assert.Equal(t, analyzer.Linux, p)

	_, ok = scap.DetectPlatform(nil, nil)
	assert.False(t, ok)
}

func TestBaseID(t *testing.T) {
	tests := map[string]string{
		"xccdf_example_rule_SV-2r1_rule_1":  "xccdf_example_rule_SV-2r1_rule",
		"xccdf_example_rule_SV-2r1_rule_12": "xccdf_example_rule_SV-2r1_rule",
		"xccdf_example_rule_SV-2r1_rule":    "xccdf_example_rule_SV-2r1_rule",
		"oval:example:def:1":                "oval:example:def:1",
	}
	for in, want := range tests {
		assert.Equal(t, want, scap.BaseID(in), in)
	}
}
