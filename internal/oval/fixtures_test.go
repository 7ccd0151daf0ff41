package oval_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
)

// sharedDoc: def1 and def2 both reach test1/obj1; def2 also owns test2/obj2.
const sharedDoc = `<?xml version="1.0" encoding="UTF-8"?>
<oval_definitions xmlns="http://oval.mitre.org/XMLSchema/oval-definitions-5"
    xmlns:oval="http://oval.mitre.org/XMLSchema/oval-common-5"
    xmlns:ind="http://oval.mitre.org/XMLSchema/oval-definitions-5#independent">
  <generator>
    <oval:product_name>fixture</oval:product_name>
    <oval:schema_version>5.11.2</oval:schema_version>
    <oval:timestamp>2024-01-01T00:00:00</oval:timestamp>
  </generator>
  <definitions>
    <definition id="def1" class="compliance" version="1">
      <metadata><title>first</title></metadata>
      <criteria>
        <criterion test_ref="test1"/>
      </criteria>
    </definition>
    <definition id="def2" class="compliance" version="1">
      <metadata><title>second</title></metadata>
      <criteria operator="AND">
        <criterion test_ref="test1"/>
        <criterion test_ref="test2"/>
      </criteria>
    </definition>
  </definitions>
  <tests>
    <ind:textfilecontent54_test id="test1" check="all" version="1">
      <ind:object object_ref="obj1"/>
    </ind:textfilecontent54_test>
    <ind:textfilecontent54_test id="test2" check="all" version="1">
      <ind:object object_ref="obj2"/>
    </ind:textfilecontent54_test>
  </tests>
  <objects>
    <ind:textfilecontent54_object id="obj1" version="1">
      <ind:filepath>/etc/issue</ind:filepath>
    </ind:textfilecontent54_object>
    <ind:textfilecontent54_object id="obj2" version="1">
      <ind:filepath>/etc/motd</ind:filepath>
    </ind:textfilecontent54_object>
  </objects>
</oval_definitions>
`

// richDoc exercises every edge kind: an extend_definition cycle, a dangling
// criterion, set composition with a filter, var_ref and object_ref bindings.
const richDoc = `<?xml version="1.0" encoding="UTF-8"?>
<oval_definitions xmlns="http://oval.mitre.org/XMLSchema/oval-definitions-5"
    xmlns:ind="http://oval.mitre.org/XMLSchema/oval-definitions-5#independent">
  <definitions>
    <definition id="def3" class="compliance" version="1">
      <criteria>
        <extend_definition definition_ref="def4"/>
        <criterion test_ref="test3"/>
      </criteria>
    </definition>
    <definition id="def4" class="compliance" version="1">
      <criteria>
        <extend_definition definition_ref="def3"/>
        <criterion test_ref="test_missing"/>
      </criteria>
    </definition>
    <definition id="def5" class="compliance" version="1">
      <criteria>
        <extend_definition definition_ref="def6"/>
      </criteria>
    </definition>
    <definition id="def6" class="compliance" version="1">
      <criteria>
        <criterion test_ref="test3"/>
      </criteria>
    </definition>
  </definitions>
  <tests>
    <ind:textfilecontent54_test id="test3" check="all" version="1">
      <ind:object object_ref="obj3"/>
      <ind:state state_ref="ste3"/>
    </ind:textfilecontent54_test>
  </tests>
  <objects>
    <ind:textfilecontent54_object id="obj3" version="1">
      <set>
        <object_reference>obj4</object_reference>
        <filter action="exclude">ste4</filter>
      </set>
    </ind:textfilecontent54_object>
    <ind:textfilecontent54_object id="obj4" version="1">
      <ind:filepath var_ref="var1"/>
    </ind:textfilecontent54_object>
    <ind:textfilecontent54_object id="obj5" version="1">
      <ind:filepath>/etc/hosts</ind:filepath>
    </ind:textfilecontent54_object>
  </objects>
  <states>
    <ind:textfilecontent54_state id="ste3" version="1">
      <ind:text operation="pattern match" var_ref="var2"/>
    </ind:textfilecontent54_state>
    <ind:textfilecontent54_state id="ste4" version="1">
      <ind:text>skip</ind:text>
    </ind:textfilecontent54_state>
  </states>
  <variables>
    <local_variable id="var1" datatype="string" version="1" comment="path">
      <object_component object_ref="obj5" item_field="filepath"/>
    </local_variable>
    <external_variable id="var2" datatype="string" version="1" comment="pattern"/>
  </variables>
</oval_definitions>
`

func build(t *testing.T, doc string) *oval.Graph {
	t.Helper()
	g, err := oval.Build([]byte(doc), oval.BuildOptions{})
	require.NoError(t, err)
	return g
}

func nodeIDs(g *oval.Graph) []string {
	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}
