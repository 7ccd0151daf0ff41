package xccdf

import (
	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// CheckExport binds an XCCDF Value to an OVAL external variable.
type CheckExport struct {
	ValueID    string
	ExportName string
}

// ValueSpec describes a Value element to synthesize.
type ValueSpec struct {
	ID          string
	Title       string
	Description string
	Type        string
	Operator    string
	Value       string
}

// CheckPatch retargets one rule's check at a rewritten OVAL definition.
type CheckPatch struct {
	RuleID          string
	OldDefinitionID string
	NewDefinitionID string
	Exports         []CheckExport
	Values          []ValueSpec
}

// PatchReport lists what ApplyPatch changed.
type PatchReport struct {
	Retargeted     bool
	ExportsAdded   []string
	ExportsSkipped []string
	ValuesAdded    []string
	ValuesSkipped  []string
}

// ApplyPatch mutates d in place. The rule must exist and carry a
// check-content-ref naming OldDefinitionID (any ref when it is empty).
// Exports and Values that already exist are left untouched.
func (d *Document) ApplyPatch(p CheckPatch) (PatchReport, error) {
	var rep PatchReport
	rule, ok := d.Rule(p.RuleID)
	if !ok {
		return rep, xmltree.NotFound("rule", p.RuleID)
	}
	var ref *xmlquery.Node
	xmltree.Walk(rule, func(el *xmlquery.Node) bool {
		if ref != nil {
			return false
		}
		if isXCCDF(el, "check-content-ref") && (p.OldDefinitionID == "" || el.SelectAttr("name") == p.OldDefinitionID) {
			ref = el
		}
		return true
	})
	if ref == nil {
		return rep, xmltree.NotFound("check-content-ref", p.OldDefinitionID)
	}
	if p.NewDefinitionID != "" && ref.SelectAttr("name") != p.NewDefinitionID {
		ref.SetAttr("name", p.NewDefinitionID)
		rep.Retargeted = true
	}

	check := ref.Parent
	for _, e := range p.Exports {
		if hasExport(check, e.ExportName) {
			rep.ExportsSkipped = append(rep.ExportsSkipped, e.ExportName)
			continue
		}
		el := xmltree.NewElementLike(ref, "check-export")
		xmlquery.AddAttr(el, "value-id", e.ValueID)
		xmlquery.AddAttr(el, "export-name", e.ExportName)
		xmltree.InsertBefore(ref, el)
		rep.ExportsAdded = append(rep.ExportsAdded, e.ExportName)
	}

	for _, v := range p.Values {
		if _, exists := d.Value(v.ID); exists {
			rep.ValuesSkipped = append(rep.ValuesSkipped, v.ID)
			continue
		}
		el := newValue(rule, v)
		insertValue(rule.Parent, el)
		d.indexSubtree(el)
		rep.ValuesAdded = append(rep.ValuesAdded, v.ID)
	}
	return rep, nil
}

func hasExport(check *xmlquery.Node, name string) bool {
	for _, c := range xmltree.ChildElements(check) {
		if isXCCDF(c, "check-export") && c.SelectAttr("export-name") == name {
			return true
		}
	}
	return false
}

func newValue(like *xmlquery.Node, v ValueSpec) *xmlquery.Node {
	typ, op := v.Type, v.Operator
	if typ == "" {
		typ = "string"
	}
	if op == "" {
		op = "equals"
	}
	el := xmltree.NewElementLike(like, "Value")
	xmlquery.AddAttr(el, "id", v.ID)
	xmlquery.AddAttr(el, "type", typ)
	xmlquery.AddAttr(el, "operator", op)
	if v.Title != "" {
		t := xmltree.NewElementLike(like, "title")
		xmltree.SetText(t, v.Title)
		xmlquery.AddChild(el, t)
	}
	if v.Description != "" {
		t := xmltree.NewElementLike(like, "description")
		xmltree.SetText(t, v.Description)
		xmlquery.AddChild(el, t)
	}
	val := xmltree.NewElementLike(like, "value")
	xmltree.SetText(val, v.Value)
	xmlquery.AddChild(el, val)
	return el
}

// insertValue places a Value ahead of the first Group or Rule under parent,
// where the schema expects Values.
func insertValue(parent, el *xmlquery.Node) {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if isXCCDF(c, "Group") || isXCCDF(c, "Rule") {
			xmltree.InsertBefore(c, el)
			return
		}
	}
	xmlquery.AddChild(parent, el)
}
