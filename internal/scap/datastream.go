// Package scap handles the SCAP source data-stream container, the rule to
// definition mapping between its XCCDF and OVAL components, and benchmark
// platform detection.
package scap

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// Component names the parts of a data stream that are split out.
type Component string

const (
	ComponentXCCDF         Component = "xccdf"
	ComponentOVAL          Component = "oval"
	ComponentCPEOVAL       Component = "cpe-oval"
	ComponentCPEDictionary Component = "cpe-dictionary"
)

// FileName is the conventional file name of a split component.
func (c Component) FileName() string { return string(c) + ".xml" }

// componentRoots maps each component to the root element expected inside it.
var componentRoots = map[Component]string{
	ComponentXCCDF:         "Benchmark",
	ComponentOVAL:          "oval_definitions",
	ComponentCPEOVAL:       "oval_definitions",
	ComponentCPEDictionary: "cpe-list",
}

// Components holds the root element of every component found. Each root is
// a detached copy carrying the namespace declarations it inherited.
type Components map[Component]*xmlquery.Node

// Bytes renders one component as a standalone document.
func (c Components) Bytes(k Component) ([]byte, bool) {
	root, ok := c[k]
	if !ok {
		return nil, false
	}
	return xmltree.Marshal(root), true
}

// classify maps a component-ref id onto a component, the way data streams
// name them (...-xccdf.xml, ...-oval.xml, ...-cpe-oval.xml, ...-cpe-dictionary.xml).
func classify(refID string) (Component, bool) {
	switch {
	case strings.Contains(refID, "-xccdf.xml"):
		return ComponentXCCDF, true
	case strings.Contains(refID, "-cpe-oval.xml"):
		return ComponentCPEOVAL, true
	case strings.Contains(refID, "-oval.xml"):
		return ComponentOVAL, true
	case strings.Contains(refID, "-cpe-dictionary.xml"):
		return ComponentCPEDictionary, true
	}
	return "", false
}

// SplitDataStream resolves the component-refs of a data-stream collection
// and returns each referenced component's content root. The tree is parsed
// once; callers own the returned nodes.
func SplitDataStream(data []byte) (Components, error) {
	_, root, err := xmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	targets := make(map[Component]string)
	refs, err := xmlquery.QueryAll(root, "//*[local-name()='component-ref']")
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	for _, ref := range refs {
		kind, ok := classify(ref.SelectAttr("id"))
		if !ok {
			continue
		}
		if href := hrefOf(ref); href != "" {
			targets[kind] = strings.TrimPrefix(href, "#")
		}
	}

	comps, err := xmlquery.QueryAll(root, "//*[local-name()='component']")
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	byID := make(map[string]*xmlquery.Node, len(comps))
	for _, c := range comps {
		byID[c.SelectAttr("id")] = c
	}

	out := make(Components)
	for kind, id := range targets {
		comp, ok := byID[id]
		if !ok {
			continue
		}
		if content := findLocal(comp, componentRoots[kind]); content != nil {
			out[kind] = xmltree.Standalone(content)
		}
	}
	if out[ComponentXCCDF] == nil && out[ComponentOVAL] == nil {
		return nil, xmltree.NotFound("component", "xccdf/oval")
	}
	return out, nil
}

func hrefOf(el *xmlquery.Node) string {
	for _, a := range el.Attr {
		if a.Name.Local == "href" {
			return a.Value
		}
	}
	return ""
}

func findLocal(n *xmlquery.Node, local string) *xmlquery.Node {
	var found *xmlquery.Node
	xmltree.Walk(n, func(el *xmlquery.Node) bool {
		if found != nil {
			return false
		}
		if el != n && el.Data == local {
			found = el
			return false
		}
		return true
	})
	return found
}
