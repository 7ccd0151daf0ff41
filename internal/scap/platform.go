package scap

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/gyaneshwarpardhi/scapslice/internal/analyzer"
	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// DetectPlatform guesses the benchmark platform from XCCDF platform
// references and OVAL affected/platform names. Either root may be nil. It
// reports false when nothing recognizable is found.
func DetectPlatform(xccdfRoot, ovalRoot *xmlquery.Node) (analyzer.Platform, bool) {
	var names []string
	if xccdfRoot != nil {
		for _, el := range xmlquery.Find(xccdfRoot, "//*[local-name()='platform']") {
			names = append(names, el.SelectAttr("idref"), xmltree.Text(el))
		}
	}
	if ovalRoot != nil {
		for _, el := range xmlquery.Find(ovalRoot, "//*[local-name()='affected']/*[local-name()='platform']") {
			names = append(names, xmltree.Text(el))
		}
	}
	all := strings.ToLower(strings.Join(names, " "))
	switch {
	case strings.Contains(all, "windows"):
		return analyzer.Windows, true
	case strings.Contains(all, "linux"), strings.Contains(all, "red hat"),
		strings.Contains(all, "ubuntu"):
		return analyzer.Linux, true
	case strings.Contains(all, "mac"), strings.Contains(all, "os x"):
		return analyzer.MacOS, true
	}
	return "", false
}
