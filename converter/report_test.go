package converter_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/wudi/pdfarc/compliance"
	"github.com/wudi/pdfarc/converter"
	"github.com/wudi/pdfarc/pdfa"
	"github.com/wudi/pdfarc/sanitize"
)

func sampleResult() *converter.Result {
	before := &compliance.Report{Compliant: true, Standard: pdfa.PDFA2B.String()}
	before.Add("6.6.1", "catalog carries an OpenAction", "object 3 0")
	after := &compliance.Report{Compliant: true, Standard: pdfa.PDFA2B.String()}
	return &converter.Result{
		Level:               pdfa.PDFA2B,
		Pages:               2,
		Objects:             11,
		ActionsRemoved:      3,
		DestinationsRemoved: 1,
		Signatures:          sanitize.SignatureStats{Found: 1, ValidCMS: 1},
		OutputIntentAdded:   true,
		Before:              before,
		After:               after,
		Warnings:            []string{"output intent added (sRGB)"},
		Duration:            42 * time.Millisecond,
	}
}

func TestReportMarkdownContent(t *testing.T) {
	md := string(converter.ReportMarkdown(sampleResult()))

	for _, want := range []string{
		"# Conversion report (PDF/A-2b)",
		"| Actions removed | 3 |",
		"## Violations before",
		"**6.6.1**",
		"## Violations after",
		"None.",
		"output intent added (sRGB)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestReportHTMLStructure(t *testing.T) {
	out, err := converter.ReportHTML(sampleResult())
	if err != nil {
		t.Fatalf("ReportHTML: %v", err)
	}

	root, err := html.Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("parse rendered HTML: %v", err)
	}

	counts := map[string]int{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			counts[n.Data]++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if counts["h1"] != 1 {
		t.Errorf("h1 count = %d, want 1", counts["h1"])
	}
	if counts["table"] != 1 {
		t.Errorf("table count = %d, want 1 (metrics table)", counts["table"])
	}
	if counts["h2"] < 3 {
		t.Errorf("h2 count = %d, want before/after/warnings sections", counts["h2"])
	}
	if counts["strong"] == 0 {
		t.Error("violation codes must render bold")
	}
}
