package converter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/wudi/pdfarc/compliance"
)

// ReportMarkdown renders the result as a Markdown conversion report.
func ReportMarkdown(res *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversion report (%s)\n\n", res.Level)

	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Pages | %d |\n", res.Pages)
	fmt.Fprintf(&b, "| Objects | %d |\n", res.Objects)
	fmt.Fprintf(&b, "| Actions removed | %d |\n", res.ActionsRemoved)
	fmt.Fprintf(&b, "| Invalid destinations removed | %d |\n", res.DestinationsRemoved)
	fmt.Fprintf(&b, "| JavaScript entries removed | %d |\n", res.JavaScriptRemoved)
	fmt.Fprintf(&b, "| XFA entries removed | %d |\n", res.XFARemoved)
	fmt.Fprintf(&b, "| Signatures neutralized | %d |\n", res.Signatures.Found)
	fmt.Fprintf(&b, "| Output intent added | %t |\n", res.OutputIntentAdded)
	fmt.Fprintf(&b, "| Duration | %s |\n\n", res.Duration)

	writeViolations(&b, "Violations before", res.Before)
	writeViolations(&b, "Violations after", res.After)

	if len(res.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if len(res.Recognized) > 0 {
		b.WriteString("## Recognized text\n\n")
		for _, r := range res.Recognized {
			text := r.PlainText
			if len(text) > 120 {
				text = text[:120] + "…"
			}
			fmt.Fprintf(&b, "- `%s`: %s\n", r.InputID, text)
		}
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func writeViolations(b *strings.Builder, title string, report *compliance.Report) {
	if report == nil {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(report.Violations) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	for _, v := range report.Violations {
		fmt.Fprintf(b, "- **%s** %s", v.Code, v.Description)
		if v.Location != "" {
			fmt.Fprintf(b, " (%s)", v.Location)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// ReportHTML renders the Markdown report to a standalone HTML fragment.
func ReportHTML(res *Result) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var out bytes.Buffer
	if err := md.Convert(ReportMarkdown(res), &out); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return out.Bytes(), nil
}
