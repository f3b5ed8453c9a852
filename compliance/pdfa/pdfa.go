// Package pdfa validates raw documents against the PDF/A archival profile.
// The validator reports what the converter's sanitization passes would
// change; running it after conversion on a conforming file yields an empty
// report.
package pdfa

import (
	"context"
	"fmt"

	"github.com/wudi/pdfarc/compliance"
	"github.com/wudi/pdfarc/fonts"
	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/pdfa"
	"github.com/wudi/pdfarc/sanitize"
	"github.com/wudi/pdfarc/security"
	"github.com/wudi/pdfarc/walker"
)

// Validator checks a raw document against one conformance level.
type Validator struct {
	level  pdfa.Level
	limits security.Limits
}

// NewValidator returns a Validator for the given conformance level.
func NewValidator(level pdfa.Level) *Validator {
	return &Validator{level: level, limits: security.DefaultLimits()}
}

// Validate walks the document and reports every archival violation found.
// The error return is reserved for context cancellation; structural damage
// in the document surfaces as violations, not errors.
func (v *Validator) Validate(ctx context.Context, doc *raw.Document) (*compliance.Report, error) {
	report := &compliance.Report{Compliant: true, Standard: v.level.String()}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.checkTrailer(doc, report)
	v.checkCatalog(doc, report)
	v.checkHosts(doc, report)
	v.checkFonts(doc, report)
	v.checkSignatures(doc, report)

	return report, nil
}

func (v *Validator) checkTrailer(doc *raw.Document, report *compliance.Report) {
	if doc.Trailer == nil {
		return
	}
	if _, ok := doc.Trailer.Get(raw.NameLiteral("Encrypt")); ok {
		report.Add("6.1.3", "document is encrypted", "trailer")
	}
}

func (v *Validator) checkCatalog(doc *raw.Document, report *compliance.Report) {
	catalog := doc.Catalog()
	if catalog == nil {
		report.Add("6.1.2", "document has no catalog", "trailer")
		return
	}

	pass := sanitize.NewPass(doc, sanitize.Options{Limits: v.limits})

	if _, ok := catalog.Get(raw.NameLiteral("AA")); ok {
		report.Add("6.6.1", "catalog carries additional-actions", "catalog")
	}
	if openAction, ok := catalog.Get(raw.NameLiteral("OpenAction")); ok {
		if _, isArr := doc.Resolve(openAction).(raw.Array); !isArr {
			if pass.Classify(openAction) != sanitize.Compliant {
				report.Add("6.6.1", "catalog OpenAction is not an allowed action", "catalog")
			}
		}
	}
	if names, ok := doc.DictGetDict(catalog, "Names"); ok {
		if _, ok := names.Get(raw.NameLiteral("JavaScript")); ok {
			report.Add("6.6.1", "document carries a named JavaScript tree", "catalog /Names")
		}
	}

	hasIntent := false
	if intents, ok := doc.DictGetArray(catalog, "OutputIntents"); ok && intents.Len() > 0 {
		hasIntent = true
	}
	if !hasIntent {
		report.Add("6.2.2", "document has no output intent", "catalog")
	}
}

// checkHosts applies the per-host action rules to every action-bearing
// object reachable from the catalog.
func (v *Validator) checkHosts(doc *raw.Document, report *compliance.Report) {
	pass := sanitize.NewPass(doc, sanitize.Options{Limits: v.limits})
	w := walker.New(doc, v.limits)

	w.Walk(func(obj raw.Object, ref raw.ObjectRef, role walker.Role) bool {
		dict, ok := obj.(raw.Dictionary)
		if !ok {
			return true
		}
		loc := location(ref, role)

		switch role {
		case walker.RolePage:
			if _, ok := dict.Get(raw.NameLiteral("AA")); ok {
				report.Add("6.6.2", "page carries additional-actions", loc)
			}
		case walker.RoleAnnotation:
			subtype, _ := doc.DictGetName(dict, "Subtype")
			if subtype == "Widget" {
				if _, ok := dict.Get(raw.NameLiteral("A")); ok {
					report.Add("6.4.1", "widget annotation carries an action", loc)
				}
				if _, ok := dict.Get(raw.NameLiteral("AA")); ok {
					report.Add("6.4.1", "widget annotation carries additional-actions", loc)
				}
				return true
			}
			if action, ok := dict.Get(raw.NameLiteral("A")); ok {
				if pass.Classify(action) != sanitize.Compliant {
					report.Add("6.6.1", "annotation action is not allowed", loc)
				}
			}
		case walker.RoleFormField:
			if _, ok := dict.Get(raw.NameLiteral("A")); ok {
				report.Add("6.4.1", "form field carries an action", loc)
			}
			if _, ok := dict.Get(raw.NameLiteral("AA")); ok {
				report.Add("6.4.1", "form field carries additional-actions", loc)
			}
		case walker.RoleOutlineItem:
			if action, ok := dict.Get(raw.NameLiteral("A")); ok {
				if pass.Classify(action) != sanitize.Compliant {
					report.Add("6.6.1", "outline action is not allowed", loc)
				}
			}
		}
		return true
	})
}

func (v *Validator) checkFonts(doc *raw.Document, report *compliance.Report) {
	for _, font := range fonts.DocumentFonts(doc) {
		info := fonts.Inspect(doc, font)
		if info.Subtype == "Type3" {
			// Type3 glyph procedures live in the content stream.
			continue
		}
		if !info.Embedded {
			report.Add("6.2.11.4", fmt.Sprintf("font %s has no embedded program", info.BaseFont), "page resources")
		} else if !info.Parses {
			report.Add("6.2.11.4", fmt.Sprintf("font %s has an unusable embedded program", info.BaseFont), "page resources")
		}
	}
}

func (v *Validator) checkSignatures(doc *raw.Document, report *compliance.Report) {
	catalog := doc.Catalog()
	if catalog == nil {
		return
	}
	acroform, ok := doc.DictGetDict(catalog, "AcroForm")
	if !ok {
		return
	}
	fields, ok := doc.DictGetArray(acroform, "Fields")
	if !ok {
		return
	}
	for i := 0; i < fields.Len(); i++ {
		item, _ := fields.Get(i)
		resolved, ref, _ := doc.ResolveWithRef(item)
		field, ok := resolved.(raw.Dictionary)
		if !ok {
			continue
		}
		if ft, _ := doc.DictGetName(field, "FT"); ft != "Sig" {
			continue
		}
		if _, ok := field.Get(raw.NameLiteral("V")); ok {
			report.Add("6.4.3", "document carries a digital signature that conversion will invalidate", location(ref, walker.RoleFormField))
		}
	}
}

func location(ref raw.ObjectRef, role walker.Role) string {
	if ref.IsZero() {
		return role.String()
	}
	return fmt.Sprintf("%s, object %d %d", role.String(), ref.Num, ref.Gen)
}
