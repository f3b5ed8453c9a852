package sanitize

import "github.com/wudi/pdfarc/observability"

// RemoveXFA strips XML Forms Architecture data from the AcroForm: the
// /XFA packet (stream or name/stream array) and the /NeedsRendering flag.
// XFA is forbidden at every archival level. Returns the number of entries
// removed.
func (p *Pass) RemoveXFA() int {
	catalog := p.doc.Catalog()
	if catalog == nil {
		return 0
	}
	acroObj, ok := catalog.Get(nm("AcroForm"))
	if !ok {
		return 0
	}
	acroForm, ok := p.resolveDict(acroObj)
	if !ok {
		return 0
	}

	removed := 0
	if _, ok := acroForm.Get(nm("XFA")); ok {
		// A document whose form exists only as XFA loses its form
		// content here; archival profiles leave no alternative.
		if fields, ok := p.doc.DictGetArray(acroForm, "Fields"); !ok || fields.Len() == 0 {
			p.log.Warn("pure-XFA form: removing /XFA discards all form content")
		}
		acroForm.Delete(nm("XFA"))
		removed++
	}
	if _, ok := acroForm.Get(nm("NeedsRendering")); ok {
		acroForm.Delete(nm("NeedsRendering"))
		removed++
	}
	if removed > 0 {
		p.log.Debug("xfa entries removed", observability.Int("count", removed))
	}
	return removed
}
