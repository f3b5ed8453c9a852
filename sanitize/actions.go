package sanitize

import (
	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/observability"
)

// Per-host removal policies. The archival profile assigns different
// semantics to different hosts: catalog and non-widget annotations keep
// compliant actions (with their chains sanitized), pages may not carry
// additional-actions at all, and interactive form triggers are forbidden
// categorically even when each action would be compliant in isolation.

// RemoveActions applies the per-host action policies across the whole
// document and returns the exact number of discrete removal/rewrite
// operations performed.
func (p *Pass) RemoveActions() int {
	catalog := p.doc.Catalog()
	if catalog == nil {
		return 0
	}
	removed := 0

	// Catalog /OpenAction: classify; keep-and-sanitize when compliant.
	// A destination array is not an action and is left for destination
	// validation.
	if openAction, ok := catalog.Get(nm("OpenAction")); ok {
		switch resolved := p.doc.Resolve(openAction).(type) {
		case raw.Dictionary:
			if p.Classify(resolved) != Compliant {
				catalog.Delete(nm("OpenAction"))
				removed++
				p.log.Debug("non-compliant OpenAction removed")
			} else {
				removed += p.sanitizeNextChain(resolved, nil)
			}
		case raw.Array:
			// Destination form; handled by ValidateDestinations.
		default:
			catalog.Delete(nm("OpenAction"))
			removed++
		}
	}

	// Catalog /AA is forbidden entirely (ISO 19005-2, clause 6.6.1).
	if _, ok := catalog.Get(nm("AA")); ok {
		catalog.Delete(nm("AA"))
		removed++
		p.log.Debug("catalog additional-actions removed")
	}

	for _, pageRef := range p.doc.Pages() {
		obj, ok := p.doc.ResolveRef(pageRef)
		if !ok {
			continue
		}
		page, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}

		// Page /AA is forbidden entirely, regardless of content
		// (ISO 19005-2, clause 6.6.2).
		if _, ok := page.Get(nm("AA")); ok {
			page.Delete(nm("AA"))
			removed++
		}

		removed += p.sanitizeAnnotationActions(page)
	}

	// Outline (bookmark) items.
	if outlines, ok := p.doc.DictGetDict(catalog, "Outlines"); ok {
		removed += p.removeOutlineActions(outlines, make(map[raw.ObjectRef]struct{}), 0)
	}

	// AcroForm field tree.
	if acroform, ok := p.doc.DictGetDict(catalog, "AcroForm"); ok {
		if fields, ok := p.doc.DictGetArray(acroform, "Fields"); ok {
			removed += p.removeFieldActions(fields, make(map[raw.ObjectRef]struct{}), 0)
		}
	}

	if removed > 0 {
		p.log.Info("non-compliant actions removed", observability.Int("count", removed))
	}
	return removed
}

func (p *Pass) sanitizeAnnotationActions(page raw.Dictionary) int {
	annots, ok := p.doc.DictGetArray(page, "Annots")
	if !ok {
		return 0
	}
	removed := 0
	for i := 0; i < annots.Len(); i++ {
		item, _ := annots.Get(i)
		annot, ok := p.resolveDict(item)
		if !ok {
			continue
		}

		subtype, _ := p.doc.DictGetName(annot, "Subtype")
		isWidget := subtype == "Widget"

		// Widget annotations must not carry /A or /AA at all
		// (rule 6.4.1); other annotations keep compliant actions.
		if action, ok := annot.Get(nm("A")); ok {
			if isWidget || p.Classify(action) != Compliant {
				annot.Delete(nm("A"))
				removed++
			} else {
				removed += p.sanitizeNextChain(action, nil)
			}
		}

		if aaVal, ok := annot.Get(nm("AA")); ok {
			if isWidget {
				annot.Delete(nm("AA"))
				removed++
				continue
			}
			aa, ok := p.resolveDict(aaVal)
			if !ok {
				continue
			}
			var bad []raw.Name
			for _, trigger := range aa.Keys() {
				action, ok := aa.Get(trigger)
				if !ok {
					continue
				}
				if p.Classify(action) != Compliant {
					bad = append(bad, trigger)
				} else {
					removed += p.sanitizeNextChain(action, nil)
				}
			}
			for _, trigger := range bad {
				aa.Delete(trigger)
				removed++
			}
			if aa.Len() == 0 {
				annot.Delete(nm("AA"))
			}
		}
	}
	return removed
}

// removeOutlineActions walks the sibling chain below node via /First and
// /Next, applying the non-widget annotation policy to each item and
// recursing into children.
func (p *Pass) removeOutlineActions(node raw.Dictionary, visited map[raw.ObjectRef]struct{}, depth int) int {
	if depth > p.maxDepth() {
		return 0
	}
	removed := 0
	item, ok := node.Get(nm("First"))
	if !ok {
		return 0
	}
	for item != nil {
		resolved, ref, hasRef := p.doc.ResolveWithRef(item)
		if resolved == nil {
			break
		}
		dict, ok := resolved.(raw.Dictionary)
		if !ok {
			break
		}
		if hasRef && !ref.IsZero() {
			if _, seen := visited[ref]; seen {
				break
			}
			visited[ref] = struct{}{}
		}

		if action, ok := dict.Get(nm("A")); ok {
			if p.Classify(action) != Compliant {
				dict.Delete(nm("A"))
				removed++
			} else {
				removed += p.sanitizeNextChain(action, nil)
			}
		}

		if _, ok := dict.Get(nm("First")); ok {
			removed += p.removeOutlineActions(dict, visited, depth+1)
		}

		next, ok := dict.Get(nm("Next"))
		if !ok {
			break
		}
		item = next
	}
	return removed
}

// removeFieldActions strips /A and /AA from every form field
// unconditionally (rule 6.4.1) and recurses into /Kids regardless of
// whether the parent field carried an action.
func (p *Pass) removeFieldActions(fields raw.Array, visited map[raw.ObjectRef]struct{}, depth int) int {
	if depth > p.maxDepth() {
		return 0
	}
	removed := 0
	for i := 0; i < fields.Len(); i++ {
		item, _ := fields.Get(i)
		resolved, ref, hasRef := p.doc.ResolveWithRef(item)
		if resolved == nil {
			continue
		}
		field, ok := resolved.(raw.Dictionary)
		if !ok {
			continue
		}
		if hasRef && !ref.IsZero() {
			if _, seen := visited[ref]; seen {
				continue
			}
			visited[ref] = struct{}{}
		}

		if _, ok := field.Get(nm("A")); ok {
			field.Delete(nm("A"))
			removed++
		}
		if _, ok := field.Get(nm("AA")); ok {
			field.Delete(nm("AA"))
			removed++
		}

		if kids, ok := p.doc.DictGetArray(field, "Kids"); ok {
			removed += p.removeFieldActions(kids, visited, depth+1)
		}
	}
	return removed
}
