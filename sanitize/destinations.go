package sanitize

import (
	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/observability"
)

// Destination validation. A destination is valid iff its resolved target
// array's first element is a reference whose identity is a member of the
// page set live at validation time, or a name/string defined in the named
// destination tables. GoToR and GoToE actions target external files and are
// never checked.

// ValidateDestinations removes destinations referencing pages that no
// longer exist: catalog /OpenAction in destination form, GoTo actions and
// /Dest entries on annotations and outline items, and dead entries in the
// named destination tables themselves. Returns the number of removals.
func (p *Pass) ValidateDestinations() int {
	catalog := p.doc.Catalog()
	if catalog == nil {
		return 0
	}

	pageSet := make(map[raw.ObjectRef]struct{})
	for _, ref := range p.doc.Pages() {
		pageSet[ref] = struct{}{}
	}
	namedDests := p.collectNamedDestinations(catalog)

	removed := 0

	// Catalog /OpenAction in direct destination-array form.
	if openAction, ok := catalog.Get(nm("OpenAction")); ok {
		if arr, isArr := p.doc.Resolve(openAction).(raw.Array); isArr {
			if p.isInvalidDestination(arr, pageSet, namedDests) {
				catalog.Delete(nm("OpenAction"))
				removed++
				p.log.Debug("invalid OpenAction destination removed")
			}
		}
	}

	// GoTo actions and /Dest entries on annotations.
	for _, pageRef := range p.doc.Pages() {
		obj, ok := p.doc.ResolveRef(pageRef)
		if !ok {
			continue
		}
		page, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		annots, ok := p.doc.DictGetArray(page, "Annots")
		if !ok {
			continue
		}
		for i := 0; i < annots.Len(); i++ {
			item, _ := annots.Get(i)
			annot, ok := p.resolveDict(item)
			if !ok {
				continue
			}
			removed += p.validateHostDestination(annot, pageSet, namedDests)
		}
	}

	// Outline items.
	if outlines, ok := p.doc.DictGetDict(catalog, "Outlines"); ok {
		removed += p.validateOutlineDestinations(outlines, pageSet, namedDests, make(map[raw.ObjectRef]struct{}), 0)
	}

	// The named destination tables themselves.
	removed += p.pruneNamedDestinations(catalog, pageSet)

	if removed > 0 {
		p.log.Info("invalid destinations removed", observability.Int("count", removed))
	}
	return removed
}

// validateHostDestination checks the /A (GoTo only) and /Dest entries of a
// destination-bearing host and removes whichever is invalid. The whole
// action is removed rather than just /D: a GoTo action exists only for its
// destination.
func (p *Pass) validateHostDestination(host raw.Dictionary, pageSet map[raw.ObjectRef]struct{}, namedDests map[string]struct{}) int {
	removed := 0

	if actionVal, ok := host.Get(nm("A")); ok {
		if action, ok := p.resolveDict(actionVal); ok {
			if subtype, _ := p.doc.DictGetName(action, "S"); subtype == "GoTo" {
				if dest, ok := action.Get(nm("D")); ok {
					if p.isInvalidDestination(dest, pageSet, namedDests) {
						host.Delete(nm("A"))
						removed++
					}
				}
			}
		}
	}

	if dest, ok := host.Get(nm("Dest")); ok {
		if p.isInvalidDestination(dest, pageSet, namedDests) {
			host.Delete(nm("Dest"))
			removed++
		}
	}
	return removed
}

func (p *Pass) validateOutlineDestinations(node raw.Dictionary, pageSet map[raw.ObjectRef]struct{}, namedDests map[string]struct{}, visited map[raw.ObjectRef]struct{}, depth int) int {
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

		removed += p.validateHostDestination(dict, pageSet, namedDests)

		if _, ok := dict.Get(nm("First")); ok {
			removed += p.validateOutlineDestinations(dict, pageSet, namedDests, visited, depth+1)
		}

		next, ok := dict.Get(nm("Next"))
		if !ok {
			break
		}
		item = next
	}
	return removed
}

// isInvalidDestination reports whether a destination value should be
// removed. Array targets are checked against the live page set; name and
// string targets against the defined named destination keys; anything else
// is invalid.
func (p *Pass) isInvalidDestination(destObj raw.Object, pageSet map[raw.ObjectRef]struct{}, namedDests map[string]struct{}) bool {
	dest := p.doc.Resolve(destObj)
	if dest == nil {
		return true
	}
	switch v := dest.(type) {
	case raw.Array:
		return !p.arrayTargetsLivePage(v, pageSet)
	case raw.String:
		_, defined := namedDests[string(v.Value())]
		return !defined
	case raw.Name:
		_, defined := namedDests[v.Value()]
		return !defined
	default:
		return true
	}
}

// arrayTargetsLivePage reports whether the first element of a destination
// array resolves to a live page identity.
func (p *Pass) arrayTargetsLivePage(arr raw.Array, pageSet map[raw.ObjectRef]struct{}) bool {
	if arr.Len() == 0 {
		return false
	}
	first, _ := arr.Get(0)
	resolved, ref, hasRef := p.doc.ResolveWithRef(first)
	if resolved == nil || !hasRef {
		return false
	}
	_, live := pageSet[ref]
	return live
}

// collectNamedDestinations gathers the defined named destination keys from
// both the modern /Root/Names/Dests name tree and the legacy /Root/Dests
// flat dictionary.
func (p *Pass) collectNamedDestinations(catalog raw.Dictionary) map[string]struct{} {
	names := make(map[string]struct{})

	if namesDict, ok := p.doc.DictGetDict(catalog, "Names"); ok {
		if tree, ok := p.doc.DictGetDict(namesDict, "Dests"); ok {
			p.collectNameTreeKeys(tree, names, make(map[raw.ObjectRef]struct{}), 0)
		}
	}

	if legacy, ok := p.doc.DictGetDict(catalog, "Dests"); ok {
		for _, key := range legacy.Keys() {
			names[key.Value()] = struct{}{}
		}
	}
	return names
}

func (p *Pass) collectNameTreeKeys(node raw.Dictionary, names map[string]struct{}, visited map[raw.ObjectRef]struct{}, depth int) {
	if depth > p.maxDepth() {
		return
	}
	if arr, ok := p.doc.DictGetArray(node, "Names"); ok {
		// Name trees hold alternating key/value pairs.
		for i := 0; i+1 < arr.Len(); i += 2 {
			key, _ := arr.Get(i)
			switch k := p.doc.Resolve(key).(type) {
			case raw.String:
				names[string(k.Value())] = struct{}{}
			case raw.Name:
				names[k.Value()] = struct{}{}
			}
		}
	}
	if kids, ok := p.doc.DictGetArray(node, "Kids"); ok {
		for i := 0; i < kids.Len(); i++ {
			item, _ := kids.Get(i)
			kid, ref, hasRef := p.doc.ResolveWithRef(item)
			if hasRef && !ref.IsZero() {
				if _, seen := visited[ref]; seen {
					continue
				}
				visited[ref] = struct{}{}
			}
			if dict, ok := kid.(raw.Dictionary); ok {
				p.collectNameTreeKeys(dict, names, visited, depth+1)
			}
		}
	}
}

// pruneNamedDestinations removes entries with dead page targets from the
// named destination tables. When pruning empties a node's /Names pair
// array, the key itself is dropped from the node.
func (p *Pass) pruneNamedDestinations(catalog raw.Dictionary, pageSet map[raw.ObjectRef]struct{}) int {
	removed := 0

	if namesDict, ok := p.doc.DictGetDict(catalog, "Names"); ok {
		if tree, ok := p.doc.DictGetDict(namesDict, "Dests"); ok {
			removed += p.pruneNameTreeNode(tree, pageSet, make(map[raw.ObjectRef]struct{}), 0)
		}
	}

	if legacy, ok := p.doc.DictGetDict(catalog, "Dests"); ok {
		var bad []raw.Name
		for _, key := range legacy.Keys() {
			val, ok := legacy.Get(key)
			if !ok || p.isDestEntryInvalid(val, pageSet) {
				bad = append(bad, key)
			}
		}
		for _, key := range bad {
			legacy.Delete(key)
			removed++
		}
	}
	return removed
}

func (p *Pass) pruneNameTreeNode(node raw.Dictionary, pageSet map[raw.ObjectRef]struct{}, visited map[raw.ObjectRef]struct{}, depth int) int {
	if depth > p.maxDepth() {
		return 0
	}
	removed := 0

	if arr, ok := p.doc.DictGetArray(node, "Names"); ok {
		var bad []int
		for i := 0; i+1 < arr.Len(); i += 2 {
			val, _ := arr.Get(i + 1)
			if p.isDestEntryInvalid(val, pageSet) {
				bad = append(bad, i)
			}
		}
		// Remove pairs in reverse order to keep indices valid.
		for i := len(bad) - 1; i >= 0; i-- {
			arr.Remove(bad[i] + 1)
			arr.Remove(bad[i])
			removed++
		}
		if arr.Len() == 0 {
			node.Delete(nm("Names"))
		}
	}

	if kids, ok := p.doc.DictGetArray(node, "Kids"); ok {
		for i := 0; i < kids.Len(); i++ {
			item, _ := kids.Get(i)
			kid, ref, hasRef := p.doc.ResolveWithRef(item)
			if hasRef && !ref.IsZero() {
				if _, seen := visited[ref]; seen {
					continue
				}
				visited[ref] = struct{}{}
			}
			if dict, ok := kid.(raw.Dictionary); ok {
				removed += p.pruneNameTreeNode(dict, pageSet, visited, depth+1)
			}
		}
	}
	return removed
}

// isDestEntryInvalid checks a named destination value: either a target
// array directly, or a dictionary whose /D holds the target array.
func (p *Pass) isDestEntryInvalid(valObj raw.Object, pageSet map[raw.ObjectRef]struct{}) bool {
	val := p.doc.Resolve(valObj)
	if val == nil {
		return true
	}
	if dict, ok := val.(raw.Dictionary); ok {
		inner, ok := dict.Get(nm("D"))
		if !ok {
			return true
		}
		val = p.doc.Resolve(inner)
		if val == nil {
			return true
		}
	}
	arr, ok := val.(raw.Array)
	if !ok {
		return true
	}
	return !p.arrayTargetsLivePage(arr, pageSet)
}
