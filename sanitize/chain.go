package sanitize

import "github.com/wudi/pdfarc/ir/raw"

// /Next chain sanitization. A compliant action may carry follow-up actions
// via /Next (a single action or an array); forbidden actions must not hide
// behind a compliant head. The format disallows true cycles in /Next, but
// adversarial input may contain them, so every recursion is identity-guarded.

// sanitizeNextChain prunes non-compliant entries from the /Next chain of a
// (compliant) action, in place, and returns the number of dropped chain
// nodes. A dropped node takes its descendants with it: the count includes
// the node's own /Next sub-chain.
//
// After the pass the /Next field is absent, a single action, or an array of
// two or more actions in original relative order — never a 1-element array.
func (p *Pass) sanitizeNextChain(actionObj raw.Object, visited map[raw.ObjectRef]struct{}) int {
	if visited == nil {
		visited = make(map[raw.ObjectRef]struct{})
	}
	return p.sanitizeNext(actionObj, visited, 0)
}

func (p *Pass) sanitizeNext(actionObj raw.Object, visited map[raw.ObjectRef]struct{}, depth int) int {
	if depth > p.maxDepth() {
		return 0
	}
	action, ref, hasRef := p.doc.ResolveWithRef(actionObj)
	if action == nil {
		return 0
	}
	dict, ok := action.(raw.Dictionary)
	if !ok {
		return 0
	}
	if hasRef && !ref.IsZero() {
		if _, seen := visited[ref]; seen {
			return 0
		}
		visited[ref] = struct{}{}
	}

	nextVal, ok := dict.Get(nm("Next"))
	if !ok {
		return 0
	}
	next := p.doc.Resolve(nextVal)

	removed := 0
	switch v := next.(type) {
	case raw.Array:
		var bad []int
		for i := 0; i < v.Len(); i++ {
			link, _ := v.Get(i)
			if p.Classify(link) != Compliant {
				bad = append(bad, i)
			} else {
				removed += p.sanitizeNext(link, visited, depth+1)
			}
		}
		// Remove in reverse order to keep indices valid.
		for i := len(bad) - 1; i >= 0; i-- {
			link, _ := v.Get(bad[i])
			removed += 1 + p.countChain(link, visited, depth+1)
			v.Remove(bad[i])
		}
		switch v.Len() {
		case 0:
			dict.Delete(nm("Next"))
		case 1:
			survivor, _ := v.Get(0)
			dict.Set(nm("Next"), survivor)
		}
	case raw.Dictionary:
		if p.Classify(v) != Compliant {
			removed += 1 + p.countChain(v, visited, depth+1)
			dict.Delete(nm("Next"))
		} else {
			removed += p.sanitizeNext(v, visited, depth+1)
		}
	}
	return removed
}

// countChain counts the nodes of a dropped action's /Next sub-chain without
// mutating anything; the dropped head itself is not counted.
func (p *Pass) countChain(actionObj raw.Object, visited map[raw.ObjectRef]struct{}, depth int) int {
	if depth > p.maxDepth() {
		return 0
	}
	action, ref, hasRef := p.doc.ResolveWithRef(actionObj)
	if action == nil {
		return 0
	}
	dict, ok := action.(raw.Dictionary)
	if !ok {
		return 0
	}
	if hasRef && !ref.IsZero() {
		if _, seen := visited[ref]; seen {
			return 0
		}
		visited[ref] = struct{}{}
	}

	nextVal, ok := dict.Get(nm("Next"))
	if !ok {
		return 0
	}

	count := 0
	switch v := p.doc.Resolve(nextVal).(type) {
	case raw.Array:
		for i := 0; i < v.Len(); i++ {
			link, _ := v.Get(i)
			if _, isDict := p.doc.Resolve(link).(raw.Dictionary); isDict {
				count += 1 + p.countChain(link, visited, depth+1)
			}
		}
	case raw.Dictionary:
		count += 1 + p.countChain(v, visited, depth+1)
	}
	return count
}
