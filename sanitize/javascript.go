package sanitize

import (
	"github.com/dop251/goja/parser"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/observability"
)

// Document-level JavaScript removal. JavaScript actions attached to hosts
// are already covered by RemoveActions (the JavaScript discriminant is not
// in the allow table); this pass drops the named script tree under
// /Root/Names/JavaScript.

// RemoveJavaScript removes the named JavaScript tree and returns the number
// of elements removed (0 or 1). Scripts found in the tree are run through
// the JavaScript parser first so the conversion report can distinguish live
// scripts from garbage.
func (p *Pass) RemoveJavaScript() int {
	catalog := p.doc.Catalog()
	if catalog == nil {
		return 0
	}
	names, ok := p.doc.DictGetDict(catalog, "Names")
	if !ok {
		return 0
	}
	tree, ok := p.doc.DictGetDict(names, "JavaScript")
	if !ok {
		return 0
	}

	total, parseable := p.triageScripts(tree, make(map[raw.ObjectRef]struct{}), 0)
	names.Delete(nm("JavaScript"))
	p.log.Info("named JavaScript tree removed",
		observability.Int("scripts", total),
		observability.Int("parseable", parseable))
	return 1
}

// triageScripts walks a JavaScript name tree and counts the scripts it
// holds, along with how many parse as valid ECMAScript.
func (p *Pass) triageScripts(node raw.Dictionary, visited map[raw.ObjectRef]struct{}, depth int) (total, parseable int) {
	if depth > p.maxDepth() {
		return 0, 0
	}
	if arr, ok := p.doc.DictGetArray(node, "Names"); ok {
		for i := 0; i+1 < arr.Len(); i += 2 {
			val, _ := arr.Get(i + 1)
			src, ok := p.scriptSource(val)
			if !ok {
				continue
			}
			total++
			if _, err := parser.ParseFile(nil, "embedded.js", src, 0); err == nil {
				parseable++
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
				t, v := p.triageScripts(dict, visited, depth+1)
				total += t
				parseable += v
			}
		}
	}
	return total, parseable
}

// scriptSource extracts the script text from a JavaScript action value.
// Filtered streams are skipped: the raw bytes are not ECMAScript.
func (p *Pass) scriptSource(valObj raw.Object) (string, bool) {
	action, ok := p.resolveDict(valObj)
	if !ok {
		return "", false
	}
	js, ok := p.doc.DictGet(action, "JS")
	if !ok {
		return "", false
	}
	switch v := js.(type) {
	case raw.String:
		return string(v.Value()), true
	case raw.Stream:
		if _, filtered := v.Dictionary().Get(nm("Filter")); filtered {
			return "", false
		}
		return string(v.RawData()), true
	default:
		return "", false
	}
}
