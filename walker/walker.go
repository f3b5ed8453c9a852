// Package walker enumerates every object reachable from a document's
// structural roots: the page tree, page resources and nested form XObjects,
// annotations and their appearance streams, the interactive form field tree,
// the outline tree, and the name-indexed trees under /Root/Names.
//
// Each indirect object is presented to the visit function exactly once,
// keyed by its identity (object number + generation). Unresolvable
// references and branches beyond the depth cap are skipped silently; a walk
// never fails.
package walker

import (
	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/security"
)

// Role identifies the structural position in which an object was reached.
type Role int

const (
	RoleCatalog Role = iota
	RolePage
	RolePageResources
	RoleFormXObject
	RoleAnnotation
	RoleAppearanceStream
	RoleFormField
	RoleOutlineItem
	RoleNameTreeNode
)

func (r Role) String() string {
	switch r {
	case RoleCatalog:
		return "Catalog"
	case RolePage:
		return "Page"
	case RolePageResources:
		return "PageResources"
	case RoleFormXObject:
		return "FormXObject"
	case RoleAnnotation:
		return "Annotation"
	case RoleAppearanceStream:
		return "AppearanceStream"
	case RoleFormField:
		return "FormField"
	case RoleOutlineItem:
		return "OutlineItem"
	case RoleNameTreeNode:
		return "NameTreeNode"
	default:
		return "Unknown"
	}
}

// VisitFunc receives each reachable object together with its structural
// role. ref is the zero ObjectRef for direct objects. Returning false stops
// the walk.
type VisitFunc func(obj raw.Object, ref raw.ObjectRef, role Role) bool

// Walker traverses the structural object graph of one document.
// A Walker is single-use: visited state is not reset between calls.
type Walker struct {
	doc      *raw.Document
	maxDepth int
	visited  map[raw.ObjectRef]struct{}
	count    int
	stopped  bool
}

// New returns a Walker over doc using the traversal caps from limits.
func New(doc *raw.Document, limits security.Limits) *Walker {
	return &Walker{
		doc:      doc,
		maxDepth: limits.TreeDepth(),
		visited:  make(map[raw.ObjectRef]struct{}),
	}
}

// Walk presents every reachable object to visit exactly once and returns
// the number of objects visited.
func (w *Walker) Walk(visit VisitFunc) int {
	catalog := w.doc.Catalog()
	if catalog == nil {
		return 0
	}
	if !w.yield(catalog, w.catalogRef(), RoleCatalog, visit) {
		return w.count
	}

	w.walkPages(visit)
	if w.stopped {
		return w.count
	}
	w.walkFields(catalog, visit)
	if w.stopped {
		return w.count
	}
	w.walkOutlines(catalog, visit)
	if w.stopped {
		return w.count
	}
	w.walkNameTrees(catalog, visit)
	return w.count
}

func (w *Walker) catalogRef() raw.ObjectRef {
	if w.doc.Trailer == nil {
		return raw.ObjectRef{}
	}
	root, ok := w.doc.Trailer.Get(raw.NameObj{Val: "Root"})
	if !ok {
		return raw.ObjectRef{}
	}
	if ref, ok := root.(raw.Reference); ok {
		return ref.Ref()
	}
	return raw.ObjectRef{}
}

// markVisited records ref and reports whether it had been seen before.
// The zero reference (direct objects) is never deduplicated.
func (w *Walker) markVisited(ref raw.ObjectRef) bool {
	if ref.IsZero() {
		return false
	}
	if _, seen := w.visited[ref]; seen {
		return true
	}
	w.visited[ref] = struct{}{}
	return false
}

func (w *Walker) yield(obj raw.Object, ref raw.ObjectRef, role Role, visit VisitFunc) bool {
	if w.markVisited(ref) {
		return true
	}
	w.count++
	if !visit(obj, ref, role) {
		w.stopped = true
		return false
	}
	return true
}

// resolve follows obj through the arena, abandoning the branch on failure.
func (w *Walker) resolve(obj raw.Object) (raw.Object, raw.ObjectRef, bool) {
	res, ref, _ := w.doc.ResolveWithRef(obj)
	if res == nil {
		return nil, ref, false
	}
	return res, ref, true
}

func (w *Walker) walkPages(visit VisitFunc) {
	for _, pageRef := range w.doc.Pages() {
		if w.stopped {
			return
		}
		obj, ok := w.doc.ResolveRef(pageRef)
		if !ok {
			continue
		}
		page, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		if !w.yield(page, pageRef, RolePage, visit) {
			return
		}
		if res, ok := w.doc.DictGetDict(page, "Resources"); ok {
			w.walkResources(res, w.refOf(page, "Resources"), 0, visit)
			if w.stopped {
				return
			}
		}
		w.walkAnnotations(page, visit)
	}
}

// refOf returns the identity behind dict[key] when it is a reference.
func (w *Walker) refOf(dict raw.Dictionary, key string) raw.ObjectRef {
	v, ok := dict.Get(raw.NameObj{Val: key})
	if !ok {
		return raw.ObjectRef{}
	}
	if ref, ok := v.(raw.Reference); ok {
		return ref.Ref()
	}
	return raw.ObjectRef{}
}

// walkResources visits a resource dictionary and recurses into the
// resources of any Form XObjects it carries. Form XObjects may reference
// themselves or their ancestors; the visited set terminates such cycles.
func (w *Walker) walkResources(res raw.Dictionary, ref raw.ObjectRef, depth int, visit VisitFunc) {
	if depth > w.maxDepth {
		return
	}
	if !w.yield(res, ref, RolePageResources, visit) {
		return
	}
	xobjects, ok := w.doc.DictGetDict(res, "XObject")
	if !ok {
		return
	}
	for _, key := range xobjects.Keys() {
		entry, ok := xobjects.Get(key)
		if !ok {
			continue
		}
		obj, xref, ok := w.resolve(entry)
		if !ok {
			continue
		}
		stream, ok := obj.(raw.Stream)
		if !ok {
			continue
		}
		subtype, _ := w.doc.DictGetName(stream.Dictionary(), "Subtype")
		if subtype != "Form" {
			continue
		}
		if !w.yield(stream, xref, RoleFormXObject, visit) {
			return
		}
		if inner, ok := w.doc.DictGetDict(stream.Dictionary(), "Resources"); ok {
			w.walkResources(inner, w.refOf(stream.Dictionary(), "Resources"), depth+1, visit)
			if w.stopped {
				return
			}
		}
	}
}

func (w *Walker) walkAnnotations(page raw.Dictionary, visit VisitFunc) {
	annots, ok := w.doc.DictGetArray(page, "Annots")
	if !ok {
		return
	}
	for i := 0; i < annots.Len(); i++ {
		item, _ := annots.Get(i)
		obj, ref, ok := w.resolve(item)
		if !ok {
			continue
		}
		annot, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		if !w.yield(annot, ref, RoleAnnotation, visit) {
			return
		}
		w.walkAppearances(annot, visit)
		if w.stopped {
			return
		}
	}
}

// walkAppearances visits the /AP entries of an annotation. Each of /N, /R
// and /D is either a single appearance stream or a dictionary of alternate
// state streams, each of which is visited.
func (w *Walker) walkAppearances(annot raw.Dictionary, visit VisitFunc) {
	ap, ok := w.doc.DictGetDict(annot, "AP")
	if !ok {
		return
	}
	for _, key := range []string{"N", "R", "D"} {
		entry, ok := ap.Get(raw.NameObj{Val: key})
		if !ok {
			continue
		}
		obj, ref, ok := w.resolve(entry)
		if !ok {
			continue
		}
		switch v := obj.(type) {
		case raw.Stream:
			if !w.yield(v, ref, RoleAppearanceStream, visit) {
				return
			}
			if inner, ok := w.doc.DictGetDict(v.Dictionary(), "Resources"); ok {
				w.walkResources(inner, w.refOf(v.Dictionary(), "Resources"), 0, visit)
				if w.stopped {
					return
				}
			}
		case raw.Dictionary:
			// Alternate appearance states keyed by state name.
			for _, state := range v.Keys() {
				sub, ok := v.Get(state)
				if !ok {
					continue
				}
				sobj, sref, ok := w.resolve(sub)
				if !ok {
					continue
				}
				if stream, ok := sobj.(raw.Stream); ok {
					if !w.yield(stream, sref, RoleAppearanceStream, visit) {
						return
					}
				}
			}
		}
	}
}

func (w *Walker) walkFields(catalog raw.Dictionary, visit VisitFunc) {
	acroform, ok := w.doc.DictGetDict(catalog, "AcroForm")
	if !ok {
		return
	}
	fields, ok := w.doc.DictGetArray(acroform, "Fields")
	if !ok {
		return
	}
	w.walkFieldArray(fields, 0, visit)
}

func (w *Walker) walkFieldArray(fields raw.Array, depth int, visit VisitFunc) {
	if depth > w.maxDepth {
		return
	}
	for i := 0; i < fields.Len(); i++ {
		item, _ := fields.Get(i)
		obj, ref, ok := w.resolve(item)
		if !ok {
			continue
		}
		field, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		if !w.yield(field, ref, RoleFormField, visit) {
			return
		}
		if kids, ok := w.doc.DictGetArray(field, "Kids"); ok {
			w.walkFieldArray(kids, depth+1, visit)
			if w.stopped {
				return
			}
		}
	}
}

// walkOutlines traverses the outline tree via /First and /Next links.
// /Parent, /Prev and /Last are upward or redundant links and are never
// followed.
func (w *Walker) walkOutlines(catalog raw.Dictionary, visit VisitFunc) {
	outlines, ok := w.doc.DictGetDict(catalog, "Outlines")
	if !ok {
		return
	}
	w.walkOutlineChildren(outlines, 0, visit)
}

func (w *Walker) walkOutlineChildren(node raw.Dictionary, depth int, visit VisitFunc) {
	if depth > w.maxDepth {
		return
	}
	item, ok := node.Get(raw.NameObj{Val: "First"})
	if !ok {
		return
	}
	for item != nil {
		obj, ref, resolved := w.resolve(item)
		if !resolved {
			return
		}
		dict, ok := obj.(raw.Dictionary)
		if !ok {
			return
		}
		if w.markVisited(ref) {
			// Sibling ring loops back on itself.
			return
		}
		w.count++
		if !visit(dict, ref, RoleOutlineItem) {
			w.stopped = true
			return
		}
		w.walkOutlineChildren(dict, depth+1, visit)
		if w.stopped {
			return
		}
		next, ok := dict.Get(raw.NameObj{Val: "Next"})
		if !ok {
			return
		}
		item = next
	}
}

// namedTrees are the name-indexed lookup tables under /Root/Names that the
// compliance passes care about.
var namedTrees = []string{"Dests", "JavaScript", "EmbeddedFiles", "AP", "Pages", "Templates"}

func (w *Walker) walkNameTrees(catalog raw.Dictionary, visit VisitFunc) {
	names, ok := w.doc.DictGetDict(catalog, "Names")
	if !ok {
		return
	}
	for _, treeName := range namedTrees {
		entry, ok := names.Get(raw.NameObj{Val: treeName})
		if !ok {
			continue
		}
		obj, ref, resolved := w.resolve(entry)
		if !resolved {
			continue
		}
		node, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		w.walkNameTreeNode(node, ref, 0, visit)
		if w.stopped {
			return
		}
	}
}

func (w *Walker) walkNameTreeNode(node raw.Dictionary, ref raw.ObjectRef, depth int, visit VisitFunc) {
	if depth > w.maxDepth {
		return
	}
	if !w.yield(node, ref, RoleNameTreeNode, visit) {
		return
	}
	kids, ok := w.doc.DictGetArray(node, "Kids")
	if !ok {
		return
	}
	for i := 0; i < kids.Len(); i++ {
		item, _ := kids.Get(i)
		obj, kref, resolved := w.resolve(item)
		if !resolved {
			continue
		}
		kid, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		w.walkNameTreeNode(kid, kref, depth+1, visit)
		if w.stopped {
			return
		}
	}
}
