package raw

// Arena operations: every inter-object edge in a Document is an ObjectRef
// lookup, so resolution and identity checks live here.

// maxResolveDepth bounds chains of references pointing at references.
const maxResolveDepth = 32

// maxPageTreeDepth bounds /Pages tree recursion on adversarial input.
const maxPageTreeDepth = 64

// Resolve follows indirect references until a non-reference object is
// reached. An unresolvable or over-deep reference yields nil; callers treat
// that as an abandoned branch, not an error.
func (d *Document) Resolve(obj Object) Object {
	res, _, _ := d.ResolveWithRef(obj)
	return res
}

// ResolveWithRef resolves obj and additionally reports the identity of the
// last indirect object followed. hasRef is false when obj was a direct
// object all along.
func (d *Document) ResolveWithRef(obj Object) (resolved Object, ref ObjectRef, hasRef bool) {
	for depth := 0; depth < maxResolveDepth; depth++ {
		r, ok := obj.(Reference)
		if !ok {
			return obj, ref, hasRef
		}
		ref = r.Ref()
		hasRef = true
		next, found := d.Objects[ref]
		if !found || next == nil {
			return nil, ref, true
		}
		obj = next
	}
	return nil, ref, hasRef
}

// ResolveRef looks up a single identity in the arena.
func (d *Document) ResolveRef(ref ObjectRef) (Object, bool) {
	obj, ok := d.Objects[ref]
	if !ok || obj == nil {
		return nil, false
	}
	return obj, true
}

// Register stores obj under a freshly allocated object number and returns
// the new reference (make-indirect).
func (d *Document) Register(obj Object) RefObj {
	if d.nextNum == 0 {
		for ref := range d.Objects {
			if ref.Num > d.nextNum {
				d.nextNum = ref.Num
			}
		}
	}
	d.nextNum++
	ref := ObjectRef{Num: d.nextNum}
	d.Objects[ref] = obj
	return RefObj{R: ref}
}

// Put stores obj under an explicit identity, replacing any previous object.
func (d *Document) Put(ref ObjectRef, obj Object) {
	d.Objects[ref] = obj
	if ref.Num > d.nextNum {
		d.nextNum = ref.Num
	}
}

// Catalog resolves the document catalog from the trailer /Root entry.
func (d *Document) Catalog() Dictionary {
	if d.Trailer == nil {
		return nil
	}
	root, ok := d.Trailer.Get(NameObj{Val: "Root"})
	if !ok {
		return nil
	}
	dict, _ := d.Resolve(root).(Dictionary)
	return dict
}

// Pages returns the identities of the currently live pages in document
// order, collected by walking the page tree. The result reflects the tree
// as it is at call time.
func (d *Document) Pages() []ObjectRef {
	catalog := d.Catalog()
	if catalog == nil {
		return nil
	}
	pagesObj, ok := catalog.Get(NameObj{Val: "Pages"})
	if !ok {
		return nil
	}
	var out []ObjectRef
	visited := make(map[ObjectRef]struct{})
	d.collectPages(pagesObj, visited, 0, &out)
	return out
}

func (d *Document) collectPages(obj Object, visited map[ObjectRef]struct{}, depth int, out *[]ObjectRef) {
	if depth > maxPageTreeDepth {
		return
	}
	node, ref, hasRef := d.ResolveWithRef(obj)
	if hasRef {
		if _, seen := visited[ref]; seen {
			return
		}
		visited[ref] = struct{}{}
	}
	dict, ok := node.(Dictionary)
	if !ok {
		return
	}
	if t, ok := dict.Get(NameObj{Val: "Type"}); ok {
		if n, ok := d.Resolve(t).(Name); ok && n.Value() == "Page" {
			if hasRef {
				*out = append(*out, ref)
			}
			return
		}
	}
	kids, ok := dict.Get(NameObj{Val: "Kids"})
	if !ok {
		return
	}
	arr, ok := d.Resolve(kids).(Array)
	if !ok {
		return
	}
	for i := 0; i < arr.Len(); i++ {
		kid, _ := arr.Get(i)
		if kid != nil {
			d.collectPages(kid, visited, depth+1, out)
		}
	}
}

// DictGet resolves dict[key]; ok is false when the key is absent or the
// value cannot be resolved.
func (d *Document) DictGet(dict Dictionary, key string) (Object, bool) {
	if dict == nil {
		return nil, false
	}
	v, ok := dict.Get(NameObj{Val: key})
	if !ok {
		return nil, false
	}
	res := d.Resolve(v)
	if res == nil {
		return nil, false
	}
	return res, true
}

// DictGetDict resolves dict[key] as a Dictionary.
func (d *Document) DictGetDict(dict Dictionary, key string) (Dictionary, bool) {
	v, ok := d.DictGet(dict, key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(Dictionary)
	return sub, ok
}

// DictGetArray resolves dict[key] as an Array.
func (d *Document) DictGetArray(dict Dictionary, key string) (Array, bool) {
	v, ok := d.DictGet(dict, key)
	if !ok {
		return nil, false
	}
	arr, ok := v.(Array)
	return arr, ok
}

// DictGetName resolves dict[key] as a Name and returns its value.
func (d *Document) DictGetName(dict Dictionary, key string) (string, bool) {
	v, ok := d.DictGet(dict, key)
	if !ok {
		return "", false
	}
	n, ok := v.(Name)
	if !ok {
		return "", false
	}
	return n.Value(), true
}
