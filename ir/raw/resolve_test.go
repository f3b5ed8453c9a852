package raw

import "testing"

func buildPageTree(t *testing.T) (*Document, []ObjectRef) {
	t.Helper()
	doc := NewDocument()

	pagesDict := Dict()
	pagesRef := doc.Register(pagesDict)

	var pageRefs []ObjectRef
	kids := NewArray()
	for i := 0; i < 3; i++ {
		page := Dict()
		page.Set(NameLiteral("Type"), NameLiteral("Page"))
		page.Set(NameLiteral("Parent"), pagesRef)
		ref := doc.Register(page)
		pageRefs = append(pageRefs, ref.R)
		kids.Append(ref)
	}
	pagesDict.Set(NameLiteral("Type"), NameLiteral("Pages"))
	pagesDict.Set(NameLiteral("Kids"), kids)
	pagesDict.Set(NameLiteral("Count"), NumberInt(3))

	catalog := Dict()
	catalog.Set(NameLiteral("Type"), NameLiteral("Catalog"))
	catalog.Set(NameLiteral("Pages"), pagesRef)
	catalogRef := doc.Register(catalog)
	doc.Trailer.Set(NameLiteral("Root"), catalogRef)

	return doc, pageRefs
}

func TestResolveFollowsReferenceChains(t *testing.T) {
	doc := NewDocument()
	target := doc.Register(NameLiteral("leaf"))
	alias := doc.Register(target)

	res, ref, hasRef := doc.ResolveWithRef(alias)
	if res == nil {
		t.Fatal("expected resolution to succeed")
	}
	if n, ok := res.(Name); !ok || n.Value() != "leaf" {
		t.Fatalf("resolved to %v, want name leaf", res)
	}
	if !hasRef || ref != target.R {
		t.Fatalf("final ref = %v, want %v", ref, target.R)
	}
}

func TestResolveUnresolvableReturnsNil(t *testing.T) {
	doc := NewDocument()
	if got := doc.Resolve(Ref(99, 0)); got != nil {
		t.Fatalf("dangling reference resolved to %v, want nil", got)
	}
}

func TestResolveSelfReferenceTerminates(t *testing.T) {
	doc := NewDocument()
	doc.Put(ObjectRef{Num: 5}, Ref(5, 0))
	if got := doc.Resolve(Ref(5, 0)); got != nil {
		t.Fatalf("self-referential chain resolved to %v, want nil", got)
	}
}

func TestRegisterAllocatesFreshNumbers(t *testing.T) {
	doc := NewDocument()
	doc.Put(ObjectRef{Num: 7}, NameLiteral("existing"))

	ref := doc.Register(NameLiteral("new"))
	if ref.R.Num <= 7 {
		t.Fatalf("Register allocated %d, want > 7", ref.R.Num)
	}
	if _, ok := doc.ResolveRef(ref.R); !ok {
		t.Fatal("registered object not found in arena")
	}
}

func TestPagesCollectsLeavesInOrder(t *testing.T) {
	doc, want := buildPageTree(t)
	got := doc.Pages()
	if len(got) != len(want) {
		t.Fatalf("Pages() returned %d refs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("page %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPagesSurvivesCyclicPageTree(t *testing.T) {
	doc, want := buildPageTree(t)
	// Point an intermediate node back at itself via Kids.
	catalog := doc.Catalog()
	pagesObj, _ := catalog.Get(NameLiteral("Pages"))
	pages := doc.Resolve(pagesObj).(Dictionary)
	kidsObj, _ := pages.Get(NameLiteral("Kids"))
	kids := kidsObj.(Array)
	kids.Append(pagesObj) // cycle

	got := doc.Pages()
	if len(got) != len(want) {
		t.Fatalf("cyclic tree yielded %d pages, want %d", len(got), len(want))
	}
}

func TestArrayRemoveAndSet(t *testing.T) {
	arr := NewArray(NameLiteral("a"), NameLiteral("b"), NameLiteral("c"))
	arr.Remove(1)
	if arr.Len() != 2 {
		t.Fatalf("len = %d, want 2", arr.Len())
	}
	if v, _ := arr.Get(1); v.(Name).Value() != "c" {
		t.Fatalf("arr[1] = %v, want c", v)
	}
	arr.Set(0, NameLiteral("z"))
	if v, _ := arr.Get(0); v.(Name).Value() != "z" {
		t.Fatalf("arr[0] = %v, want z", v)
	}
}

func TestDictDelete(t *testing.T) {
	d := Dict()
	d.Set(NameLiteral("A"), NumberInt(1))
	d.Delete(NameLiteral("A"))
	if _, ok := d.Get(NameLiteral("A")); ok {
		t.Fatal("key A still present after Delete")
	}
	if d.Len() != 0 {
		t.Fatalf("len = %d, want 0", d.Len())
	}
}
