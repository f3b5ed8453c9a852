package sanitize_test

import (
	"testing"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/sanitize"
)

func TestRemoveXFAStripsPacketAndFlag(t *testing.T) {
	doc, catalog, _ := newTestDoc(t, 1)

	field := raw.Dict()
	field.Set(raw.NameLiteral("T"), raw.Str([]byte("name")))
	acroForm := raw.Dict()
	acroForm.Set(raw.NameLiteral("Fields"), raw.NewArray(doc.Register(field)))
	acroForm.Set(raw.NameLiteral("XFA"), doc.Register(raw.NewStream(raw.Dict(), []byte("<xdp/>"))))
	acroForm.Set(raw.NameLiteral("NeedsRendering"), raw.Bool(true))
	catalog.Set(raw.NameLiteral("AcroForm"), doc.Register(acroForm))

	got := sanitize.NewPass(doc, sanitize.Options{}).RemoveXFA()
	if got != 2 {
		t.Fatalf("RemoveXFA = %d, want 2", got)
	}
	if _, ok := acroForm.Get(raw.NameLiteral("XFA")); ok {
		t.Fatal("/XFA survived")
	}
	if _, ok := acroForm.Get(raw.NameLiteral("NeedsRendering")); ok {
		t.Fatal("/NeedsRendering survived")
	}
	if _, ok := acroForm.Get(raw.NameLiteral("Fields")); !ok {
		t.Fatal("/Fields must be untouched")
	}
}

func TestRemoveXFANoForm(t *testing.T) {
	doc, _, _ := newTestDoc(t, 1)
	if got := sanitize.NewPass(doc, sanitize.Options{}).RemoveXFA(); got != 0 {
		t.Fatalf("RemoveXFA = %d, want 0", got)
	}
}

func TestRemoveXFAIdempotent(t *testing.T) {
	doc, catalog, _ := newTestDoc(t, 1)
	acroForm := raw.Dict()
	acroForm.Set(raw.NameLiteral("XFA"), raw.NewArray())
	catalog.Set(raw.NameLiteral("AcroForm"), acroForm)

	pass := sanitize.NewPass(doc, sanitize.Options{})
	if got := pass.RemoveXFA(); got != 1 {
		t.Fatalf("first pass = %d, want 1", got)
	}
	if got := pass.RemoveXFA(); got != 0 {
		t.Fatalf("second pass = %d, want 0", got)
	}
}
