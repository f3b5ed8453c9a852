package sanitize_test

import (
	"testing"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/sanitize"
)

// minimalCMS is a DER SEQUENCE holding only the id-signedData content type
// OID (1.2.840.113549.1.7.2), the smallest prefix inspectable as CMS.
var minimalCMS = []byte{
	0x30, 0x0b,
	0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x07, 0x02,
}

func sigDict(contents []byte) *raw.DictObj {
	sig := raw.Dict()
	sig.Set(raw.NameLiteral("Type"), raw.NameLiteral("Sig"))
	sig.Set(raw.NameLiteral("Filter"), raw.NameLiteral("Adobe.PPKLite"))
	sig.Set(raw.NameLiteral("SubFilter"), raw.NameLiteral("adbe.pkcs7.detached"))
	sig.Set(raw.NameLiteral("ByteRange"), raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(100), raw.NumberInt(200), raw.NumberInt(50),
	))
	sig.Set(raw.NameLiteral("Contents"), raw.Str(contents))
	sig.Set(raw.NameLiteral("Reason"), raw.Str([]byte("approval")))
	return sig
}

func attachSigField(doc *raw.Document, catalog raw.Dictionary, sig *raw.DictObj) *raw.DictObj {
	field := raw.Dict()
	field.Set(raw.NameLiteral("FT"), raw.NameLiteral("Sig"))
	field.Set(raw.NameLiteral("T"), raw.Str([]byte("Signature1")))
	field.Set(raw.NameLiteral("V"), doc.Register(sig))

	acroform := raw.Dict()
	acroform.Set(raw.NameLiteral("Fields"), raw.NewArray(doc.Register(field)))
	acroform.Set(raw.NameLiteral("SigFlags"), raw.NumberInt(3))
	catalog.Set(raw.NameLiteral("AcroForm"), acroform)
	return field
}

func TestNeutralizeSignatureField(t *testing.T) {
	doc, catalog, _ := newTestDoc(t, 1)
	sig := sigDict(minimalCMS)
	field := attachSigField(doc, catalog, sig)

	p := sanitize.NewPass(doc, sanitize.Options{})
	stats := p.NeutralizeSignatures()

	if stats.Found != 1 {
		t.Fatalf("Found = %d, want 1", stats.Found)
	}
	if stats.ValidCMS != 1 {
		t.Fatalf("ValidCMS = %d, want 1", stats.ValidCMS)
	}
	if _, ok := field.Get(raw.NameLiteral("V")); ok {
		t.Fatal("signature value must be removed from the field")
	}
	for _, key := range []string{"ByteRange", "Contents", "Filter", "SubFilter", "Reason"} {
		if _, ok := sig.Get(raw.NameLiteral(key)); ok {
			t.Fatalf("signature dictionary retains /%s", key)
		}
	}
	if !stats.SigFlagFixed {
		t.Fatal("SigFlags must be corrected")
	}
	acroform, _ := doc.DictGetDict(catalog, "AcroForm")
	flags, ok := doc.DictGet(acroform, "SigFlags")
	if !ok {
		t.Fatal("SigFlags with remaining bits must survive")
	}
	if flags.(raw.Number).Int() != 2 {
		t.Fatalf("SigFlags = %d, want 2", flags.(raw.Number).Int())
	}
}

func TestNeutralizeSignatureInvalidCMS(t *testing.T) {
	doc, catalog, _ := newTestDoc(t, 1)
	attachSigField(doc, catalog, sigDict([]byte("not asn1 at all")))

	p := sanitize.NewPass(doc, sanitize.Options{})
	stats := p.NeutralizeSignatures()
	if stats.Found != 1 || stats.ValidCMS != 0 {
		t.Fatalf("Found/ValidCMS = %d/%d, want 1/0", stats.Found, stats.ValidCMS)
	}
}

func TestNeutralizePermsReferences(t *testing.T) {
	doc, catalog, _ := newTestDoc(t, 1)

	perms := raw.Dict()
	perms.Set(raw.NameLiteral("DocMDP"), doc.Register(sigDict(minimalCMS)))
	catalog.Set(raw.NameLiteral("Perms"), perms)

	p := sanitize.NewPass(doc, sanitize.Options{})
	stats := p.NeutralizeSignatures()
	if stats.Found != 1 {
		t.Fatalf("Found = %d, want 1", stats.Found)
	}
	if _, ok := catalog.Get(raw.NameLiteral("Perms")); ok {
		t.Fatal("emptied /Perms must be deleted")
	}
}

func TestNeutralizeOrphanSignatureDict(t *testing.T) {
	doc, _, _ := newTestDoc(t, 1)
	sig := sigDict(minimalCMS)
	doc.Register(sig)

	p := sanitize.NewPass(doc, sanitize.Options{})
	stats := p.NeutralizeSignatures()
	if stats.Found != 1 {
		t.Fatalf("Found = %d, want 1", stats.Found)
	}
	if _, ok := sig.Get(raw.NameLiteral("Contents")); ok {
		t.Fatal("orphan signature dictionary must be stripped")
	}
}

func TestNeutralizeSignaturesNoSignatures(t *testing.T) {
	doc, _, _ := newTestDoc(t, 1)
	p := sanitize.NewPass(doc, sanitize.Options{})
	stats := p.NeutralizeSignatures()
	if stats.Found != 0 || stats.Removed != 0 || stats.SigFlagFixed {
		t.Fatalf("unexpected stats on clean document: %+v", stats)
	}
}

func TestNeutralizeSharedSignatureCountedOnce(t *testing.T) {
	doc, catalog, pages := newTestDoc(t, 1)
	sig := sigDict(minimalCMS)
	sigRef := doc.Register(sig)

	field := raw.Dict()
	field.Set(raw.NameLiteral("FT"), raw.NameLiteral("Sig"))
	field.Set(raw.NameLiteral("V"), sigRef)
	fieldRef := doc.Register(field)

	acroform := raw.Dict()
	acroform.Set(raw.NameLiteral("Fields"), raw.NewArray(fieldRef))
	catalog.Set(raw.NameLiteral("AcroForm"), acroform)

	// The same widget is also reachable through page annotations.
	pages[0].Set(raw.NameLiteral("Annots"), raw.NewArray(fieldRef))

	p := sanitize.NewPass(doc, sanitize.Options{})
	stats := p.NeutralizeSignatures()
	if stats.Found != 1 {
		t.Fatalf("Found = %d, want 1 (shared dictionary deduplicated)", stats.Found)
	}
}
