package fonts_test

import (
	"testing"

	"github.com/wudi/pdfarc/fonts"
	"github.com/wudi/pdfarc/ir/raw"
)

func fontWithProgram(doc *raw.Document, key string, data []byte) raw.Dictionary {
	program := raw.NewStream(raw.Dict(), data)
	descriptor := raw.Dict()
	descriptor.Set(raw.NameLiteral(key), doc.Register(program))

	font := raw.Dict()
	font.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	font.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	font.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral("TestFont"))
	font.Set(raw.NameLiteral("FontDescriptor"), doc.Register(descriptor))
	return font
}

func TestInspectUnembedded(t *testing.T) {
	doc := raw.NewDocument()
	font := raw.Dict()
	font.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	font.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral("Helvetica"))

	info := fonts.Inspect(doc, font)
	if info.Embedded {
		t.Fatal("font without descriptor reported as embedded")
	}
	if info.BaseFont != "Helvetica" {
		t.Fatalf("BaseFont = %s", info.BaseFont)
	}
	if !fonts.IsStandard14(info.BaseFont) {
		t.Fatal("Helvetica is a standard font")
	}
}

func TestInspectType1Program(t *testing.T) {
	doc := raw.NewDocument()
	font := fontWithProgram(doc, "FontFile", []byte("%!PS-AdobeFont-1.0: Test"))

	info := fonts.Inspect(doc, font)
	if !info.Embedded {
		t.Fatal("embedded Type1 program not detected")
	}
	if info.Format != fonts.FormatType1 {
		t.Fatalf("Format = %v", info.Format)
	}
	if !info.Parses {
		t.Fatal("valid Type1 header rejected")
	}
}

func TestInspectBareCFFProgram(t *testing.T) {
	doc := raw.NewDocument()
	// Minimal CFF header: version 1.0, header size 4, offSize 1.
	font := fontWithProgram(doc, "FontFile3", []byte{1, 0, 4, 1})

	info := fonts.Inspect(doc, font)
	if info.Format != fonts.FormatCFF || !info.Parses {
		t.Fatalf("CFF header not accepted: %+v", info)
	}
}

func TestInspectGarbageTrueType(t *testing.T) {
	doc := raw.NewDocument()
	font := fontWithProgram(doc, "FontFile2", []byte("this is not an sfnt container"))

	info := fonts.Inspect(doc, font)
	if !info.Embedded {
		t.Fatal("program stream present, must report embedded")
	}
	if info.Parses {
		t.Fatal("garbage program must not parse")
	}
}

func TestInspectType0FollowsDescendant(t *testing.T) {
	doc := raw.NewDocument()

	descendant := fontWithProgram(doc, "FontFile2", []byte("junk"))
	descendant.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("CIDFontType2"))

	font := raw.Dict()
	font.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type0"))
	font.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral("Composite"))
	font.Set(raw.NameLiteral("DescendantFonts"), raw.NewArray(doc.Register(descendant)))

	info := fonts.Inspect(doc, font)
	if !info.Embedded {
		t.Fatal("descendant font program not found")
	}
	if info.Format != fonts.FormatTrueType {
		t.Fatalf("Format = %v", info.Format)
	}
}

func TestDocumentFontsDeduplicates(t *testing.T) {
	doc := raw.NewDocument()

	font := raw.Dict()
	font.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	fontRef := doc.Register(font)

	makePage := func(pagesRef raw.Object) *raw.DictObj {
		res := raw.Dict()
		fd := raw.Dict()
		fd.Set(raw.NameLiteral("F1"), fontRef)
		res.Set(raw.NameLiteral("Font"), fd)
		page := raw.Dict()
		page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
		page.Set(raw.NameLiteral("Resources"), res)
		return page
	}

	pagesDict := raw.Dict()
	pagesRef := doc.Register(pagesDict)
	kids := raw.NewArray(doc.Register(makePage(pagesRef)), doc.Register(makePage(pagesRef)))
	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pagesDict.Set(raw.NameLiteral("Kids"), kids)
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(2))

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), pagesRef)
	doc.Trailer.Set(raw.NameLiteral("Root"), doc.Register(catalog))

	got := fonts.DocumentFonts(doc)
	if len(got) != 1 {
		t.Fatalf("fonts = %d, want 1 (shared font deduplicated)", len(got))
	}
}
