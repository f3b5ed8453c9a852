package writer_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/parser"
	"github.com/wudi/pdfarc/writer"
)

func buildDoc(t *testing.T) *raw.Document {
	t.Helper()
	doc := raw.NewDocument()

	content := raw.NewStream(raw.Dict(), []byte("BT (Hello) Tj ET"))
	contentRef := doc.Register(content)

	pagesDict := raw.Dict()
	pagesRef := doc.Register(pagesDict)

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Parent"), pagesRef)
	page.Set(raw.NameLiteral("Contents"), contentRef)
	page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792),
	))
	pageRef := doc.Register(page)

	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pagesDict.Set(raw.NameLiteral("Kids"), raw.NewArray(pageRef))
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(1))

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), pagesRef)
	doc.Trailer.Set(raw.NameLiteral("Root"), doc.Register(catalog))
	return doc
}

func TestWriteParseRoundtrip(t *testing.T) {
	doc := buildDoc(t)

	var buf bytes.Buffer
	w := writer.NewWriter(writer.Config{})
	if err := w.Write(doc, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	p := parser.NewDocumentParser(parser.Config{})
	parsed, err := p.Parse(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Parse written file: %v", err)
	}

	if parsed.Catalog() == nil {
		t.Fatal("round-tripped catalog unreachable")
	}
	pages := parsed.Pages()
	if len(pages) != 1 {
		t.Fatalf("round-tripped pages = %d, want 1", len(pages))
	}
	pageObj, _ := parsed.ResolveRef(pages[0])
	page := pageObj.(raw.Dictionary)
	contents, _ := parsed.DictGet(page, "Contents")
	stream, ok := contents.(raw.Stream)
	if !ok {
		t.Fatalf("contents resolved to %T", contents)
	}
	if string(stream.RawData()) != "BT (Hello) Tj ET" {
		t.Fatalf("content stream = %q", stream.RawData())
	}
}

func TestWriteHeaderAndTrailer(t *testing.T) {
	doc := buildDoc(t)
	doc.Trailer.Set(raw.NameLiteral("Prev"), raw.NumberInt(1234))

	var buf bytes.Buffer
	if err := writer.NewWriter(writer.Config{Version: "1.7"}).Write(doc, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "%PDF-1.7\n") {
		t.Fatalf("header = %q", out[:16])
	}
	if !strings.Contains(out, "startxref") || !strings.HasSuffix(out, "%%EOF\n") {
		t.Fatal("missing startxref/EOF scaffolding")
	}
	if strings.Contains(out, "/Prev") {
		t.Fatal("stale /Prev survived in trailer")
	}
	if !strings.Contains(out, "/Size") {
		t.Fatal("trailer /Size missing")
	}
}

func TestWriteEscapesSpecialBytes(t *testing.T) {
	doc := raw.NewDocument()
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	dict.Set(raw.NameLiteral("Odd Name"), raw.Str([]byte("paren ) and \\ back")))
	dict.Set(raw.NameLiteral("Hex"), raw.StringObj{Bytes: []byte{0xde, 0xad}, Hex: true})
	doc.Trailer.Set(raw.NameLiteral("Root"), doc.Register(dict))

	var buf bytes.Buffer
	if err := writer.NewWriter(writer.Config{}).Write(doc, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "/Odd#20Name") {
		t.Fatal("space in name not escaped")
	}
	if !strings.Contains(out, `(paren \) and \\ back)`) {
		t.Fatal("literal string not escaped")
	}
	if !strings.Contains(out, "<DEAD>") {
		t.Fatal("hex string not emitted")
	}

	// The escaped output must parse back to the same bytes.
	p := parser.NewDocumentParser(parser.Config{})
	parsed, err := p.Parse(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	catalog := parsed.Catalog()
	v, ok := catalog.Get(raw.NameLiteral("Odd Name"))
	if !ok {
		t.Fatal("escaped key lost")
	}
	if string(v.(raw.String).Value()) != "paren ) and \\ back" {
		t.Fatalf("string round-trip = %q", v.(raw.String).Value())
	}
}

func TestWriteNumberingGaps(t *testing.T) {
	doc := raw.NewDocument()
	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	// Deliberate gap: catalog at 1, stray object at 5.
	doc.Put(raw.ObjectRef{Num: 1, Gen: 0}, catalog)
	doc.Put(raw.ObjectRef{Num: 5, Gen: 0}, raw.Str([]byte("stray")))
	doc.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(1, 0))

	var buf bytes.Buffer
	if err := writer.NewWriter(writer.Config{}).Write(doc, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	p := parser.NewDocumentParser(parser.Config{})
	parsed, err := p.Parse(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := parsed.ResolveRef(raw.ObjectRef{Num: 5, Gen: 0}); !ok {
		t.Fatal("object after numbering gap lost")
	}
}
