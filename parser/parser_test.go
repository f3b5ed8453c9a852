package parser_test

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/parser"
	"github.com/wudi/pdfarc/recovery"
)

type fileBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int64
}

func newFileBuilder() *fileBuilder {
	fb := &fileBuilder{offsets: make(map[int]int64)}
	fb.buf.WriteString("%PDF-1.7\n")
	return fb
}

func (fb *fileBuilder) object(num int, body string) {
	fb.offsets[num] = int64(fb.buf.Len())
	fmt.Fprintf(&fb.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (fb *fileBuilder) finish(size int, trailerExtra string) []byte {
	xrefOff := int64(fb.buf.Len())
	fmt.Fprintf(&fb.buf, "xref\n0 %d\n", size)
	fb.buf.WriteString("0000000000 65535 f \n")
	for i := 1; i < size; i++ {
		fmt.Fprintf(&fb.buf, "%010d 00000 n \n", fb.offsets[i])
	}
	fmt.Fprintf(&fb.buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\n", size, trailerExtra)
	fmt.Fprintf(&fb.buf, "startxref\n%d\n%%%%EOF\n", xrefOff)
	return fb.buf.Bytes()
}

func minimalPDF() []byte {
	fb := newFileBuilder()
	fb.object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	fb.object(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	fb.object(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	fb.object(4, "<< /Length 20 >>\nstream\nBT /F1 12 Tf ET junk\nendstream")
	return fb.finish(5, "")
}

func parseBytes(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	p := parser.NewDocumentParser(parser.Config{})
	doc, err := p.Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestParseMinimalDocument(t *testing.T) {
	doc := parseBytes(t, minimalPDF())

	if doc.Version != "1.7" {
		t.Fatalf("version = %s", doc.Version)
	}
	catalog := doc.Catalog()
	if catalog == nil {
		t.Fatal("catalog not reachable")
	}
	if typ, _ := doc.DictGetName(catalog, "Type"); typ != "Catalog" {
		t.Fatalf("catalog /Type = %s", typ)
	}
	pages := doc.Pages()
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}

	contents, ok := doc.ResolveRef(raw.ObjectRef{Num: 4, Gen: 0})
	if !ok {
		t.Fatal("content stream missing")
	}
	stream, ok := contents.(raw.Stream)
	if !ok {
		t.Fatalf("object 4 is %T, want stream", contents)
	}
	if string(stream.RawData()) != "BT /F1 12 Tf ET junk" {
		t.Fatalf("stream data = %q", stream.RawData())
	}
}

func TestParseIndirectStreamLength(t *testing.T) {
	fb := newFileBuilder()
	fb.object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	fb.object(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	fb.object(3, "<< /Length 4 0 R >>\nstream\npayload\nendstream")
	fb.object(4, "7")
	data := fb.finish(5, "")

	doc := parseBytes(t, data)
	obj, ok := doc.ResolveRef(raw.ObjectRef{Num: 3, Gen: 0})
	if !ok {
		t.Fatal("stream object missing")
	}
	stream, ok := obj.(raw.Stream)
	if !ok {
		t.Fatalf("object 3 is %T", obj)
	}
	if string(stream.RawData()) != "payload" {
		t.Fatalf("stream data = %q", stream.RawData())
	}
}

func TestParseObjectStream(t *testing.T) {
	// Objects 4 and 5 live inside object stream 3.
	inner := "4 0 5 11 "
	first := len(inner)
	body := inner + "<< /A 1 >> << /B 2 >>"

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	zw.Write([]byte(body))
	zw.Close()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make(map[int]int64)

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	offsets[3] = int64(buf.Len())
	fmt.Fprintf(&buf, "3 0 obj\n<< /Type /ObjStm /N 2 /First %d /Filter /FlateDecode /Length %d >>\nstream\n", first, compressed.Len())
	buf.Write(compressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")

	// Cross-reference stream covering objects 0..5.
	streamOff := int64(buf.Len())
	var rows bytes.Buffer
	rows.Write([]byte{0, 0, 0, 255})
	for _, num := range []int{1, 2, 3} {
		off := offsets[num]
		rows.Write([]byte{1, byte(off >> 8), byte(off & 0xff), 0})
	}
	rows.Write([]byte{2, 0, 3, 0}) // object 4 in stream 3, index 0
	rows.Write([]byte{2, 0, 3, 1}) // object 5 in stream 3, index 1

	var xrefZ bytes.Buffer
	zw2 := zlib.NewWriter(&xrefZ)
	zw2.Write(rows.Bytes())
	zw2.Close()
	fmt.Fprintf(&buf, "6 0 obj\n<< /Type /XRef /Size 6 /W [1 2 1] /Filter /FlateDecode /Length %d /Root 1 0 R >>\nstream\n", xrefZ.Len())
	buf.Write(xrefZ.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", streamOff)

	doc := parseBytes(t, buf.Bytes())

	obj4, ok := doc.ResolveRef(raw.ObjectRef{Num: 4, Gen: 0})
	if !ok {
		t.Fatal("object 4 not extracted from object stream")
	}
	dict4, ok := obj4.(raw.Dictionary)
	if !ok {
		t.Fatalf("object 4 is %T", obj4)
	}
	if v, _ := doc.DictGet(dict4, "A"); v.(raw.Number).Int() != 1 {
		t.Fatalf("object 4 /A = %v", v)
	}
	obj5, ok := doc.ResolveRef(raw.ObjectRef{Num: 5, Gen: 0})
	if !ok {
		t.Fatal("object 5 not extracted from object stream")
	}
	if v, _ := doc.DictGet(obj5.(raw.Dictionary), "B"); v.(raw.Number).Int() != 2 {
		t.Fatalf("object 5 /B = %v", v)
	}
}

func TestParseEncryptedReturnsError(t *testing.T) {
	fb := newFileBuilder()
	fb.object(1, "<< /Type /Catalog >>")
	fb.object(2, "<< /Filter /Standard /V 2 >>")
	data := fb.finish(3, " /Encrypt 2 0 R")

	p := parser.NewDocumentParser(parser.Config{})
	_, err := p.Parse(context.Background(), bytes.NewReader(data))
	if !errors.Is(err, parser.ErrEncrypted) {
		t.Fatalf("err = %v, want ErrEncrypted", err)
	}
}

func TestParseMissingXrefRecoversByScan(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	// No xref, no trailer, no startxref.

	doc := parseBytes(t, buf.Bytes())
	if doc.Catalog() == nil {
		t.Fatal("catalog not recovered from scan")
	}
}

func TestParseMissingXrefStrictFails(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	p := parser.NewDocumentParser(parser.Config{Recovery: recovery.NewStrictStrategy()})
	if _, err := p.Parse(context.Background(), bytes.NewReader(buf.Bytes())); err == nil {
		t.Fatal("strict strategy must fail without xref")
	}
}

func TestParseDamagedObjectSkippedLeniently(t *testing.T) {
	fb := newFileBuilder()
	fb.object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	fb.object(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	fb.object(3, "<< /Broken") // unterminated dictionary
	data := fb.finish(4, "")

	rec := recovery.NewLenientStrategy()
	p := parser.NewDocumentParser(parser.Config{Recovery: rec})
	doc, err := p.Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("lenient parse failed: %v", err)
	}
	if _, ok := doc.ResolveRef(raw.ObjectRef{Num: 3, Gen: 0}); ok {
		t.Fatal("damaged object must be dropped")
	}
	if len(rec.Errors) == 0 {
		t.Fatal("lenient strategy must record the skip")
	}
}
