package ocr_test

import (
	"bytes"
	"compress/zlib"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/ocr"
)

type fakeEngine struct {
	inputs  []ocr.Input
	batched bool
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	f.inputs = append(f.inputs, in)
	return ocr.Result{InputID: in.ID, PlainText: "text"}, nil
}

func (f *fakeEngine) RecognizeBatch(_ context.Context, inputs []ocr.Input) ([]ocr.Result, error) {
	f.batched = true
	results := make([]ocr.Result, 0, len(inputs))
	for _, in := range inputs {
		f.inputs = append(f.inputs, in)
		results = append(results, ocr.Result{InputID: in.ID, PlainText: "text"})
	}
	return results, nil
}

// grayImageDoc builds a one-page document whose resources carry a single
// flate-compressed DeviceGray image XObject of the given size.
func grayImageDoc(t *testing.T, width, height int) *raw.Document {
	t.Helper()
	doc := raw.NewDocument()

	samples := make([]byte, width*height)
	for i := range samples {
		samples[i] = byte(i % 251)
	}
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(samples); err != nil {
		t.Fatalf("compress samples: %v", err)
	}
	zw.Close()

	imgDict := raw.Dict()
	imgDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
	imgDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
	imgDict.Set(raw.NameLiteral("Width"), raw.NumberInt(int64(width)))
	imgDict.Set(raw.NameLiteral("Height"), raw.NumberInt(int64(height)))
	imgDict.Set(raw.NameLiteral("ColorSpace"), raw.NameLiteral("DeviceGray"))
	imgDict.Set(raw.NameLiteral("BitsPerComponent"), raw.NumberInt(8))
	imgDict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	imgRef := doc.Register(raw.NewStream(imgDict, compressed.Bytes()))

	xobjects := raw.Dict()
	xobjects.Set(raw.NameLiteral("Im0"), imgRef)
	resources := raw.Dict()
	resources.Set(raw.NameLiteral("XObject"), xobjects)

	pagesDict := raw.Dict()
	pagesRef := doc.Register(pagesDict)
	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Parent"), pagesRef)
	page.Set(raw.NameLiteral("Resources"), resources)
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

func TestPageImagesFindsXObjects(t *testing.T) {
	doc := grayImageDoc(t, 8, 4)

	images := ocr.PageImages(doc)
	if len(images) != 1 {
		t.Fatalf("found %d images, want 1", len(images))
	}
	if images[0].PageIndex != 0 || images[0].Name != "Im0" {
		t.Fatalf("image = %+v", images[0])
	}
}

func TestInputFromImageStreamEncodesPNG(t *testing.T) {
	doc := grayImageDoc(t, 8, 4)
	img := ocr.PageImages(doc)[0]

	in, err := ocr.InputFromImageStream(doc, img, ocr.WithLanguages("eng"), ocr.WithDPI(300))
	if err != nil {
		t.Fatalf("InputFromImageStream: %v", err)
	}
	if in.Format != ocr.ImageFormatPNG {
		t.Fatalf("format = %s", in.Format)
	}
	if in.ID != "page-0-Im0" {
		t.Fatalf("id = %s", in.ID)
	}
	if in.DPI != 300 || len(in.Languages) != 1 {
		t.Fatalf("options not applied: %+v", in)
	}

	decoded, err := png.Decode(bytes.NewReader(in.Image))
	if err != nil {
		t.Fatalf("decode produced PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 4 {
		t.Fatalf("dimensions = %v", decoded.Bounds())
	}
}

func TestInputFromImageStreamJPEGPassthrough(t *testing.T) {
	doc := raw.NewDocument()
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}

	imgDict := raw.Dict()
	imgDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
	imgDict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("DCTDecode"))
	ref := doc.Register(raw.NewStream(imgDict, payload))

	in, err := ocr.InputFromImageStream(doc, ocr.PageImage{PageIndex: 2, Name: "Im1", Ref: ref.Ref()})
	if err != nil {
		t.Fatalf("InputFromImageStream: %v", err)
	}
	if in.Format != ocr.ImageFormatJPEG {
		t.Fatalf("format = %s", in.Format)
	}
	if !bytes.Equal(in.Image, payload) {
		t.Fatal("JPEG payload must pass through unchanged")
	}
}

func TestRecognizeDocumentPrefersBatch(t *testing.T) {
	doc := grayImageDoc(t, 8, 4)
	engine := &fakeEngine{}

	results, err := ocr.RecognizeDocument(context.Background(), engine, doc)
	if err != nil {
		t.Fatalf("RecognizeDocument: %v", err)
	}
	if !engine.batched {
		t.Fatal("batch-capable engine must receive a batch call")
	}
	if len(results) != 1 || results[0].InputID != "page-0-Im0" {
		t.Fatalf("results = %+v", results)
	}
}

func TestRecognizeSequentialForPlainEngine(t *testing.T) {
	inner := &fakeEngine{}
	engine := struct {
		ocr.Engine
	}{Engine: inner}

	inputs := []ocr.Input{{ID: "a"}, {ID: "b"}}
	results, err := ocr.Recognize(context.Background(), engine, inputs)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if inner.batched {
		t.Fatal("wrapped engine must not be batch-dispatched")
	}
}

func TestPreprocessUpscalesToMinWidth(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 10, 5))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := ocr.Preprocess(ocr.Input{ID: "small", Image: buf.Bytes(), Format: ocr.ImageFormatPNG}, 40)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out.Image))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 40 || decoded.Bounds().Dy() != 20 {
		t.Fatalf("upscaled bounds = %v, want 40x20", decoded.Bounds())
	}
}

func TestPreprocessKeepsLargeImages(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 100, 60))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := ocr.Preprocess(ocr.Input{ID: "big", Image: buf.Bytes(), Format: ocr.ImageFormatPNG}, 40)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out.Image))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 100 || decoded.Bounds().Dy() != 60 {
		t.Fatalf("bounds changed: %v", decoded.Bounds())
	}
}
