package ocr

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/wudi/pdfarc/ir/raw"
)

// PageImage locates one image XObject inside a document.
type PageImage struct {
	// PageIndex is the zero-based page hosting the image.
	PageIndex int
	// Name is the resource name the page's content refers to.
	Name string
	// Ref points at the image stream in the arena.
	Ref raw.ObjectRef
}

// PageImages walks the page tree and returns every image XObject referenced
// from a page's resource dictionary, in page order.
func PageImages(doc *raw.Document) []PageImage {
	var found []PageImage
	seen := make(map[raw.ObjectRef]struct{})
	for idx, pageRef := range doc.Pages() {
		pageObj, ok := doc.ResolveRef(pageRef)
		if !ok {
			continue
		}
		page, ok := pageObj.(raw.Dictionary)
		if !ok {
			continue
		}
		resources, ok := doc.DictGetDict(page, "Resources")
		if !ok {
			continue
		}
		xobjects, ok := doc.DictGetDict(resources, "XObject")
		if !ok {
			continue
		}
		for _, key := range xobjects.Keys() {
			entry, _ := xobjects.Get(key)
			resolved, ref, hasRef := doc.ResolveWithRef(entry)
			if !hasRef {
				continue
			}
			stream, ok := resolved.(raw.Stream)
			if !ok {
				continue
			}
			if sub, _ := doc.DictGetName(stream.Dictionary(), "Subtype"); sub != "Image" {
				continue
			}
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			found = append(found, PageImage{PageIndex: idx, Name: key.Value(), Ref: ref})
		}
	}
	return found
}

// InputFromImageStream builds a recognition input from an image XObject.
// JPEG-compressed images pass through unchanged; flate-compressed gray and
// RGB rasters are re-encoded as PNG. Unsupported color spaces or filters
// return an error.
func InputFromImageStream(doc *raw.Document, img PageImage, opts ...InputOption) (Input, error) {
	obj, ok := doc.ResolveRef(img.Ref)
	if !ok {
		return Input{}, fmt.Errorf("image %s: object %s missing", img.Name, img.Ref)
	}
	stream, ok := obj.(raw.Stream)
	if !ok {
		return Input{}, fmt.Errorf("image %s: object %s is %T, not a stream", img.Name, img.Ref, obj)
	}

	data, format, err := encodeImage(doc, stream)
	if err != nil {
		return Input{}, fmt.Errorf("image %s: %w", img.Name, err)
	}
	in := Input{
		ID:        fmt.Sprintf("page-%d-%s", img.PageIndex, img.Name),
		Image:     data,
		Format:    format,
		PageIndex: img.PageIndex,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}

// RecognizeDocument collects every page image, builds inputs and runs them
// through the engine. Images that cannot be converted are skipped.
func RecognizeDocument(ctx context.Context, engine Engine, doc *raw.Document, opts ...InputOption) ([]Result, error) {
	images := PageImages(doc)
	inputs := make([]Input, 0, len(images))
	for _, img := range images {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		in, err := InputFromImageStream(doc, img, opts...)
		if err != nil {
			continue
		}
		inputs = append(inputs, in)
	}
	return Recognize(ctx, engine, inputs)
}

func encodeImage(doc *raw.Document, stream raw.Stream) ([]byte, ImageFormat, error) {
	dict := stream.Dictionary()
	filter := imageFilter(doc, dict)

	if filter == "DCTDecode" {
		return stream.RawData(), ImageFormatJPEG, nil
	}

	samples := stream.RawData()
	if filter == "FlateDecode" {
		zr, err := zlib.NewReader(bytes.NewReader(samples))
		if err != nil {
			return nil, "", fmt.Errorf("inflate samples: %w", err)
		}
		defer zr.Close()
		samples, err = io.ReadAll(zr)
		if err != nil {
			return nil, "", fmt.Errorf("inflate samples: %w", err)
		}
	} else if filter != "" {
		return nil, "", fmt.Errorf("unsupported filter %s", filter)
	}

	width := dictIntValue(doc, dict, "Width")
	height := dictIntValue(doc, dict, "Height")
	if width <= 0 || height <= 0 {
		return nil, "", fmt.Errorf("bad dimensions %dx%d", width, height)
	}
	bpc := dictIntValue(doc, dict, "BitsPerComponent")
	if bpc != 8 {
		return nil, "", fmt.Errorf("unsupported bit depth %d", bpc)
	}

	cs, _ := doc.DictGetName(dict, "ColorSpace")
	var decoded image.Image
	switch cs {
	case "DeviceGray":
		if len(samples) < width*height {
			return nil, "", fmt.Errorf("truncated gray samples: %d for %dx%d", len(samples), width, height)
		}
		gray := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			copy(gray.Pix[y*gray.Stride:], samples[y*width:(y+1)*width])
		}
		decoded = gray
	case "DeviceRGB":
		if len(samples) < width*height*3 {
			return nil, "", fmt.Errorf("truncated rgb samples: %d for %dx%d", len(samples), width, height)
		}
		rgba := image.NewNRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			rgba.Pix[i*4] = samples[i*3]
			rgba.Pix[i*4+1] = samples[i*3+1]
			rgba.Pix[i*4+2] = samples[i*3+2]
			rgba.Pix[i*4+3] = 0xff
		}
		decoded = rgba
	default:
		return nil, "", fmt.Errorf("unsupported color space %s", cs)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), ImageFormatPNG, nil
}

// imageFilter returns the stream's filter name, taking the first element
// when /Filter is an array.
func imageFilter(doc *raw.Document, dict raw.Dictionary) string {
	if name, ok := doc.DictGetName(dict, "Filter"); ok {
		return name
	}
	arr, ok := doc.DictGetArray(dict, "Filter")
	if !ok || arr.Len() == 0 {
		return ""
	}
	first, _ := arr.Get(0)
	if n, ok := doc.Resolve(first).(raw.Name); ok {
		return n.Value()
	}
	return ""
}

func dictIntValue(doc *raw.Document, dict raw.Dictionary, key string) int {
	v, ok := doc.DictGet(dict, key)
	if !ok {
		return 0
	}
	num, ok := v.(raw.Number)
	if !ok {
		return 0
	}
	return int(num.Int())
}
