// Package ocr plugs text recognition engines into the conversion pipeline.
// Scanned pages carry their text as raster images only; recognizing that
// text lets the converter report whether a document is image-only before
// and after processing. The contracts are provider-agnostic so engines can
// be backed by native libraries or remote services.
package ocr

import (
	"context"
	"fmt"
)

// ImageFormat identifies the content type of an input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Region is a rectangle in pixel coordinates, origin at the upper-left
// corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is a single image submitted for recognition.
type Input struct {
	// ID is echoed back in the corresponding Result.
	ID string
	// Image is the encoded payload in the format given by Format.
	Image []byte
	Format ImageFormat
	// PageIndex is the zero-based page the image came from.
	PageIndex int
	// DPI is the effective resolution; zero means unknown.
	DPI int
	// Languages holds trained-data hints such as "eng" or "deu".
	Languages []string
	// Region restricts recognition to part of the image. Nil means full.
	Region *Region
	// Metadata passes engine-specific variables through without widening
	// the API, e.g. Tesseract's "tessedit_pageseg_mode".
	Metadata map[string]string
}

// TextWord is a single recognized token.
type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// TextLine groups words sharing a baseline.
type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

// TextBlock aggregates lines forming a logical unit.
type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result is the recognition output for one input image.
type Result struct {
	InputID   string
	PlainText string
	Blocks    []TextBlock
	// Language is the dominant detected language, if known.
	Language string
}

// Engine is the minimal provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine recognizes several images per call, for providers that
// amortize setup costs or remote round-trips.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}

var defaultEngine Engine = noopEngine{}

// DefaultEngine returns the process-wide engine. The tesseract subpackage
// installs itself here on import.
func DefaultEngine() Engine { return defaultEngine }

// SetDefaultEngine replaces the process-wide engine.
func SetDefaultEngine(engine Engine) { defaultEngine = engine }

// Recognize runs the given inputs through the engine, batching when the
// engine supports it.
func Recognize(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

type noopEngine struct{}

func (noopEngine) Name() string { return "noop" }

func (noopEngine) Recognize(_ context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}
