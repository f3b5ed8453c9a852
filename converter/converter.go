// Package converter drives the archival conversion pipeline: parse the
// input, strip non-archival interactive constructs, enforce an output
// intent, validate the result and serialize it back out.
package converter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wudi/pdfarc/compliance"
	compliancepdfa "github.com/wudi/pdfarc/compliance/pdfa"
	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/observability"
	"github.com/wudi/pdfarc/ocr"
	"github.com/wudi/pdfarc/parser"
	"github.com/wudi/pdfarc/pdfa"
	"github.com/wudi/pdfarc/recovery"
	"github.com/wudi/pdfarc/sanitize"
	"github.com/wudi/pdfarc/security"
	"github.com/wudi/pdfarc/writer"
)

// Options configures a conversion. The zero value selects PDF/A-1b,
// default limits, lenient recovery and no OCR.
type Options struct {
	Level    pdfa.Level
	Limits   security.Limits
	Recovery recovery.Strategy
	Logger   observability.Logger

	// OCRLanguages enables a recognized-text sidecar on the result when
	// non-empty. Recognition never modifies the document.
	OCRLanguages []string
	// OCREngine overrides the process default engine.
	OCREngine ocr.Engine
}

// Result reports what a conversion did.
type Result struct {
	Level pdfa.Level

	Pages   int
	Objects int

	ActionsRemoved      int
	DestinationsRemoved int
	JavaScriptRemoved   int
	XFARemoved          int
	Signatures          sanitize.SignatureStats
	OutputIntentAdded   bool

	// Before and After are the compliance reports taken at entry and
	// exit of the sanitization stage.
	Before *compliance.Report
	After  *compliance.Report

	// Recognized carries OCR output for image XObjects when OCR was
	// requested.
	Recognized []ocr.Result

	Warnings []string
	Duration time.Duration
}

// Converter runs conversions. Safe for reuse; each Convert call works on
// its own document.
type Converter struct {
	opts Options
}

func New(opts Options) *Converter {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	if opts.Recovery == nil {
		opts.Recovery = recovery.NewLenientStrategy()
	}
	return &Converter{opts: opts}
}

// Convert reads a document from r, rewrites it to the archival profile
// and writes the result to w. Encrypted input fails; see parser.ErrEncrypted.
func (c *Converter) Convert(ctx context.Context, r io.Reader, w io.Writer) (*Result, error) {
	start := time.Now()
	log := c.opts.Logger

	p := parser.NewDocumentParser(parser.Config{
		Limits:   c.opts.Limits,
		Recovery: c.opts.Recovery,
		Logger:   log,
	})
	doc, err := p.Parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("converter: parse: %w", err)
	}

	res := &Result{
		Level:   c.opts.Level,
		Pages:   len(doc.Pages()),
		Objects: len(doc.Objects),
	}

	validator := compliancepdfa.NewValidator(c.opts.Level)
	res.Before, err = validator.Validate(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("converter: pre-validate: %w", err)
	}

	pass := sanitize.NewPass(doc, sanitize.Options{Limits: c.opts.Limits, Logger: log})
	res.ActionsRemoved = pass.RemoveActions()
	res.DestinationsRemoved = pass.ValidateDestinations()
	res.JavaScriptRemoved = pass.RemoveJavaScript()
	res.XFARemoved = pass.RemoveXFA()
	res.Signatures = pass.NeutralizeSignatures()

	res.OutputIntentAdded = ensureOutputIntent(doc)
	if res.OutputIntentAdded {
		res.Warnings = append(res.Warnings, "output intent added (sRGB)")
	}
	if res.Signatures.Found > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d digital signature(s) neutralized", res.Signatures.Found))
	}

	if len(c.opts.OCRLanguages) > 0 {
		res.Recognized, err = c.recognize(ctx, doc)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("ocr skipped: %v", err))
		}
	}

	res.After, err = validator.Validate(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("converter: post-validate: %w", err)
	}

	version := requiredVersion(c.opts.Level)
	if doc.Version != "" && doc.Version != version {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("PDF version changed from %s to %s", doc.Version, version))
	}
	out := writer.NewWriter(writer.Config{Version: version, Logger: log})
	if err := out.Write(doc, w); err != nil {
		return nil, fmt.Errorf("converter: write: %w", err)
	}

	res.Duration = time.Since(start)
	log.Info("conversion finished",
		observability.Int("pages", res.Pages),
		observability.Int("actions_removed", res.ActionsRemoved),
		observability.Int("destinations_removed", res.DestinationsRemoved),
		observability.Bool("compliant", res.After.Compliant),
		observability.Duration("duration", res.Duration))
	return res, nil
}

// preprocessMinWidth is the upscaling floor for OCR inputs; narrow scans
// recognize poorly at native resolution.
const preprocessMinWidth = 1024

func (c *Converter) recognize(ctx context.Context, doc *raw.Document) ([]ocr.Result, error) {
	engine := c.opts.OCREngine
	if engine == nil {
		engine = ocr.DefaultEngine()
	}
	images := ocr.PageImages(doc)
	inputs := make([]ocr.Input, 0, len(images))
	for _, img := range images {
		in, err := ocr.InputFromImageStream(doc, img, ocr.WithLanguages(c.opts.OCRLanguages...))
		if err != nil {
			continue
		}
		if pre, err := ocr.Preprocess(in, preprocessMinWidth); err == nil {
			in = pre
		}
		inputs = append(inputs, in)
	}
	return ocr.Recognize(ctx, engine, inputs)
}

// requiredVersion is the minimum PDF version for each archival part.
func requiredVersion(level pdfa.Level) string {
	switch level.Part() {
	case 1:
		return "1.4"
	case 4:
		return "2.0"
	default:
		return "1.7"
	}
}
