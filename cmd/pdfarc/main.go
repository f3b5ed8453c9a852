package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/wudi/pdfarc/converter"
	"github.com/wudi/pdfarc/observability"
	"github.com/wudi/pdfarc/pdfa"
	"github.com/wudi/pdfarc/recovery"
)

type options struct {
	inPath     string
	outPath    string
	level      pdfa.Level
	reportPath string
	ocrLangs   []string
	strict     bool
	verbose    bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfarc: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfarc: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfarc [flags] <input.pdf> <output.pdf>\n")
		flag.PrintDefaults()
	}
	level := flag.String("level", "2b", "Archival conformance level (1b, 2b, 2u, 3b, 3u, 4)")
	report := flag.String("report", "", "Write an HTML conversion report to this path")
	ocrLangs := flag.String("ocr-langs", "", "Comma-separated OCR languages; empty disables recognition")
	strict := flag.Bool("strict", false, "Fail on damaged input instead of repairing")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return options{}, fmt.Errorf("need input and output paths")
	}
	parsed, err := pdfa.ParseLevel(*level)
	if err != nil {
		return options{}, err
	}
	opts.inPath = flag.Arg(0)
	opts.outPath = flag.Arg(1)
	opts.level = parsed
	opts.reportPath = *report
	if *ocrLangs != "" {
		opts.ocrLangs = strings.Split(*ocrLangs, ",")
	}
	opts.strict = *strict
	opts.verbose = *verbose
	return opts, nil
}

func run(opts options) error {
	in, err := os.Open(opts.inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(opts.outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	var strategy recovery.Strategy = recovery.NewLenientStrategy()
	if opts.strict {
		strategy = recovery.NewStrictStrategy()
	}

	c := converter.New(converter.Options{
		Level:        opts.level,
		Recovery:     strategy,
		Logger:       &observability.TextLogger{Out: os.Stderr, Verbose: opts.verbose},
		OCRLanguages: opts.ocrLangs,
	})
	res, err := c.Convert(context.Background(), in, out)
	if err != nil {
		os.Remove(opts.outPath)
		return err
	}

	fmt.Printf("%s: %d page(s), %d action(s) removed, %d destination(s) removed, compliant=%t\n",
		opts.outPath, res.Pages, res.ActionsRemoved, res.DestinationsRemoved, res.After.Compliant)
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	if opts.reportPath != "" {
		html, err := converter.ReportHTML(res)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.reportPath, html, 0o644); err != nil {
			return err
		}
	}
	return nil
}
