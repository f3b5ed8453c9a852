// Package parser loads PDF files into the raw object model.
package parser

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/observability"
	"github.com/wudi/pdfarc/recovery"
	"github.com/wudi/pdfarc/scanner"
	"github.com/wudi/pdfarc/security"
	"github.com/wudi/pdfarc/xref"
)

// ErrEncrypted is returned for encrypted input. Decryption support is a
// deliberate non-feature: an archival conversion of protected content
// needs the owner to unprotect it first.
var ErrEncrypted = errors.New("parser: document is encrypted")

// Config controls parsing. Zero values select default limits, a lenient
// recovery strategy and a no-op logger.
type Config struct {
	Limits   security.Limits
	Recovery recovery.Strategy
	Logger   observability.Logger
}

// DocumentParser builds a raw.Document from file bytes.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewLenientStrategy()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Limits == (security.Limits{}) {
		cfg.Limits = security.DefaultLimits()
	}
	return &DocumentParser{cfg: cfg}
}

// Parse reads the whole input and loads every object the cross-reference
// information names. Damaged objects are skipped or fail the parse
// according to the recovery strategy.
func (p *DocumentParser) Parse(ctx context.Context, r io.Reader) (*raw.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("parser: read input: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := xref.Resolve(ctx, data, p.cfg.Limits)
	if err != nil {
		action := p.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"})
		if action != recovery.ActionFix {
			return nil, fmt.Errorf("parser: resolve xref: %w", err)
		}
		p.cfg.Logger.Warn("cross-reference damaged, rebuilding by scan", observability.Error("cause", err))
		table, err = xref.Rebuild(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("parser: rebuild xref: %w", err)
		}
	}

	trailer := table.Trailer()
	if trailer != nil {
		if _, ok := trailer.Get(raw.NameLiteral("Encrypt")); ok {
			return nil, ErrEncrypted
		}
	}

	doc := raw.NewDocument()
	doc.Version = headerVersion(data)
	if trailer != nil {
		doc.Trailer = trailer
	}

	load := &loader{
		data:   data,
		table:  table,
		doc:    doc,
		cfg:    p.cfg,
		loaded: make(map[raw.ObjectRef]struct{}),
	}

	// Direct objects first; object streams need their container loaded.
	var inStream []int
	for _, num := range table.Objects() {
		entry, _ := table.Lookup(num)
		if entry.InStream {
			inStream = append(inStream, num)
			continue
		}
		if err := load.loadAt(ctx, num, entry); err != nil {
			return nil, err
		}
	}
	for _, num := range inStream {
		entry, _ := table.Lookup(num)
		if err := load.loadFromObjectStream(ctx, num, entry); err != nil {
			return nil, err
		}
	}

	if trailer == nil {
		p.synthesizeTrailer(doc)
	}

	p.cfg.Logger.Info("document parsed",
		observability.String("version", doc.Version),
		observability.Int("objects", len(doc.Objects)))
	return doc, nil
}

// synthesizeTrailer recovers /Root by scanning for the catalog after a
// rebuild of a file whose trailer was lost.
func (p *DocumentParser) synthesizeTrailer(doc *raw.Document) {
	for ref, obj := range doc.Objects {
		dict, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		if t, ok := doc.DictGetName(dict, "Type"); ok && t == "Catalog" {
			doc.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(ref.Num, ref.Gen))
			doc.Trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(len(doc.Objects)+1)))
			return
		}
	}
}

func headerVersion(data []byte) string {
	idx := bytes.Index(data, []byte("%PDF-"))
	if idx < 0 || idx+8 > len(data) {
		return "1.7"
	}
	v := string(data[idx+5 : idx+8])
	if len(v) == 3 && v[1] == '.' {
		return v
	}
	return "1.7"
}

type loader struct {
	data   []byte
	table  *xref.Table
	doc    *raw.Document
	cfg    Config
	loaded map[raw.ObjectRef]struct{}
}

func (l *loader) skip(ctx context.Context, err error, loc recovery.Location) error {
	if l.cfg.Recovery.OnError(ctx, err, loc) == recovery.ActionFail {
		return fmt.Errorf("parser: object %d %d: %w", loc.ObjectNum, loc.ObjectGen, err)
	}
	l.cfg.Logger.Warn("object skipped",
		observability.Int("num", loc.ObjectNum),
		observability.Error("cause", err))
	return nil
}

// loadAt parses the object stored at a byte offset.
func (l *loader) loadAt(ctx context.Context, num int, entry xref.Entry) error {
	ref := raw.ObjectRef{Num: num, Gen: entry.Gen}
	if _, done := l.loaded[ref]; done {
		return nil
	}
	l.loaded[ref] = struct{}{}

	loc := recovery.Location{ByteOffset: entry.Offset, ObjectNum: num, ObjectGen: entry.Gen, Component: "object"}

	s := scanner.New(l.data, scanner.Config{MaxStringLength: l.cfg.Limits.MaxStringLength})
	if err := s.Seek(entry.Offset); err != nil {
		return l.skip(ctx, err, loc)
	}
	numTok, err := s.Next()
	if err != nil || numTok.Type != scanner.TokenNumber || numTok.Int != int64(num) {
		return l.skip(ctx, errors.New("object header mismatch"), loc)
	}
	if genTok, err := s.Next(); err != nil || genTok.Type != scanner.TokenNumber {
		return l.skip(ctx, errors.New("object header mismatch"), loc)
	}
	if kw, err := s.Next(); err != nil || kw.Str != "obj" {
		return l.skip(ctx, errors.New("obj keyword missing"), loc)
	}

	obj, err := scanner.ParseObject(s)
	if err != nil {
		return l.skip(ctx, err, loc)
	}

	if dict, ok := obj.(*raw.DictObj); ok {
		save := s.Position()
		tok, err := s.Next()
		if err == nil && tok.Type == scanner.TokenKeyword && tok.Str == "stream" {
			stream, err := l.readStream(ctx, s, dict)
			if err != nil {
				return l.skip(ctx, err, loc)
			}
			l.doc.Objects[ref] = stream
			return nil
		}
		s.Seek(save)
	}

	l.doc.Objects[ref] = obj
	return nil
}

// readStream reads the payload following a stream keyword. An indirect
// /Length is resolved by loading the referenced object; when that fails
// the endstream keyword is located textually.
func (l *loader) readStream(ctx context.Context, s *scanner.Scanner, dict *raw.DictObj) (raw.Stream, error) {
	length := int64(-1)
	switch v := mustGet(dict, "Length").(type) {
	case raw.Number:
		if v.IsInteger() {
			length = v.Int()
		}
	case raw.Reference:
		if n, ok := l.loadNumber(ctx, v.Ref()); ok {
			length = n
		}
	}

	maxStream := l.cfg.Limits.MaxStreamLength
	if maxStream <= 0 {
		maxStream = security.DefaultLimits().MaxStreamLength
	}
	if length > maxStream {
		return nil, fmt.Errorf("stream length %d exceeds limit", length)
	}

	if length >= 0 {
		data, err := s.ReadStreamData(length)
		if err == nil {
			dict.Set(raw.NameLiteral("Length"), raw.NumberInt(length))
			return raw.NewStream(dict, data), nil
		}
	}

	// Fall back to locating endstream.
	start := s.Position()
	end := s.FindFrom(start, []byte("endstream"))
	if end < 0 {
		return nil, errors.New("endstream not found")
	}
	data, err := s.ReadStreamData(end - start)
	if err != nil {
		return nil, err
	}
	// Trim the EOL that precedes endstream.
	data = bytes.TrimRight(data, "\r\n")
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
	return raw.NewStream(dict, data), nil
}

// loadNumber loads an indirect integer, used for /Length references.
func (l *loader) loadNumber(ctx context.Context, ref raw.ObjectRef) (int64, bool) {
	if obj, ok := l.doc.Objects[ref]; ok {
		if num, ok := obj.(raw.Number); ok && num.IsInteger() {
			return num.Int(), true
		}
		return 0, false
	}
	entry, ok := l.table.Lookup(ref.Num)
	if !ok || entry.InStream {
		return 0, false
	}
	if err := l.loadAt(ctx, ref.Num, entry); err != nil {
		return 0, false
	}
	if obj, ok := l.doc.Objects[raw.ObjectRef{Num: ref.Num, Gen: entry.Gen}]; ok {
		if num, ok := obj.(raw.Number); ok && num.IsInteger() {
			return num.Int(), true
		}
	}
	return 0, false
}

// loadFromObjectStream extracts one object from its container stream
// (entry type 2). Containers are decoded once and cached per parse via the
// document arena.
func (l *loader) loadFromObjectStream(ctx context.Context, num int, entry xref.Entry) error {
	loc := recovery.Location{ObjectNum: num, Component: "object"}
	containerRef := raw.ObjectRef{Num: entry.StreamNum, Gen: 0}
	container, ok := l.doc.Objects[containerRef]
	if !ok {
		return l.skip(ctx, fmt.Errorf("object stream %d missing", entry.StreamNum), loc)
	}
	stream, ok := container.(raw.Stream)
	if !ok {
		return l.skip(ctx, fmt.Errorf("object %d is not a stream", entry.StreamNum), loc)
	}

	decoded, err := flateData(stream)
	if err != nil {
		return l.skip(ctx, err, loc)
	}

	dict := stream.Dictionary()
	first := dictInt(l.doc, dict, "First")
	count := dictInt(l.doc, dict, "N")
	if first < 0 || count <= 0 {
		return l.skip(ctx, errors.New("object stream missing /First or /N"), loc)
	}

	// Header: N pairs of (object number, relative offset).
	hs := scanner.New(decoded, scanner.Config{MaxStringLength: l.cfg.Limits.MaxStringLength})
	var offset int64 = -1
	for i := int64(0); i < count; i++ {
		numTok, err := hs.Next()
		if err != nil || !numTok.IsInt {
			return l.skip(ctx, errors.New("object stream header damaged"), loc)
		}
		offTok, err := hs.Next()
		if err != nil || !offTok.IsInt {
			return l.skip(ctx, errors.New("object stream header damaged"), loc)
		}
		if int(numTok.Int) == num {
			offset = first + offTok.Int
		}
	}
	if offset < 0 || offset > int64(len(decoded)) {
		return l.skip(ctx, errors.New("object not present in its stream"), loc)
	}

	os := scanner.New(decoded, scanner.Config{MaxStringLength: l.cfg.Limits.MaxStringLength})
	if err := os.Seek(offset); err != nil {
		return l.skip(ctx, err, loc)
	}
	obj, err := scanner.ParseObject(os)
	if err != nil {
		return l.skip(ctx, err, loc)
	}
	l.doc.Objects[raw.ObjectRef{Num: num, Gen: 0}] = obj
	return nil
}

func flateData(stream raw.Stream) ([]byte, error) {
	dict := stream.Dictionary()
	filter, ok := dict.Get(raw.NameLiteral("Filter"))
	if !ok {
		return stream.RawData(), nil
	}
	name, ok := filter.(raw.Name)
	if !ok || name.Value() != "FlateDecode" {
		return nil, errors.New("unsupported object stream filter")
	}
	zr, err := zlib.NewReader(bytes.NewReader(stream.RawData()))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func mustGet(dict *raw.DictObj, key string) raw.Object {
	v, _ := dict.Get(raw.NameLiteral(key))
	return v
}

func dictInt(doc *raw.Document, dict raw.Dictionary, key string) int64 {
	v, ok := doc.DictGet(dict, key)
	if !ok {
		return -1
	}
	num, ok := v.(raw.Number)
	if !ok || !num.IsInteger() {
		return -1
	}
	return num.Int()
}
