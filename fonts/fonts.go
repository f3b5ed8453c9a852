// Package fonts inspects font resources of a raw document for archival
// conversion: every font used by a conforming file must carry a parseable
// embedded font program.
package fonts

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"

	"github.com/go-text/typesetting/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/wudi/pdfarc/ir/raw"
)

// Format identifies the embedded font program container.
type Format int

const (
	FormatUnknown Format = iota
	FormatType1          // /FontFile
	FormatTrueType       // /FontFile2
	FormatCFF            // /FontFile3, bare CFF or OpenType wrapper
)

func (f Format) String() string {
	switch f {
	case FormatType1:
		return "Type1"
	case FormatTrueType:
		return "TrueType"
	case FormatCFF:
		return "CFF"
	default:
		return "Unknown"
	}
}

// Info is the result of inspecting one font dictionary.
type Info struct {
	BaseFont   string
	Subtype    string
	Embedded   bool
	Format     Format
	Parses     bool
	UnitsPerEm int
	Glyphs     int
}

// standard14 lists the base fonts a viewer is required to supply. They may
// legally appear without an embedded program in ordinary files but not in
// archival ones; knowing the name helps the report.
var standard14 = map[string]struct{}{
	"Times-Roman": {}, "Times-Bold": {}, "Times-Italic": {}, "Times-BoldItalic": {},
	"Helvetica": {}, "Helvetica-Bold": {}, "Helvetica-Oblique": {}, "Helvetica-BoldOblique": {},
	"Courier": {}, "Courier-Bold": {}, "Courier-Oblique": {}, "Courier-BoldOblique": {},
	"Symbol": {}, "ZapfDingbats": {},
}

// IsStandard14 reports whether name is one of the fourteen standard fonts.
func IsStandard14(name string) bool {
	_, ok := standard14[name]
	return ok
}

// Inspect examines a font dictionary and its descriptor. Type0 composite
// fonts are followed through /DescendantFonts. Inspect never fails; absent
// or undecodable programs yield Embedded=false or Parses=false.
func Inspect(doc *raw.Document, font raw.Dictionary) Info {
	var info Info
	if name, ok := doc.DictGetName(font, "BaseFont"); ok {
		info.BaseFont = name
	}
	info.Subtype, _ = doc.DictGetName(font, "Subtype")

	target := font
	if info.Subtype == "Type0" {
		if desc, ok := doc.DictGetArray(font, "DescendantFonts"); ok && desc.Len() > 0 {
			item, _ := desc.Get(0)
			if d, ok := doc.Resolve(item).(raw.Dictionary); ok {
				target = d
			}
		}
	}

	descriptor, ok := doc.DictGetDict(target, "FontDescriptor")
	if !ok {
		return info
	}

	var program raw.Object
	for _, entry := range []struct {
		key    string
		format Format
	}{
		{"FontFile", FormatType1},
		{"FontFile2", FormatTrueType},
		{"FontFile3", FormatCFF},
	} {
		if v, ok := doc.DictGet(descriptor, entry.key); ok {
			program = v
			info.Format = entry.format
			break
		}
	}
	if program == nil {
		return info
	}
	info.Embedded = true

	stream, ok := doc.Resolve(program).(raw.Stream)
	if !ok {
		return info
	}
	data, err := streamData(doc, stream)
	if err != nil {
		return info
	}

	switch info.Format {
	case FormatTrueType, FormatCFF:
		info.Parses = inspectSfnt(data, &info)
	case FormatType1:
		// Type1 programs start with the %! PostScript marker, possibly
		// behind a 6-byte PFB segment header.
		info.Parses = bytes.HasPrefix(data, []byte("%!")) ||
			(len(data) > 6 && data[0] == 0x80 && bytes.HasPrefix(data[6:], []byte("%!")))
	}
	return info
}

// inspectSfnt validates an sfnt-container program and fills in metrics.
// Bare CFF programs (FontFile3 /Type1C) have no sfnt wrapper and are
// accepted on their header alone.
func inspectSfnt(data []byte, info *Info) bool {
	if len(data) >= 4 && data[0] == 1 && data[1] == 0 {
		// CFF header: major version 1, minor 0.
		return true
	}

	ld, err := opentype.NewLoader(bytes.NewReader(data))
	if err != nil {
		return false
	}
	hasOutlines := ld.HasTable(opentype.MustNewTag("glyf")) ||
		ld.HasTable(opentype.MustNewTag("CFF ")) ||
		ld.HasTable(opentype.MustNewTag("CFF2"))
	if !hasOutlines {
		return false
	}

	f, err := sfnt.Parse(data)
	if err != nil {
		return false
	}
	info.UnitsPerEm = int(f.UnitsPerEm())
	info.Glyphs = f.NumGlyphs()
	return true
}

// streamData returns the stream bytes, applying FlateDecode when present.
// Other filters are not needed for font programs in practice; they are
// reported as undecodable.
func streamData(doc *raw.Document, stream raw.Stream) ([]byte, error) {
	dict := stream.Dictionary()
	filter, ok := doc.DictGet(dict, "Filter")
	if !ok {
		return stream.RawData(), nil
	}
	name, ok := doc.Resolve(filter).(raw.Name)
	if !ok {
		return nil, errors.New("fonts: unsupported filter chain")
	}
	switch name.Value() {
	case "FlateDecode":
		zr, err := zlib.NewReader(bytes.NewReader(stream.RawData()))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, errors.New("fonts: unsupported filter " + name.Value())
	}
}

// DocumentFonts collects the font dictionaries reachable from page resource
// dictionaries, deduplicated by identity.
func DocumentFonts(doc *raw.Document) []raw.Dictionary {
	seen := make(map[raw.ObjectRef]struct{})
	var out []raw.Dictionary
	for _, pageRef := range doc.Pages() {
		obj, ok := doc.ResolveRef(pageRef)
		if !ok {
			continue
		}
		page, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		resources, ok := doc.DictGetDict(page, "Resources")
		if !ok {
			continue
		}
		fontDict, ok := doc.DictGetDict(resources, "Font")
		if !ok {
			continue
		}
		for _, key := range fontDict.Keys() {
			item, _ := fontDict.Get(key)
			resolved, ref, hasRef := doc.ResolveWithRef(item)
			font, ok := resolved.(raw.Dictionary)
			if !ok {
				continue
			}
			if hasRef && !ref.IsZero() {
				if _, dup := seen[ref]; dup {
					continue
				}
				seen[ref] = struct{}{}
			}
			out = append(out, font)
		}
	}
	return out
}
