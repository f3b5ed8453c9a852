// Package xref locates and parses cross-reference information: classic
// tables, cross-reference streams, hybrid files and incremental-update
// chains.
package xref

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/scanner"
	"github.com/wudi/pdfarc/security"
)

// Entry describes where one object lives.
type Entry struct {
	Offset    int64
	Gen       int
	Free      bool
	InStream  bool
	StreamNum int
	StreamIdx int
}

// Table maps object numbers to entries. Incremental updates are already
// merged: the newest section wins.
type Table struct {
	entries map[int]Entry
	trailer *raw.DictObj
}

// Lookup returns the entry for an object number. Free objects are absent.
func (t *Table) Lookup(num int) (Entry, bool) {
	e, ok := t.entries[num]
	if !ok || e.Free {
		return Entry{}, false
	}
	return e, true
}

// Objects returns the in-use object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for num, e := range t.entries {
		if !e.Free {
			out = append(out, num)
		}
	}
	sort.Ints(out)
	return out
}

// Trailer returns the newest trailer dictionary, or nil after a rebuild of
// a file with no trailer.
func (t *Table) Trailer() raw.Dictionary {
	if t.trailer == nil {
		return nil
	}
	return t.trailer
}

// merge records entries from an older section without overriding newer ones.
func (t *Table) merge(entries map[int]Entry) {
	for num, e := range entries {
		if _, exists := t.entries[num]; !exists {
			t.entries[num] = e
		}
	}
}

// Resolve parses the cross-reference chain starting at the startxref
// offset nearest the end of the file.
func Resolve(ctx context.Context, data []byte, limits security.Limits) (*Table, error) {
	start := bytes.LastIndex(data, []byte("startxref"))
	if start < 0 {
		return nil, errors.New("xref: startxref not found")
	}
	s := scanner.New(data, scanner.Config{MaxStringLength: limits.MaxStringLength})
	if err := s.Seek(int64(start)); err != nil {
		return nil, err
	}
	if tok, err := s.Next(); err != nil || tok.Str != "startxref" {
		return nil, errors.New("xref: malformed startxref")
	}
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
		return nil, errors.New("xref: malformed startxref offset")
	}

	maxDepth := limits.MaxXRefDepth
	if maxDepth <= 0 {
		maxDepth = security.DefaultLimits().MaxXRefDepth
	}

	table := &Table{entries: make(map[int]Entry)}
	visited := make(map[int64]struct{})
	if err := resolveSection(ctx, data, tok.Int, table, visited, maxDepth, limits); err != nil {
		return nil, err
	}
	return table, nil
}

func resolveSection(ctx context.Context, data []byte, offset int64, table *Table, visited map[int64]struct{}, depth int, limits security.Limits) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth <= 0 {
		return errors.New("xref: Prev chain too deep")
	}
	if offset < 0 || offset >= int64(len(data)) {
		return fmt.Errorf("xref: offset %d out of range", offset)
	}
	if _, seen := visited[offset]; seen {
		return nil
	}
	visited[offset] = struct{}{}

	s := scanner.New(data, scanner.Config{MaxStringLength: limits.MaxStringLength})
	if err := s.Seek(offset); err != nil {
		return err
	}
	tok, err := s.Next()
	if err != nil {
		return fmt.Errorf("xref: empty section at %d: %w", offset, err)
	}

	var trailer *raw.DictObj
	var classic map[int]Entry
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		trailer, classic, err = parseClassicSection(s)
	} else if tok.Type == scanner.TokenNumber {
		trailer, err = parseStreamSection(s, table, limits)
	} else {
		return fmt.Errorf("xref: unrecognized section at %d", offset)
	}
	if err != nil {
		return err
	}
	if table.trailer == nil {
		table.trailer = trailer
	}

	// Hybrid files park a cross-reference stream beside the classic table;
	// its entries shadow the classic section's free markers, so it merges
	// first.
	if v, ok := trailer.Get(raw.NameLiteral("XRefStm")); ok {
		if num, ok := v.(raw.Number); ok && num.IsInteger() {
			if err := resolveSection(ctx, data, num.Int(), table, visited, depth-1, limits); err != nil {
				return err
			}
		}
	}
	table.merge(classic)
	if v, ok := trailer.Get(raw.NameLiteral("Prev")); ok {
		if num, ok := v.(raw.Number); ok && num.IsInteger() {
			return resolveSection(ctx, data, num.Int(), table, visited, depth-1, limits)
		}
	}
	return nil
}

// parseClassicSection reads subsections of "offset gen n|f" entries up to
// the trailer keyword.
func parseClassicSection(s *scanner.Scanner) (*raw.DictObj, map[int]Entry, error) {
	entries := make(map[int]Entry)
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, nil, fmt.Errorf("xref: truncated table: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, nil, fmt.Errorf("xref: bad subsection header at %d", tok.Pos)
		}
		first := int(tok.Int)
		countTok, err := s.Next()
		if err != nil || countTok.Type != scanner.TokenNumber || !countTok.IsInt {
			return nil, nil, errors.New("xref: bad subsection count")
		}
		count := int(countTok.Int)
		for i := 0; i < count; i++ {
			offTok, err := s.Next()
			if err != nil || offTok.Type != scanner.TokenNumber {
				return nil, nil, errors.New("xref: bad entry offset")
			}
			genTok, err := s.Next()
			if err != nil || genTok.Type != scanner.TokenNumber {
				return nil, nil, errors.New("xref: bad entry generation")
			}
			kindTok, err := s.Next()
			if err != nil || kindTok.Type != scanner.TokenKeyword {
				return nil, nil, errors.New("xref: bad entry type")
			}
			num := first + i
			switch kindTok.Str {
			case "n":
				entries[num] = Entry{Offset: offTok.Int, Gen: int(genTok.Int)}
			case "f":
				entries[num] = Entry{Free: true}
			default:
				return nil, nil, fmt.Errorf("xref: entry type %q", kindTok.Str)
			}
		}
	}
	obj, err := scanner.ParseObject(s)
	if err != nil {
		return nil, nil, fmt.Errorf("xref: bad trailer: %w", err)
	}
	trailer, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, nil, errors.New("xref: trailer is not a dictionary")
	}
	return trailer, entries, nil
}

// parseStreamSection reads a cross-reference stream object. The first
// number token has already been consumed.
func parseStreamSection(s *scanner.Scanner, table *Table, limits security.Limits) (*raw.DictObj, error) {
	// gen and obj keyword
	if tok, err := s.Next(); err != nil || tok.Type != scanner.TokenNumber {
		return nil, errors.New("xref: bad stream object header")
	}
	if tok, err := s.Next(); err != nil || tok.Str != "obj" {
		return nil, errors.New("xref: bad stream object header")
	}
	obj, err := scanner.ParseObject(s)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("xref: stream object is not a dictionary")
	}
	if tok, err := s.Next(); err != nil || tok.Str != "stream" {
		return nil, errors.New("xref: stream keyword missing")
	}
	maxStream := limits.MaxStreamLength
	if maxStream <= 0 {
		maxStream = security.DefaultLimits().MaxStreamLength
	}
	length := dictInt(dict, "Length", -1)
	if length < 0 || length > maxStream {
		return nil, errors.New("xref: bad stream length")
	}
	rawData, err := s.ReadStreamData(length)
	if err != nil {
		return nil, err
	}
	decoded, err := decodeStream(dict, rawData)
	if err != nil {
		return nil, fmt.Errorf("xref: decode stream: %w", err)
	}

	widths, ok := dict.Get(raw.NameLiteral("W"))
	if !ok {
		return nil, errors.New("xref: stream missing /W")
	}
	wArr, ok := widths.(raw.Array)
	if !ok || wArr.Len() != 3 {
		return nil, errors.New("xref: malformed /W")
	}
	var w [3]int
	for i := 0; i < 3; i++ {
		item, _ := wArr.Get(i)
		num, ok := item.(raw.Number)
		if !ok {
			return nil, errors.New("xref: malformed /W")
		}
		w[i] = int(num.Int())
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen <= 0 {
		return nil, errors.New("xref: zero-width rows")
	}

	size := int(dictInt(dict, "Size", 0))
	index := []int{0, size}
	if idxObj, ok := dict.Get(raw.NameLiteral("Index")); ok {
		idxArr, ok := idxObj.(raw.Array)
		if !ok || idxArr.Len()%2 != 0 {
			return nil, errors.New("xref: malformed /Index")
		}
		index = index[:0]
		for i := 0; i < idxArr.Len(); i++ {
			item, _ := idxArr.Get(i)
			num, ok := item.(raw.Number)
			if !ok {
				return nil, errors.New("xref: malformed /Index")
			}
			index = append(index, int(num.Int()))
		}
	}

	entries := make(map[int]Entry)
	row := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			base := row * rowLen
			if base+rowLen > len(decoded) {
				return nil, errors.New("xref: stream data shorter than /Index")
			}
			kind := int64(1) // default type when W[0] == 0
			if w[0] > 0 {
				kind = beInt(decoded[base : base+w[0]])
			}
			f2 := beInt(decoded[base+w[0] : base+w[0]+w[1]])
			f3 := beInt(decoded[base+w[0]+w[1] : base+rowLen])
			num := first + j
			switch kind {
			case 0:
				entries[num] = Entry{Free: true}
			case 1:
				entries[num] = Entry{Offset: f2, Gen: int(f3)}
			case 2:
				entries[num] = Entry{InStream: true, StreamNum: int(f2), StreamIdx: int(f3)}
			}
			row++
		}
	}
	table.merge(entries)
	return dict, nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func dictInt(d *raw.DictObj, key string, def int64) int64 {
	v, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return def
	}
	num, ok := v.(raw.Number)
	if !ok || !num.IsInteger() {
		return def
	}
	return num.Int()
}

// decodeStream applies FlateDecode and the PNG predictor declared in
// /DecodeParms. Cross-reference streams may use no other filters.
func decodeStream(dict *raw.DictObj, data []byte) ([]byte, error) {
	filter, ok := dict.Get(raw.NameLiteral("Filter"))
	if !ok {
		return data, nil
	}
	name, ok := filter.(raw.Name)
	if !ok || name.Value() != "FlateDecode" {
		return nil, errors.New("unsupported filter")
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	decoded, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}

	parms, ok := dict.Get(raw.NameLiteral("DecodeParms"))
	if !ok {
		return decoded, nil
	}
	pd, ok := parms.(*raw.DictObj)
	if !ok {
		return decoded, nil
	}
	predictor := int(dictInt(pd, "Predictor", 1))
	if predictor <= 1 {
		return decoded, nil
	}
	columns := int(dictInt(pd, "Columns", 1))
	colors := int(dictInt(pd, "Colors", 1))
	bits := int(dictInt(pd, "BitsPerComponent", 8))
	return applyPNGPredictor(decoded, columns, colors, bits)
}

// applyPNGPredictor undoes PNG row filtering (predictors 10..15).
func applyPNGPredictor(data []byte, columns, colors, bits int) ([]byte, error) {
	bpp := (colors*bits + 7) / 8
	if bpp < 1 {
		bpp = 1
	}
	rowLen := (columns*colors*bits + 7) / 8
	stride := rowLen + 1
	if rowLen <= 0 || len(data)%stride != 0 {
		return nil, errors.New("predictor: data does not divide into rows")
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		filt := data[r*stride]
		copy(cur, data[r*stride+1:(r+1)*stride])
		switch filt {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				left := 0
				if i >= bpp {
					left = int(cur[i-bpp])
				}
				cur[i] += byte((left + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				left, upLeft := 0, 0
				if i >= bpp {
					left = int(cur[i-bpp])
					upLeft = int(prev[i-bpp])
				}
				cur[i] += paeth(left, int(prev[i]), upLeft)
			}
		default:
			return nil, fmt.Errorf("predictor: unknown row filter %d", filt)
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c int) byte {
	p := a + b - c
	pa, pb, pc := abs(p-a), abs(p-b), abs(p-c)
	if pa <= pb && pa <= pc {
		return byte(a)
	}
	if pb <= pc {
		return byte(b)
	}
	return byte(c)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
