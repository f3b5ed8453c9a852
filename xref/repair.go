package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/scanner"
)

// Rebuild reconstructs a table by scanning the whole file for
// "<num> <gen> obj" patterns and trailer dictionaries. Later definitions
// override earlier ones, matching incremental-update order on disk.
func Rebuild(ctx context.Context, data []byte) (*Table, error) {
	s := scanner.New(data, scanner.Config{})
	table := &Table{entries: make(map[int]Entry)}

	var pending [2]scanner.Token
	nPending := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Damaged region; skip a byte and keep scanning.
			if seekErr := s.Seek(s.Position() + 1); seekErr != nil {
				break
			}
			nPending = 0
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			if nPending == 2 {
				pending[0] = pending[1]
				pending[1] = tok
			} else {
				pending[nPending] = tok
				nPending++
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "obj" && nPending == 2:
			num := int(pending[0].Int)
			gen := int(pending[1].Int)
			if num > 0 {
				table.entries[num] = Entry{Offset: pending[0].Pos, Gen: gen}
			}
			nPending = 0
			skipObjectBody(s)
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			if obj, err := scanner.ParseObject(s); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					table.trailer = dict
				}
			}
			nPending = 0
		default:
			nPending = 0
		}
	}

	if len(table.entries) == 0 {
		return nil, errors.New("xref: rebuild found no objects")
	}
	return table, nil
}

// skipObjectBody advances past the object so stream payloads do not feed
// bogus tokens into the scan. The /Length entry is not trusted here; the
// endstream keyword is located textually.
func skipObjectBody(s *scanner.Scanner) {
	obj, err := scanner.ParseObject(s)
	if err != nil {
		return
	}
	if _, ok := obj.(*raw.DictObj); !ok {
		return
	}
	save := s.Position()
	tok, err := s.Next()
	if err != nil || tok.Str != "stream" {
		s.Seek(save)
		return
	}
	if end := s.FindFrom(s.Position(), []byte("endstream")); end >= 0 {
		s.Seek(end)
	}
}
