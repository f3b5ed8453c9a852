package scanner

import (
	"fmt"
	"io"

	"github.com/wudi/pdfarc/ir/raw"
)

// Object composition on top of the token stream. Indirect references need
// three tokens of lookahead ("5 0 R"), handled with a small unread buffer.

type objParser struct {
	s   *Scanner
	buf []Token
}

func (p *objParser) next() (Token, error) {
	if n := len(p.buf); n > 0 {
		tok := p.buf[n-1]
		p.buf = p.buf[:n-1]
		return tok, nil
	}
	return p.s.Next()
}

func (p *objParser) unread(tok Token) { p.buf = append(p.buf, tok) }

const maxParseDepth = 256

// ParseObject reads one complete object from s. For stream objects the
// caller detects the following 'stream' keyword itself; ParseObject stops
// at the dictionary.
func ParseObject(s *Scanner) (raw.Object, error) {
	p := &objParser{s: s}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	return p.parseValue(tok, 0)
}

func (p *objParser) parseValue(tok Token, depth int) (raw.Object, error) {
	if depth > maxParseDepth {
		return nil, fmt.Errorf("scanner: object nesting exceeds %d at %d", maxParseDepth, tok.Pos)
	}
	switch tok.Type {
	case TokenNumber:
		if tok.IsInt {
			return p.maybeReference(tok)
		}
		return raw.NumberFloat(tok.Float), nil
	case TokenString:
		return raw.Str(tok.Bytes), nil
	case TokenHexString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: true}, nil
	case TokenName:
		return raw.NameLiteral(tok.Str), nil
	case TokenBoolean:
		return raw.Bool(tok.Int != 0), nil
	case TokenNull:
		return raw.NullObj{}, nil
	case TokenArrayOpen:
		return p.parseArray(depth + 1)
	case TokenDictOpen:
		return p.parseDict(depth + 1)
	default:
		return nil, fmt.Errorf("scanner: unexpected token %v at %d", tok.Type, tok.Pos)
	}
}

// maybeReference disambiguates "5 0 R" from plain integers.
func (p *objParser) maybeReference(num Token) (raw.Object, error) {
	second, err := p.next()
	if err == io.EOF {
		return raw.NumberInt(num.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if second.Type != TokenNumber || !second.IsInt {
		p.unread(second)
		return raw.NumberInt(num.Int), nil
	}
	third, err := p.next()
	if err == io.EOF {
		p.unread(second)
		return raw.NumberInt(num.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if third.Type == TokenKeyword && third.Str == "R" {
		return raw.Ref(int(num.Int), int(second.Int)), nil
	}
	p.unread(third)
	p.unread(second)
	return raw.NumberInt(num.Int), nil
}

func (p *objParser) parseArray(depth int) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := p.next()
		if err != nil {
			return nil, fmt.Errorf("scanner: unterminated array: %w", err)
		}
		if tok.Type == TokenArrayClose {
			return arr, nil
		}
		item, err := p.parseValue(tok, depth)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (p *objParser) parseDict(depth int) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := p.next()
		if err != nil {
			return nil, fmt.Errorf("scanner: unterminated dictionary: %w", err)
		}
		if tok.Type == TokenDictClose {
			return dict, nil
		}
		if tok.Type != TokenName {
			return nil, fmt.Errorf("scanner: dictionary key is %v at %d", tok.Type, tok.Pos)
		}
		valTok, err := p.next()
		if err != nil {
			return nil, fmt.Errorf("scanner: dictionary missing value: %w", err)
		}
		val, err := p.parseValue(valTok, depth)
		if err != nil {
			return nil, err
		}
		dict.Set(raw.NameLiteral(tok.Str), val)
	}
}
