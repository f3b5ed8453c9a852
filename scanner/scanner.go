// Package scanner tokenizes PDF syntax from an in-memory buffer.
package scanner

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wudi/pdfarc/security"
)

type TokenType int

const (
	TokenDictOpen   TokenType = iota // '<<'
	TokenDictClose                   // '>>'
	TokenArrayOpen                   // '['
	TokenArrayClose                  // ']'
	TokenName                        // '/Name'
	TokenString                      // literal '(...)' string
	TokenHexString                   // '<...>' string
	TokenNumber                      // integer or real
	TokenBoolean                     // true/false
	TokenNull                        // null
	TokenKeyword                     // obj, endobj, stream, R, xref, trailer, ...
)

// Token is one lexical element. Str carries names and keywords, Bytes the
// decoded string payload, and the numeric fields a TokenNumber value.
type Token struct {
	Type  TokenType
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Pos   int64
}

// Config bounds the scanner. Zero values select the default limits.
type Config struct {
	MaxStringLength int64
}

// Scanner walks a byte buffer and produces tokens. It is not safe for
// concurrent use.
type Scanner struct {
	data []byte
	pos  int64
	cfg  Config
}

func New(data []byte, cfg Config) *Scanner {
	if cfg.MaxStringLength <= 0 {
		cfg.MaxStringLength = security.DefaultLimits().MaxStringLength
	}
	return &Scanner{data: data, cfg: cfg}
}

func (s *Scanner) Position() int64 { return s.pos }

func (s *Scanner) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("scanner: seek %d out of range", offset)
	}
	s.pos = offset
	return nil
}

func isWhitespace(c byte) bool {
	return c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' '
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *Scanner) skipWhitespace() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		break
	}
}

// Next returns the next token or io.EOF.
func (s *Scanner) Next() (Token, error) {
	s.skipWhitespace()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]

	switch {
	case c == '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDictOpen, Pos: start}, nil
		}
		return s.scanHexString(start)
	case c == '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenDictClose, Pos: start}, nil
		}
		return Token{}, fmt.Errorf("scanner: stray '>' at %d", start)
	case c == '[':
		s.pos++
		return Token{Type: TokenArrayOpen, Pos: start}, nil
	case c == ']':
		s.pos++
		return Token{Type: TokenArrayClose, Pos: start}, nil
	case c == '(':
		return s.scanLiteralString(start)
	case c == '/':
		return s.scanName(start)
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return s.scanNumber(start)
	default:
		return s.scanKeyword(start)
	}
}

func (s *Scanner) peek(ahead int64) byte {
	if s.pos+ahead < int64(len(s.data)) {
		return s.data[s.pos+ahead]
	}
	return 0
}

func (s *Scanner) scanName(start int64) (Token, error) {
	s.pos++ // '/'
	var out []byte
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) {
			hi, okHi := hexVal(s.data[s.pos+1])
			lo, okLo := hexVal(s.data[s.pos+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				s.pos += 3
				continue
			}
		}
		out = append(out, c)
		s.pos++
	}
	return Token{Type: TokenName, Str: string(out), Pos: start}, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func (s *Scanner) scanLiteralString(start int64) (Token, error) {
	s.pos++ // '('
	var out []byte
	depth := 1
	for s.pos < int64(len(s.data)) {
		if int64(len(out)) > s.cfg.MaxStringLength {
			return Token{}, errors.New("scanner: string exceeds length limit")
		}
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= int64(len(s.data)) {
				return Token{}, errors.New("scanner: unterminated string escape")
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				// Line continuation; swallow a following LF.
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
				// Line continuation.
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2 && s.pos < int64(len(s.data)); i++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						val = val*8 + int(d-'0')
						s.pos++
					}
					out = append(out, byte(val))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: out, Pos: start}, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return Token{}, errors.New("scanner: unterminated literal string")
}

func (s *Scanner) scanHexString(start int64) (Token, error) {
	s.pos++ // '<'
	var out []byte
	var hi byte
	haveHi := false
	for s.pos < int64(len(s.data)) {
		if int64(len(out)) > s.cfg.MaxStringLength {
			return Token{}, errors.New("scanner: string exceeds length limit")
		}
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if haveHi {
				// Odd digit count: trailing digit pairs with zero.
				out = append(out, hi<<4)
			}
			return Token{Type: TokenHexString, Bytes: out, Pos: start}, nil
		}
		if isWhitespace(c) {
			continue
		}
		v, ok := hexVal(c)
		if !ok {
			return Token{}, fmt.Errorf("scanner: bad hex digit %q at %d", c, s.pos-1)
		}
		if haveHi {
			out = append(out, hi<<4|v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
	}
	return Token{}, errors.New("scanner: unterminated hex string")
}

func (s *Scanner) scanNumber(start int64) (Token, error) {
	end := s.pos
	if s.data[end] == '+' || s.data[end] == '-' {
		end++
	}
	isReal := false
	for end < int64(len(s.data)) {
		c := s.data[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !isReal {
			isReal = true
			end++
			continue
		}
		break
	}
	text := string(s.data[s.pos:end])
	s.pos = end
	if !isReal {
		v, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return Token{Type: TokenNumber, Int: v, Float: float64(v), IsInt: true, Pos: start}, nil
		}
		// Out-of-range integer degrades to a real.
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, fmt.Errorf("scanner: bad number %q at %d", text, start)
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

func (s *Scanner) scanKeyword(start int64) (Token, error) {
	end := s.pos
	for end < int64(len(s.data)) {
		c := s.data[end]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		end++
	}
	if end == s.pos {
		return Token{}, fmt.Errorf("scanner: unexpected byte %q at %d", s.data[s.pos], start)
	}
	word := string(s.data[s.pos:end])
	s.pos = end
	switch word {
	case "true":
		return Token{Type: TokenBoolean, Int: 1, Pos: start}, nil
	case "false":
		return Token{Type: TokenBoolean, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	}
	return Token{Type: TokenKeyword, Str: word, Pos: start}, nil
}

// ReadStreamData consumes the EOL after the 'stream' keyword and returns
// the next length bytes. The caller positions the scanner right after the
// keyword token.
func (s *Scanner) ReadStreamData(length int64) ([]byte, error) {
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	if length < 0 || s.pos+length > int64(len(s.data)) {
		return nil, fmt.Errorf("scanner: stream length %d exceeds buffer", length)
	}
	data := s.data[s.pos : s.pos+length]
	s.pos += length
	return data, nil
}

// FindFrom returns the offset of the first occurrence of pattern at or
// after off, or -1.
func (s *Scanner) FindFrom(off int64, pattern []byte) int64 {
	if off < 0 || off >= int64(len(s.data)) {
		return -1
	}
	idx := indexOf(s.data[off:], pattern)
	if idx < 0 {
		return -1
	}
	return off + int64(idx)
}

func indexOf(data, pattern []byte) int {
	if len(pattern) == 0 || len(data) < len(pattern) {
		return -1
	}
outer:
	for i := 0; i+len(pattern) <= len(data); i++ {
		for j := range pattern {
			if data[i+j] != pattern[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
