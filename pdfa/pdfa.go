// Package pdfa holds the PDF/A conformance levels shared by the converter,
// the writer and the compliance validators.
package pdfa

import (
	"fmt"
	"strings"
)

// Level represents a PDF/A conformance level.
type Level int

const (
	PDFA1B Level = iota
	PDFA2B
	PDFA2U
	PDFA3B
	PDFA3U
	PDFA4
)

func (l Level) String() string {
	switch l {
	case PDFA1B:
		return "PDF/A-1b"
	case PDFA2B:
		return "PDF/A-2b"
	case PDFA2U:
		return "PDF/A-2u"
	case PDFA3B:
		return "PDF/A-3b"
	case PDFA3U:
		return "PDF/A-3u"
	case PDFA4:
		return "PDF/A-4"
	default:
		return "Unknown"
	}
}

// Part returns the ISO 19005 part number of the level.
func (l Level) Part() int {
	switch l {
	case PDFA1B:
		return 1
	case PDFA2B, PDFA2U:
		return 2
	case PDFA3B, PDFA3U:
		return 3
	case PDFA4:
		return 4
	default:
		return 0
	}
}

// Conformance returns the conformance letter ("B", "U" or "" for part 4).
func (l Level) Conformance() string {
	switch l {
	case PDFA1B, PDFA2B, PDFA3B:
		return "B"
	case PDFA2U, PDFA3U:
		return "U"
	default:
		return ""
	}
}

// AllowsTransparency reports whether the level permits transparency groups.
func (l Level) AllowsTransparency() bool { return l != PDFA1B }

// AllowsAttachments reports whether the level permits embedded files.
func (l Level) AllowsAttachments() bool { return l.Part() >= 3 }

// ParseLevel parses level names like "2b", "pdfa-2b" or "PDF/A-2b".
func ParseLevel(s string) (Level, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimPrefix(norm, "pdf/a-")
	norm = strings.TrimPrefix(norm, "pdfa-")
	norm = strings.TrimPrefix(norm, "a-")
	switch norm {
	case "1b":
		return PDFA1B, nil
	case "2b":
		return PDFA2B, nil
	case "2u":
		return PDFA2U, nil
	case "3b":
		return PDFA3B, nil
	case "3u":
		return PDFA3U, nil
	case "4":
		return PDFA4, nil
	}
	return 0, fmt.Errorf("pdfa: unknown conformance level %q", s)
}
