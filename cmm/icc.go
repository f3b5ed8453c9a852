package cmm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const headerSize = 128

// ICCProfile implements Profile for ICC data.
type ICCProfile struct {
	data []byte
	desc string
}

// NewICCProfile parses an ICC profile. The header is validated against the
// "acsp" magic and the declared size; the description tag is read when
// present.
func NewICCProfile(data []byte) (*ICCProfile, error) {
	if len(data) < headerSize {
		return nil, errors.New("profile shorter than header")
	}
	if string(data[36:40]) != "acsp" {
		return nil, errors.New("missing acsp signature")
	}
	declared := binary.BigEndian.Uint32(data[0:4])
	if int(declared) > len(data) {
		return nil, fmt.Errorf("declared size %d exceeds %d bytes", declared, len(data))
	}
	p := &ICCProfile{data: data}
	p.desc = p.readDescription()
	return p, nil
}

func (p *ICCProfile) Name() string {
	if p.desc != "" {
		return p.desc
	}
	return "ICC Profile"
}

func (p *ICCProfile) ColorSpace() string { return string(p.data[16:20]) }

func (p *ICCProfile) Class() string { return string(p.data[12:16]) }

// Components maps the data color space to its channel count; unknown
// spaces report zero.
func (p *ICCProfile) Components() int {
	switch strings.TrimRight(p.ColorSpace(), " ") {
	case "GRAY":
		return 1
	case "RGB", "XYZ", "Lab", "YCbr":
		return 3
	case "CMYK":
		return 4
	default:
		return 0
	}
}

func (p *ICCProfile) Data() []byte { return p.data }

// readDescription walks the tag table for a 'desc' tag and extracts its
// ASCII string. The v2 textDescriptionType layout is a 12-byte preamble
// followed by a counted ASCII field.
func (p *ICCProfile) readDescription() string {
	if len(p.data) < headerSize+4 {
		return ""
	}
	count := binary.BigEndian.Uint32(p.data[headerSize : headerSize+4])
	if count > 1024 {
		return ""
	}
	for i := uint32(0); i < count; i++ {
		entry := headerSize + 4 + int(i)*12
		if entry+12 > len(p.data) {
			return ""
		}
		sig := string(p.data[entry : entry+4])
		if sig != "desc" {
			continue
		}
		off := int(binary.BigEndian.Uint32(p.data[entry+4 : entry+8]))
		size := int(binary.BigEndian.Uint32(p.data[entry+8 : entry+12]))
		if off+size > len(p.data) || size < 12 {
			return ""
		}
		tag := p.data[off : off+size]
		if string(tag[0:4]) != "desc" {
			return ""
		}
		strLen := int(binary.BigEndian.Uint32(tag[8:12]))
		if strLen == 0 || 12+strLen > size {
			return ""
		}
		// Drop the terminating NUL.
		return strings.TrimRight(string(tag[12:12+strLen]), "\x00")
	}
	return ""
}
