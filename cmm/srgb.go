package cmm

import "encoding/binary"

// SRGB synthesizes a minimal sRGB display profile: header, description,
// white point, primaries, gamma 2.2 tone curves and copyright. It is not a
// color-managed rendering profile, but it is structurally valid and
// sufficient as an archival output intent's destination profile.
func SRGB() *ICCProfile {
	b := newProfileBuilder("mntr", "RGB ", "XYZ ")

	b.addTag("desc", descriptionTag("sRGB IEC61966-2.1"))
	b.addTag("wtpt", xyzTag(0x0000F351, 0x00010000, 0x000116CC))
	b.addTag("rXYZ", xyzTag(0x00006FA2, 0x000038F5, 0x00000390))
	b.addTag("gXYZ", xyzTag(0x00006299, 0x0000B785, 0x000018DA))
	b.addTag("bXYZ", xyzTag(0x000024A0, 0x00000B5A, 0x0000B6CF))
	trc := b.addTag("rTRC", gammaTag(0x0233))
	b.shareTag("gTRC", trc)
	b.shareTag("bTRC", trc)
	b.addTag("cprt", textTag("Public Domain"))

	p, err := NewICCProfile(b.bytes())
	if err != nil {
		// The builder output is fixed; a parse failure is a programming
		// error.
		panic("cmm: synthesized sRGB profile invalid: " + err.Error())
	}
	return p
}

type tagEntry struct {
	sig    string
	offset int
	size   int
}

type profileBuilder struct {
	class, space, pcs string
	tags              []tagEntry
	payload           []byte
}

func newProfileBuilder(class, space, pcs string) *profileBuilder {
	return &profileBuilder{class: class, space: space, pcs: pcs}
}

// addTag appends the tag payload, 4-byte aligned, and returns its index
// for sharing.
func (b *profileBuilder) addTag(sig string, data []byte) int {
	for len(b.payload)%4 != 0 {
		b.payload = append(b.payload, 0)
	}
	b.tags = append(b.tags, tagEntry{sig: sig, offset: len(b.payload), size: len(data)})
	b.payload = append(b.payload, data...)
	return len(b.tags) - 1
}

// shareTag registers sig pointing at a previously added tag's data.
func (b *profileBuilder) shareTag(sig string, idx int) {
	shared := b.tags[idx]
	b.tags = append(b.tags, tagEntry{sig: sig, offset: shared.offset, size: shared.size})
}

func (b *profileBuilder) bytes() []byte {
	tableSize := 4 + len(b.tags)*12
	dataStart := 128 + tableSize
	for len(b.payload)%4 != 0 {
		b.payload = append(b.payload, 0)
	}
	total := dataStart + len(b.payload)

	out := make([]byte, total)
	binary.BigEndian.PutUint32(out[0:4], uint32(total))
	binary.BigEndian.PutUint32(out[8:12], 0x02400000) // version 2.4
	copy(out[12:16], b.class)
	copy(out[16:20], b.space)
	copy(out[20:24], b.pcs)
	copy(out[36:40], "acsp")
	// PCS illuminant, D50.
	binary.BigEndian.PutUint32(out[68:72], 0x0000F6D6)
	binary.BigEndian.PutUint32(out[72:76], 0x00010000)
	binary.BigEndian.PutUint32(out[76:80], 0x0000D32D)

	binary.BigEndian.PutUint32(out[128:132], uint32(len(b.tags)))
	for i, tag := range b.tags {
		entry := 132 + i*12
		copy(out[entry:entry+4], tag.sig)
		binary.BigEndian.PutUint32(out[entry+4:entry+8], uint32(dataStart+tag.offset))
		binary.BigEndian.PutUint32(out[entry+8:entry+12], uint32(tag.size))
	}
	copy(out[dataStart:], b.payload)
	return out
}

// descriptionTag encodes a v2 textDescriptionType with empty Unicode and
// ScriptCode sections.
func descriptionTag(text string) []byte {
	ascii := append([]byte(text), 0)
	out := make([]byte, 0, 12+len(ascii)+78)
	out = append(out, "desc"...)
	out = append(out, 0, 0, 0, 0)
	out = binary.BigEndian.AppendUint32(out, uint32(len(ascii)))
	out = append(out, ascii...)
	out = append(out, make([]byte, 8)...)  // unicode code + count
	out = append(out, make([]byte, 3)...)  // scriptcode code + count
	out = append(out, make([]byte, 67)...) // macintosh description
	return out
}

func xyzTag(x, y, z uint32) []byte {
	out := make([]byte, 0, 20)
	out = append(out, "XYZ "...)
	out = append(out, 0, 0, 0, 0)
	out = binary.BigEndian.AppendUint32(out, x)
	out = binary.BigEndian.AppendUint32(out, y)
	out = binary.BigEndian.AppendUint32(out, z)
	return out
}

// gammaTag encodes a one-entry curveType holding a u8Fixed8 exponent.
func gammaTag(gamma uint16) []byte {
	out := make([]byte, 0, 14)
	out = append(out, "curv"...)
	out = append(out, 0, 0, 0, 0)
	out = binary.BigEndian.AppendUint32(out, 1)
	out = binary.BigEndian.AppendUint16(out, gamma)
	return out
}

func textTag(text string) []byte {
	out := make([]byte, 0, 8+len(text)+1)
	out = append(out, "text"...)
	out = append(out, 0, 0, 0, 0)
	out = append(out, text...)
	out = append(out, 0)
	return out
}
