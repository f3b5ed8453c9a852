// Package writer serializes a raw.Document into a complete PDF file with
// a classic cross-reference table.
package writer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/observability"
)

// Config controls serialization.
type Config struct {
	// Version is the header version, e.g. "1.7". Empty selects the
	// document's own version.
	Version string
	Logger  observability.Logger
}

// Writer serializes documents. Safe for reuse across documents.
type Writer struct {
	cfg Config
}

func NewWriter(cfg Config) *Writer {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &Writer{cfg: cfg}
}

// Write emits doc to out: header, body in ascending object order, xref
// table and trailer. The trailer's /Size, and incremental-update keys that
// no longer apply (/Prev, /XRefStm), are rewritten.
func (w *Writer) Write(doc *raw.Document, out io.Writer) error {
	if doc == nil {
		return errors.New("writer: nil document")
	}
	bw := bufio.NewWriter(out)
	offset := int64(0)

	version := w.cfg.Version
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = "1.7"
	}
	n, err := fmt.Fprintf(bw, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)
	if err != nil {
		return err
	}
	offset += int64(n)

	refs := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})

	offsets := make(map[raw.ObjectRef]int64, len(refs))
	for _, ref := range refs {
		offsets[ref] = offset
		n, err := w.writeIndirect(bw, ref, doc.Objects[ref])
		if err != nil {
			return fmt.Errorf("writer: object %d %d: %w", ref.Num, ref.Gen, err)
		}
		offset += int64(n)
	}

	xrefOffset := offset
	maxNum := 0
	for _, ref := range refs {
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}
	if err := writeXref(bw, refs, offsets, maxNum); err != nil {
		return err
	}

	if err := w.writeTrailer(bw, doc, maxNum+1, xrefOffset); err != nil {
		return err
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	w.cfg.Logger.Info("document written",
		observability.Int("objects", len(refs)),
		observability.Int64("bytes", xrefOffset))
	return nil
}

func (w *Writer) writeIndirect(bw *bufio.Writer, ref raw.ObjectRef, obj raw.Object) (int, error) {
	total := 0
	n, err := fmt.Fprintf(bw, "%d %d obj\n", ref.Num, ref.Gen)
	if err != nil {
		return total, err
	}
	total += n
	n, err = writeObject(bw, obj)
	if err != nil {
		return total, err
	}
	total += n
	n, err = bw.WriteString("\nendobj\n")
	return total + n, err
}

func writeXref(bw *bufio.Writer, refs []raw.ObjectRef, offsets map[raw.ObjectRef]int64, maxNum int) error {
	byNum := make(map[int]raw.ObjectRef, len(refs))
	for _, ref := range refs {
		byNum[ref.Num] = ref
	}
	if _, err := fmt.Fprintf(bw, "xref\n0 %d\n", maxNum+1); err != nil {
		return err
	}
	if _, err := bw.WriteString("0000000000 65535 f \n"); err != nil {
		return err
	}
	for num := 1; num <= maxNum; num++ {
		ref, ok := byNum[num]
		if !ok {
			// Gap in numbering; emit a free entry.
			if _, err := bw.WriteString("0000000000 00000 f \n"); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(bw, "%010d %05d n \n", offsets[ref], ref.Gen); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeTrailer(bw *bufio.Writer, doc *raw.Document, size int, xrefOffset int64) error {
	trailer := raw.Dict()
	if doc.Trailer != nil {
		for _, key := range doc.Trailer.Keys() {
			switch key.Value() {
			case "Prev", "XRefStm", "Size":
				continue
			}
			if v, ok := doc.Trailer.Get(key); ok {
				trailer.Set(key, v)
			}
		}
	}
	trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(size)))

	if _, err := bw.WriteString("trailer\n"); err != nil {
		return err
	}
	if _, err := writeObject(bw, trailer); err != nil {
		return err
	}
	_, err := fmt.Fprintf(bw, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return err
}
