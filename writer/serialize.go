package writer

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfarc/ir/raw"
)

// writeObject serializes one object value and returns the byte count.
// Dictionary keys are emitted in sorted order so output is deterministic.
func writeObject(bw *bufio.Writer, obj raw.Object) (int, error) {
	switch v := obj.(type) {
	case nil:
		return bw.WriteString("null")
	case raw.Null:
		return bw.WriteString("null")
	case raw.Boolean:
		if v.Value() {
			return bw.WriteString("true")
		}
		return bw.WriteString("false")
	case raw.Number:
		if v.IsInteger() {
			return bw.WriteString(strconv.FormatInt(v.Int(), 10))
		}
		return bw.WriteString(strconv.FormatFloat(v.Float(), 'f', -1, 64))
	case raw.Name:
		return writeName(bw, v.Value())
	case raw.String:
		if v.IsHex() {
			return writeHexString(bw, v.Value())
		}
		return writeLiteralString(bw, v.Value())
	case raw.Reference:
		ref := v.Ref()
		n, err := bw.WriteString(fmt.Sprintf("%d %d R", ref.Num, ref.Gen))
		return n, err
	case raw.Stream:
		return writeStream(bw, v)
	case raw.Array:
		return writeArray(bw, v)
	case raw.Dictionary:
		return writeDict(bw, v)
	default:
		return 0, fmt.Errorf("unsupported object type %T", obj)
	}
}

func writeName(bw *bufio.Writer, name string) (int, error) {
	total, err := bw.WriteString("/")
	if err != nil {
		return total, err
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		needsEscape := c <= ' ' || c > '~' || c == '#' ||
			c == '(' || c == ')' || c == '<' || c == '>' ||
			c == '[' || c == ']' || c == '{' || c == '}' || c == '/' || c == '%'
		var n int
		if needsEscape {
			n, err = fmt.Fprintf(bw, "#%02X", c)
		} else {
			err = bw.WriteByte(c)
			n = 1
		}
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeLiteralString(bw *bufio.Writer, data []byte) (int, error) {
	total := 0
	n, err := bw.WriteString("(")
	total += n
	if err != nil {
		return total, err
	}
	for _, c := range data {
		switch {
		case c == '(' || c == ')' || c == '\\':
			n, err = bw.WriteString("\\" + string(c))
		case c == '\n':
			n, err = bw.WriteString("\\n")
		case c == '\r':
			n, err = bw.WriteString("\\r")
		case c < ' ' || c > '~':
			n, err = fmt.Fprintf(bw, "\\%03o", c)
		default:
			err = bw.WriteByte(c)
			n = 1
		}
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = bw.WriteString(")")
	return total + n, err
}

func writeHexString(bw *bufio.Writer, data []byte) (int, error) {
	total := 0
	n, err := bw.WriteString("<")
	total += n
	if err != nil {
		return total, err
	}
	for _, c := range data {
		n, err = fmt.Fprintf(bw, "%02X", c)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = bw.WriteString(">")
	return total + n, err
}

func writeArray(bw *bufio.Writer, arr raw.Array) (int, error) {
	total := 0
	n, err := bw.WriteString("[")
	total += n
	if err != nil {
		return total, err
	}
	for i := 0; i < arr.Len(); i++ {
		if i > 0 {
			n, err = bw.WriteString(" ")
			total += n
			if err != nil {
				return total, err
			}
		}
		item, _ := arr.Get(i)
		n, err = writeObject(bw, item)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = bw.WriteString("]")
	return total + n, err
}

func writeDict(bw *bufio.Writer, dict raw.Dictionary) (int, error) {
	total := 0
	n, err := bw.WriteString("<< ")
	total += n
	if err != nil {
		return total, err
	}
	keys := dict.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Value() < keys[j].Value() })
	for _, key := range keys {
		n, err = writeName(bw, key.Value())
		total += n
		if err != nil {
			return total, err
		}
		n, err = bw.WriteString(" ")
		total += n
		if err != nil {
			return total, err
		}
		val, _ := dict.Get(key)
		n, err = writeObject(bw, val)
		total += n
		if err != nil {
			return total, err
		}
		n, err = bw.WriteString(" ")
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = bw.WriteString(">>")
	return total + n, err
}

func writeStream(bw *bufio.Writer, stream raw.Stream) (int, error) {
	dict := stream.Dictionary()
	data := stream.RawData()
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))

	total, err := writeDict(bw, dict)
	if err != nil {
		return total, err
	}
	n, err := bw.WriteString("\nstream\n")
	total += n
	if err != nil {
		return total, err
	}
	n, err = bw.Write(data)
	total += n
	if err != nil {
		return total, err
	}
	n, err = bw.WriteString("\nendstream")
	return total + n, err
}
