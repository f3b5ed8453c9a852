// Package recovery decides how parsing reacts to damaged input.
package recovery

import "context"

// Strategy is consulted whenever the parser hits malformed data.
type Strategy interface {
	OnError(ctx context.Context, err error, location Location) Action
}

// Location pinpoints where in the file an error occurred.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string // "xref", "object", "stream"
}

// Action is the strategy's verdict.
type Action int

const (
	ActionFail Action = iota // abort parsing
	ActionSkip               // drop the damaged element and continue
	ActionFix                // attempt reconstruction (xref rebuild)
)
