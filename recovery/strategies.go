package recovery

import (
	"context"
	"fmt"
)

// StrictStrategy aborts on the first error.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy { return &StrictStrategy{} }

func (s *StrictStrategy) OnError(ctx context.Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy keeps going: damaged objects are skipped and a broken
// cross-reference table is rebuilt by scanning the file. Every decision is
// recorded so the caller can report what was lost.
type LenientStrategy struct {
	Errors []error
}

func NewLenientStrategy() *LenientStrategy { return &LenientStrategy{} }

func (s *LenientStrategy) OnError(ctx context.Context, err error, location Location) Action {
	s.Errors = append(s.Errors, fmt.Errorf("%s at offset %d (object %d %d): %w",
		location.Component, location.ByteOffset, location.ObjectNum, location.ObjectGen, err))
	if location.Component == "xref" {
		return ActionFix
	}
	return ActionSkip
}
