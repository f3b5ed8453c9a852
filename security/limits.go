package security

import "time"

// Limits defines defensive boundaries for parsing and traversal. These
// limits exist to keep pathological or adversarial inputs from causing
// unbounded recursion or resource exhaustion; exceeding a traversal limit
// truncates the affected branch silently rather than failing the pass.
type Limits struct {
	// Maximum indirect reference depth. Default: 100.
	MaxIndirectDepth int

	// Maximum XRef chain depth (Prev entries). Default: 50.
	MaxXRefDepth int

	// Maximum traversal depth for structural trees: name trees, the
	// outline tree, the form field tree, nested form XObject resources
	// and /Next action chains. Default: 32.
	MaxTreeDepth int

	// Maximum array size (number of elements). Default: 100,000.
	MaxArraySize int

	// Maximum dictionary size (number of entries). Default: 10,000.
	MaxDictSize int

	// Maximum string length (bytes). Default: 10 MB.
	MaxStringLength int64

	// Maximum raw stream length (bytes). Default: 50 MB.
	MaxStreamLength int64

	// Maximum total parse time. Default: 5m.
	MaxParseTime time.Duration
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxIndirectDepth: 100,
		MaxXRefDepth:     50,
		MaxTreeDepth:     32,
		MaxArraySize:     100000,
		MaxDictSize:      10000,
		MaxStringLength:  10 * 1024 * 1024, // 10 MB
		MaxStreamLength:  50 * 1024 * 1024, // 50 MB
		MaxParseTime:     5 * time.Minute,
	}
}

// TreeDepth returns the configured tree depth cap, falling back to the
// default when the zero value is used.
func (l Limits) TreeDepth() int {
	if l.MaxTreeDepth <= 0 {
		return DefaultLimits().MaxTreeDepth
	}
	return l.MaxTreeDepth
}
