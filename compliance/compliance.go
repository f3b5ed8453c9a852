package compliance

import (
	"context"

	"github.com/wudi/pdfarc/ir/raw"
)

// Violation represents a compliance violation.
type Violation struct {
	Code        string // ISO clause, e.g. "6.6.1"
	Description string
	Location    string
}

// Report details compliance status.
type Report struct {
	Compliant  bool
	Standard   string // e.g. "PDF/A-2b"
	Violations []Violation
}

// Add records a violation and marks the report non-compliant.
func (r *Report) Add(code, description, location string) {
	r.Compliant = false
	r.Violations = append(r.Violations, Violation{Code: code, Description: description, Location: location})
}

// ByCode returns the violations carrying the given clause code.
func (r *Report) ByCode(code string) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Code == code {
			out = append(out, v)
		}
	}
	return out
}

// Validator checks document compliance against a standard.
type Validator interface {
	Validate(ctx context.Context, doc *raw.Document) (*Report, error)
}
