// Package sanitize rewrites non-archival interactive constructs in place:
// forbidden actions, dead destinations, document JavaScript and digital
// signature structures. Every pass is a total function over arbitrary
// (including adversarial) input — it always returns an exact count of
// discrete modifications and never fails. Malformed objects are treated as
// non-compliant, unresolvable references abandon their branch, and depth
// caps truncate silently.
package sanitize

import (
	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/observability"
	"github.com/wudi/pdfarc/security"
)

// Options configures a sanitization pass.
type Options struct {
	Limits security.Limits
	Logger observability.Logger
}

// Pass holds the per-document state shared by the sanitization passes.
// A Pass is not safe for concurrent use; each pass is one linear walk and
// the pass is the sole writer during it.
type Pass struct {
	doc    *raw.Document
	limits security.Limits
	log    observability.Logger
}

// NewPass returns a Pass over doc. Zero-value options select the default
// limits and a no-op logger.
func NewPass(doc *raw.Document, opts Options) *Pass {
	log := opts.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Pass{doc: doc, limits: opts.Limits, log: log}
}

// RemoveActions removes non-archival actions from doc and returns the
// number of removal/rewrite operations performed.
func RemoveActions(doc *raw.Document) int {
	return NewPass(doc, Options{}).RemoveActions()
}

// ValidateDestinations removes destinations referencing pages that are no
// longer part of the document and returns the number of removals.
func ValidateDestinations(doc *raw.Document) int {
	return NewPass(doc, Options{}).ValidateDestinations()
}

func nm(s string) raw.NameObj { return raw.NameObj{Val: s} }

// resolveDict resolves obj to a Dictionary, abandoning the branch on
// failure.
func (p *Pass) resolveDict(obj raw.Object) (raw.Dictionary, bool) {
	dict, ok := p.doc.Resolve(obj).(raw.Dictionary)
	return dict, ok
}

// maxDepth returns the shared structural recursion cap.
func (p *Pass) maxDepth() int { return p.limits.TreeDepth() }
