package sanitize

import "github.com/wudi/pdfarc/ir/raw"

// Classification is the compliance verdict for a single action object.
type Classification int

const (
	// Compliant actions are kept (their /Next chain is still sanitized).
	Compliant Classification = iota
	// Forbidden actions are removed.
	Forbidden
	// Malformed actions lack a required field and are removed.
	Malformed
)

func (c Classification) String() string {
	switch c {
	case Compliant:
		return "Compliant"
	case Forbidden:
		return "Forbidden"
	case Malformed:
		return "Malformed"
	default:
		return "Unknown"
	}
}

// Actions allowed per ISO 19005-2, clause 6.6.1. Anything not listed is
// forbidden (fail closed).
var compliantActions = map[string]struct{}{
	"GoTo":       {},
	"GoToR":      {},
	"GoToE":      {},
	"Thread":     {},
	"URI":        {},
	"Named":      {},
	"SubmitForm": {},
}

// Named actions allowed per ISO 19005-2, clause 6.6.1: "Named actions other
// than NextPage, PrevPage, FirstPage, LastPage shall not be permitted."
var allowedNamedActions = map[string]struct{}{
	"NextPage":  {},
	"PrevPage":  {},
	"FirstPage": {},
	"LastPage":  {},
}

// SubmitForm flag bits (PDF 32000-1, table 237).
const (
	submitFlagXFDF      = 1 << 5 // bit 6: submit as XFDF
	submitFlagSubmitPDF = 1 << 8 // bit 9: submit the entire PDF
)

// Classify maps an action-like object to its compliance verdict. An action
// without the /S discriminant is Malformed; unknown discriminants are
// Forbidden.
func (p *Pass) Classify(actionObj raw.Object) Classification {
	action, ok := p.resolveDict(actionObj)
	if !ok {
		return Malformed
	}

	subtype, ok := p.doc.DictGetName(action, "S")
	if !ok {
		return Malformed
	}
	if _, allowed := compliantActions[subtype]; !allowed {
		return Forbidden
	}

	switch subtype {
	case "SubmitForm":
		// Clause 6.6.1: submission format must be PDF or XFDF.
		flagsObj, ok := p.doc.DictGet(action, "Flags")
		if !ok {
			return Forbidden
		}
		num, ok := flagsObj.(raw.Number)
		if !ok {
			return Forbidden
		}
		flags := num.Int()
		if flags&submitFlagSubmitPDF == 0 && flags&submitFlagXFDF == 0 {
			return Forbidden
		}
	case "Named":
		name, ok := p.doc.DictGetName(action, "N")
		if !ok {
			return Forbidden
		}
		if _, allowed := allowedNamedActions[name]; !allowed {
			return Forbidden
		}
	}
	return Compliant
}
