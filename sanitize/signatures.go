package sanitize

import (
	encasn1 "encoding/asn1"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/wudi/pdfarc/ir/raw"
	"github.com/wudi/pdfarc/observability"
)

// Digital signature neutralization. Conversion rewrites document bytes, so
// existing signatures become cryptographically invalid anyway; leaving the
// structures in place trips digest-related validation (notably rule 6.4.3).
// Signature values are removed from signature fields and the signature
// dictionaries themselves are stripped of their signature-specific keys.

// SignatureStats reports what NeutralizeSignatures found and changed.
type SignatureStats struct {
	Found        int // signature dictionaries discovered
	Removed      int // discrete removal/neutralization operations
	ValidCMS     int // signatures whose /Contents held a well-formed CMS structure
	SigFlagFixed bool
}

var signatureKeys = []string{
	"Type", "Filter", "SubFilter", "ByteRange", "Contents", "Reference",
	"Cert", "Prop_Build", "M", "Name", "Reason", "Location", "ContactInfo", "R",
}

// id-signedData, the content type of a CMS/PKCS#7 detached signature.
var oidSignedData = encasn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}

// NeutralizeSignatures removes signature values from signature fields
// (/FT /Sig with /V), drops /Perms signature references, neutralizes every
// signature dictionary found in the document, and clears the
// SignaturesExist bit of AcroForm /SigFlags.
func (p *Pass) NeutralizeSignatures() SignatureStats {
	var stats SignatureStats
	catalog := p.doc.Catalog()
	if catalog == nil {
		return stats
	}

	visitedFields := make(map[raw.ObjectRef]struct{})
	visitedSigs := make(map[raw.ObjectRef]struct{})
	var sigDicts []raw.Dictionary

	collect := func(obj raw.Object) {
		resolved, ref, hasRef := p.doc.ResolveWithRef(obj)
		dict, ok := resolved.(raw.Dictionary)
		if !ok || !p.isSignatureDictionary(dict) {
			return
		}
		if hasRef && !ref.IsZero() {
			if _, seen := visitedSigs[ref]; seen {
				return
			}
			visitedSigs[ref] = struct{}{}
		}
		sigDicts = append(sigDicts, dict)
	}

	acroform, hasForm := p.doc.DictGetDict(catalog, "AcroForm")

	// Signature fields from the field tree.
	var sigFields []raw.Dictionary
	if hasForm {
		if fields, ok := p.doc.DictGetArray(acroform, "Fields"); ok {
			sigFields = p.collectSignatureFields(fields, visitedFields, 0)
		}
	}

	// Page annotations may carry signature widgets missing from /Fields.
	for _, pageRef := range p.doc.Pages() {
		obj, ok := p.doc.ResolveRef(pageRef)
		if !ok {
			continue
		}
		page, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		annots, ok := p.doc.DictGetArray(page, "Annots")
		if !ok {
			continue
		}
		for i := 0; i < annots.Len(); i++ {
			item, _ := annots.Get(i)
			resolved, ref, hasRef := p.doc.ResolveWithRef(item)
			annot, ok := resolved.(raw.Dictionary)
			if !ok {
				continue
			}
			if hasRef && !ref.IsZero() {
				if _, seen := visitedFields[ref]; seen {
					continue
				}
				visitedFields[ref] = struct{}{}
			}
			if ft, _ := p.doc.DictGetName(annot, "FT"); ft == "Sig" {
				if _, ok := annot.Get(nm("V")); ok {
					sigFields = append(sigFields, annot)
				}
			}
		}
	}

	for _, field := range sigFields {
		if v, ok := field.Get(nm("V")); ok {
			collect(v)
			field.Delete(nm("V"))
			stats.Removed++
		}
	}

	// Catalog /Perms signature references.
	if perms, ok := p.doc.DictGetDict(catalog, "Perms"); ok {
		for _, key := range []string{"DocMDP", "UR", "UR3"} {
			if ref, ok := perms.Get(nm(key)); ok {
				collect(ref)
				perms.Delete(nm(key))
				stats.Removed++
			}
		}
		if perms.Len() == 0 {
			catalog.Delete(nm("Perms"))
		}
	}

	// Arena scan catches orphaned signature dictionaries that tools may
	// still validate even when unreferenced.
	for ref := range p.doc.Objects {
		collect(raw.Ref(ref.Num, ref.Gen))
	}

	stats.Found = len(sigDicts)
	for _, sig := range sigDicts {
		if p.inspectCMS(sig) {
			stats.ValidCMS++
		}
		if p.neutralizeSignatureDict(sig) {
			stats.Removed++
		}
	}

	// Clear SigFlags bit 1 (SignaturesExist).
	if hasForm {
		if flagsObj, ok := p.doc.DictGet(acroform, "SigFlags"); ok {
			if num, ok := flagsObj.(raw.Number); ok {
				cur := num.Int()
				next := cur &^ 1
				if next != cur {
					if next == 0 {
						acroform.Delete(nm("SigFlags"))
					} else {
						acroform.Set(nm("SigFlags"), raw.NumberInt(next))
					}
					stats.SigFlagFixed = true
				}
			}
		}
	}

	if stats.Found > 0 {
		p.log.Warn("digital signatures neutralized for archival conversion",
			observability.Int("found", stats.Found),
			observability.Int("valid_cms", stats.ValidCMS))
	}
	return stats
}

func (p *Pass) collectSignatureFields(fields raw.Array, visited map[raw.ObjectRef]struct{}, depth int) []raw.Dictionary {
	if depth > p.maxDepth() {
		return nil
	}
	var out []raw.Dictionary
	for i := 0; i < fields.Len(); i++ {
		item, _ := fields.Get(i)
		resolved, ref, hasRef := p.doc.ResolveWithRef(item)
		field, ok := resolved.(raw.Dictionary)
		if !ok {
			continue
		}
		if hasRef && !ref.IsZero() {
			if _, seen := visited[ref]; seen {
				continue
			}
			visited[ref] = struct{}{}
		}
		if ft, _ := p.doc.DictGetName(field, "FT"); ft == "Sig" {
			if _, ok := field.Get(nm("V")); ok {
				out = append(out, field)
			}
		}
		if kids, ok := p.doc.DictGetArray(field, "Kids"); ok {
			out = append(out, p.collectSignatureFields(kids, visited, depth+1)...)
		}
	}
	return out
}

// isSignatureDictionary recognizes signature dictionaries either by
// /Type /Sig or by the combination of signature-specific markers;
// /ByteRange alone is not enough to avoid accidental matches.
func (p *Pass) isSignatureDictionary(dict raw.Dictionary) bool {
	if t, _ := p.doc.DictGetName(dict, "Type"); t == "Sig" {
		return true
	}
	_, hasByteRange := dict.Get(nm("ByteRange"))
	_, hasFilter := dict.Get(nm("Filter"))
	_, hasSubFilter := dict.Get(nm("SubFilter"))
	_, hasContents := dict.Get(nm("Contents"))
	if hasByteRange && (hasFilter || hasSubFilter || hasContents) {
		return true
	}
	return hasContents && hasSubFilter
}

func (p *Pass) neutralizeSignatureDict(sig raw.Dictionary) bool {
	changed := false
	for _, key := range signatureKeys {
		if _, ok := sig.Get(nm(key)); ok {
			sig.Delete(nm(key))
			changed = true
		}
	}
	return changed
}

// inspectCMS reports whether the signature's /Contents holds a well-formed
// CMS ContentInfo with the signedData content type.
func (p *Pass) inspectCMS(sig raw.Dictionary) bool {
	contents, ok := p.doc.DictGet(sig, "Contents")
	if !ok {
		return false
	}
	str, ok := contents.(raw.String)
	if !ok {
		return false
	}
	der := cryptobyte.String(str.Value())
	var contentInfo cryptobyte.String
	if !der.ReadASN1(&contentInfo, casn1.SEQUENCE) {
		return false
	}
	var oid encasn1.ObjectIdentifier
	if !contentInfo.ReadASN1ObjectIdentifier(&oid) {
		return false
	}
	return oid.Equal(oidSignedData)
}
