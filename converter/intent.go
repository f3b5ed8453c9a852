package converter

import (
	"github.com/wudi/pdfarc/cmm"
	"github.com/wudi/pdfarc/ir/raw"
)

// ensureOutputIntent adds an sRGB archival output intent when the catalog
// has none. Documents with an existing non-empty /OutputIntents array keep
// theirs. Returns whether an intent was added.
func ensureOutputIntent(doc *raw.Document) bool {
	catalog := doc.Catalog()
	if catalog == nil {
		return false
	}
	if intents, ok := doc.DictGetArray(catalog, "OutputIntents"); ok && intents.Len() > 0 {
		return false
	}

	profile := cmm.SRGB()
	profileDict := raw.Dict()
	profileDict.Set(raw.NameLiteral("N"), raw.NumberInt(int64(profile.Components())))
	profileRef := doc.Register(raw.NewStream(profileDict, profile.Data()))

	intent := raw.Dict()
	intent.Set(raw.NameLiteral("Type"), raw.NameLiteral("OutputIntent"))
	intent.Set(raw.NameLiteral("S"), raw.NameLiteral("GTS_PDFA1"))
	intent.Set(raw.NameLiteral("OutputConditionIdentifier"), raw.Str([]byte("sRGB")))
	intent.Set(raw.NameLiteral("RegistryName"), raw.Str([]byte("http://www.color.org")))
	intent.Set(raw.NameLiteral("Info"), raw.Str([]byte(profile.Name())))
	intent.Set(raw.NameLiteral("DestOutputProfile"), profileRef)

	catalog.Set(raw.NameLiteral("OutputIntents"), raw.NewArray(doc.Register(intent)))
	return true
}
