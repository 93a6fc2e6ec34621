// CLAUDE:SUMMARY Static canonical field table: raw/alternate key spellings to one canonical key, and reverse alias lookup.
// CLAUDE:EXPORTS Canonicalize, AliasesOf, IsAlias, IsArrayFacet, IsTransient, ArrayFacets, WithAliases
// Package fields holds the canonical key table for product records.
//
// Scrapers written at different times spelled the same attribute differently
// ("color", "colors", "performace_enchancments"). Every other package looks
// fields up through this table so that data stored under an old spelling is
// never mistaken for missing data.
package fields

// Canonical keys of a product record.
const (
	Code                    = "code"
	SurfaceGroup            = "surface-group"
	Name                    = "name"
	ProductLink             = "product-link"
	DesignGroups            = "design_groups"
	Species                 = "species"
	Cut                     = "cut"
	Match                   = "match"
	Shade                   = "shade"
	Colors                  = "colors"
	DesignCollections       = "design_collections"
	PerformanceEnhancements = "performance_enhancements"
	SpecialtyFeatures       = "specialty_features"
	Finish                  = "finish"
	Description             = "description"
	NoRepeat                = "no_repeat"
	TextureImageURL         = "texture_image_url"
	TextureImagePixels      = "texture_image_pixels"
	TextureScale            = "texture_scale"
)

// Fragment-only keys. Producers emit them as evidence; they are stripped
// before a fragment is merged into the index.
const (
	SKU              = "sku"
	TextureScaleHint = "texture_scale_hint"
)

// IsTransient reports whether key is a fragment-only evidence key.
func IsTransient(key string) bool {
	return key == SKU || key == TextureScaleHint
}

// arrayFacets lists the set-of-strings facets in their display order.
var arrayFacets = []string{
	DesignGroups,
	Species,
	Cut,
	Match,
	Shade,
	Colors,
	DesignCollections,
	PerformanceEnhancements,
	SpecialtyFeatures,
}

// aliases maps a canonical key to its known alternate spellings.
var aliases = map[string][]string{
	DesignGroups:            {"design_group", "design-groups", "group"},
	Species:                 {"specie", "wood_species"},
	Cut:                     {"cuts"},
	Match:                   {"matches", "matching"},
	Shade:                   {"shades"},
	Colors:                  {"color", "colour", "colours"},
	DesignCollections:       {"design_collection", "collections", "collection"},
	PerformanceEnhancements: {"performace_enchancments", "performance_enchancments", "performace_enhancements", "performance_enhancement"},
	SpecialtyFeatures:       {"speciality_features", "specialty_feature", "special_features"},

	SurfaceGroup:       {"surface_group"},
	ProductLink:        {"product_link", "link", "url"},
	NoRepeat:           {"no-repeat", "norepeat"},
	TextureImageURL:    {"image_url", "image"},
	TextureImagePixels: {"image_pixels"},
	TextureScale:       {"scale"},
}

// canonicalOf is the reverse of aliases, built once at init.
var canonicalOf map[string]string

var arrayFacetSet map[string]bool

func init() {
	canonicalOf = make(map[string]string)
	for canon, alts := range aliases {
		canonicalOf[canon] = canon
		for _, a := range alts {
			canonicalOf[a] = canon
		}
	}
	arrayFacetSet = make(map[string]bool, len(arrayFacets))
	for _, f := range arrayFacets {
		arrayFacetSet[f] = true
	}
}

// Canonicalize returns the canonical key for raw. Unknown keys pass through
// unchanged so new fields are preserved rather than dropped.
func Canonicalize(raw string) string {
	if c, ok := canonicalOf[raw]; ok {
		return c
	}
	return raw
}

// AliasesOf returns every raw key that maps to the canonical form of key,
// canonical key first. An unknown key yields a one-element slice.
func AliasesOf(key string) []string {
	canon := Canonicalize(key)
	alts := aliases[canon]
	out := make([]string, 0, len(alts)+1)
	out = append(out, canon)
	return append(out, alts...)
}

// IsAlias reports whether key is a known non-canonical spelling.
func IsAlias(key string) bool {
	c, ok := canonicalOf[key]
	return ok && c != key
}

// IsArrayFacet reports whether key (in any spelling) is a set-of-strings facet.
func IsArrayFacet(key string) bool {
	return arrayFacetSet[Canonicalize(key)]
}

// ArrayFacets returns the canonical set-of-strings facets.
func ArrayFacets() []string {
	out := make([]string, len(arrayFacets))
	copy(out, arrayFacets)
	return out
}

// WithAliases returns the canonical keys that have at least one alias.
func WithAliases() []string {
	out := make([]string, 0, len(aliases))
	out = append(out, arrayFacets...)
	return append(out, SurfaceGroup, ProductLink, NoRepeat, TextureImageURL, TextureImagePixels, TextureScale)
}
