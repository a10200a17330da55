// Package match resolves extracted product data onto existing catalog
// products: exact GTIN, fingerprint identity, then fuzzy name matching.
package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// typeSuffixes are the marketing tails that differ between retailers for
// the same bottle. Longest first so compound suffixes strip fully.
var typeSuffixes = []string{
	"single malt scotch whisky",
	"blended scotch whisky",
	"kentucky straight bourbon whiskey",
	"straight bourbon whiskey",
	"single malt whisky",
	"single malt whiskey",
	"single pot still irish whiskey",
	"irish whiskey",
	"scotch whisky",
	"bourbon whiskey",
	"rye whiskey",
	"tennessee whiskey",
	"whisky",
	"whiskey",
	"bourbon",
	"port wine",
	"porto",
	"port",
}

var (
	agePattern        = regexp.MustCompile(`\b(\d{1,2})[\s-]*(?:years?[\s-]*old|yrs?[\s-]*old|years?|yo)\b`)
	agedPattern       = regexp.MustCompile(`\baged\s+(\d{1,2})\s*(?:years?)?\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	punctPattern      = regexp.MustCompile(`['".,()!]`)
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName folds a display name down to its comparable core:
// lowercase, accents stripped, age phrases reduced to the bare number,
// marketing type suffixes removed, whitespace collapsed.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if folded, _, err := transform.String(deaccent, s); err == nil {
		s = folded
	}
	s = punctPattern.ReplaceAllString(s, "")
	s = agedPattern.ReplaceAllString(s, "$1")
	s = agePattern.ReplaceAllString(s, "$1")
	for _, suffix := range typeSuffixes {
		s = strings.TrimSuffix(strings.TrimSpace(s), suffix)
	}
	return whitespacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
}

// articles never count as a name's significant word.
var articles = map[string]bool{"the": true, "a": true, "an": true}

// FirstSignificantWord returns the first word of the normalized name that
// is not an article, or "" for empty names.
func FirstSignificantWord(name string) string {
	for _, w := range strings.Fields(NormalizeName(name)) {
		if !articles[w] {
			return w
		}
	}
	return ""
}
