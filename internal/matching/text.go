package matching

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize canonicalizes an ingredient or product name: surrounding space is
// trimmed, inner runs of whitespace collapse to one space, and letters are
// upper-cased with Portuguese rules.
func Normalize(name string) string {
	collapsed := strings.Join(strings.Fields(name), " ")

	// Casers keep state between calls, so one is built per call.
	return cases.Upper(language.BrazilianPortuguese).String(collapsed)
}

// Similar reports whether either name contains the other, ignoring case and
// whitespace differences. Blank names never match.
//
// This is the only name comparison rule in the system: contract line items,
// recipes and reports all go through it.
func Similar(a, b string) bool {
	fa, fb := fold(a), fold(b)
	if fa == "" || fb == "" {
		return false
	}

	return strings.Contains(fa, fb) || strings.Contains(fb, fa)
}

func fold(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
