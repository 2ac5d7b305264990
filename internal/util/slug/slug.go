// Package slug derives URL-safe identifiers from display names and
// disambiguates them with numeric suffixes.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Make converts a display name into a lower-case slug: accents are
// stripped, runs of other characters become a single hyphen.
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// Suffix returns the numeric suffix of slug relative to base. An exact
// (case-insensitive) match counts as 1; "base-N" yields N. Anything else
// reports false.
func Suffix(base, slug string) (int, bool) {
	base, slug = strings.ToLower(base), strings.ToLower(slug)
	if slug == base {
		return 1, true
	}

	rest, ok := strings.CutPrefix(slug, base+"-")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// Next returns the first free slug for base given the slugs already taken
// that share its prefix: base itself when nothing collides, otherwise
// base-(max suffix + 1).
func Next(base string, taken []string) string {
	highest := 0
	for _, existing := range taken {
		if n, ok := Suffix(base, existing); ok && n > highest {
			highest = n
		}
	}

	if highest == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(highest+1)
}
