package strings

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts CamelCase to snake_case
// Handles acronyms properly (HTTPRequest -> http_request)
func ToSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				if unicode.IsLower(prev) {
					result.WriteRune('_')
				} else if i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
					result.WriteRune('_')
				}
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ToIdentifier converts a slug or display name into a lower snake_case
// identifier usable as a table or column name (blog-posts -> blog_posts).
// Runs of characters other than ASCII letters and digits collapse to one
// underscore; a leading digit gets an underscore prefix.
func ToIdentifier(s string) string {
	snake := ToSnakeCase(s)

	var result strings.Builder
	pending := false
	for _, r := range snake {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pending && result.Len() > 0 {
				result.WriteRune('_')
			}
			pending = false
			result.WriteRune(unicode.ToLower(r))
			continue
		}
		pending = true
	}

	id := result.String()
	if id != "" && id[0] >= '0' && id[0] <= '9' {
		id = "_" + id
	}
	return id
}
