package salesforce

import "strings"

// QuoteString returns s as a single-quoted SOQL string literal with quote and
// backslash characters escaped. Caller-supplied values must always pass
// through here before being placed in a WHERE clause.
func QuoteString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + replacer.Replace(s) + "'"
}

// Characters the SOSL FIND grammar treats as operators.
const soslReserved = `?&|!{}[]()^~*:\"'+-`

// EscapeSOSL backslash-escapes SOSL reserved characters in a user-supplied
// search term.
func EscapeSOSL(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(soslReserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
