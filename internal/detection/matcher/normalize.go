package matcher

import "strings"

// NormalizePhone strips everything but digits so "+1 (555) 010-2222" and
// "15550102222" compare equal.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeToken lower-cases and strips non-alphanumeric characters before
// address component comparison.
func normalizeToken(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokensEqual reports whether both values normalize to the same non-empty
// token. Two missing components never count as agreement.
func tokensEqual(a, b string) bool {
	na, nb := normalizeToken(a), normalizeToken(b)
	return na != "" && na == nb
}
