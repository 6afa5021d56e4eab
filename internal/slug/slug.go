// Package slug normalizes free-text identifiers into filesystem-safe tokens.
package slug

import "strings"

// Make converts text to a token safe for direct use as a path component.
// It lowercases the input, keeps alphanumerics, '-', '_' and '.', and
// replaces every other rune (including whitespace) with '_'. Empty input
// yields an empty token. Tokens consisting only of dots (".", "..") would
// alias the current or parent directory and also yield an empty token.
func Make(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	token := b.String()
	if strings.Trim(token, ".") == "" {
		return ""
	}
	return token
}

// MakeAll applies Make to every element, dropping entries that sanitize to
// the empty token. The result is never nil.
func MakeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := Make(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
