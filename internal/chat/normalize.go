// internal/chat/normalize.go
package chat

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Normalize repairs the encoding of text and collapses all whitespace runs to
// single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(fixEncoding(s)), " ")
}

// fixEncoding returns s unchanged when it is valid UTF-8. Otherwise it tries to
// read s as Windows-1251, and as a last resort drops the invalid bytes.
func fixEncoding(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	fixed, err := charmap.Windows1251.NewDecoder().String(s)
	if err == nil && utf8.ValidString(fixed) {
		return fixed
	}
	return strings.ToValidUTF8(s, "")
}
