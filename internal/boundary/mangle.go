package boundary

import (
	"fmt"
	"strings"
)

// mangle turns a fully qualified host name into an identifier fragment.
// ASCII letters and digits pass through, '_' doubles, '.' becomes "_d",
// any other byte becomes "_x" plus two hex digits. Doubling '_' keeps the
// scheme injective: distinct resolved names never mangle to one fragment.
func mangle(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '_':
			b.WriteString("__")
		case c == '.':
			b.WriteString("_d")
		default:
			fmt.Fprintf(&b, "_x%02x", c)
		}
	}
	return b.String()
}

// isIdent reports whether s is usable as a foreign identifier.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// cDecl joins a foreign type and a declared name, omitting the space
// after pointer types so "void *" renders as "void *data".
func cDecl(typ, name string) string {
	if strings.HasSuffix(typ, "*") || strings.HasSuffix(typ, " ") {
		return typ + name
	}
	return typ + " " + name
}
