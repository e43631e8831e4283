// Package symbol provides the symbol-name transforms applied to collapsed frames.
package symbol

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Demangle returns the demangled form of a C++ or Rust symbol.
// changed is false when name is not a recognized mangled form, in which case
// the caller should keep using its original string.
func Demangle(name string) (out string, changed bool) {
	out = demangle.Filter(name)
	if out == name {
		return name, false
	}
	return out, true
}

const rustHashLen = 16

// rustEscapes are the `$..$` sequences left behind when a Rust symbol is only
// partially demangled.
var rustEscapes = []struct {
	escaped   string
	unescaped string
}{
	{"$SP$", "@"},
	{"$BP$", "*"},
	{"$RF$", "&"},
	{"$LT$", "<"},
	{"$GT$", ">"},
	{"$LP$", "("},
	{"$RP$", ")"},
	{"$C$", ","},
	{"$u7e$", "~"},
	{"$u20$", " "},
	{"$u27$", "'"},
	{"$u5b$", "["},
	{"$u5d$", "]"},
	{"$u7b$", "{"},
	{"$u7d$", "}"},
	{"$u3b$", ";"},
	{"$u2b$", "+"},
	{"$u22$", "\""},
}

// FixRust repairs Rust symbols that DTrace demangled only partially, e.g.
// `_$LT$std..io..Stdout$u20$as$u20$std..io..Write$GT$::write::h0123456789abcdef`.
// Symbols without a legacy Rust hash suffix are returned unchanged.
func FixRust(name string) (out string, changed bool) {
	if !hasRustHash(name) {
		return name, false
	}
	if !strings.Contains(name, "$") && !strings.Contains(name, "..") {
		return name, false
	}

	rest := name
	if strings.HasPrefix(rest, "_$") {
		rest = rest[1:]
	}

	var b strings.Builder
	b.Grow(len(rest))
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			if len(rest) > 1 && rest[1] == '.' {
				b.WriteString("::")
				rest = rest[2:]
			} else {
				b.WriteByte('.')
				rest = rest[1:]
			}
		case '$':
			matched := false
			for _, e := range rustEscapes {
				if strings.HasPrefix(rest, e.escaped) {
					b.WriteString(e.unescaped)
					rest = rest[len(e.escaped):]
					matched = true
					break
				}
			}
			if !matched {
				// unknown escape, keep the remainder verbatim
				b.WriteString(rest)
				rest = ""
			}
		default:
			i := strings.IndexAny(rest, "$.")
			if i < 0 {
				i = len(rest)
			}
			b.WriteString(rest[:i])
			rest = rest[i:]
		}
	}

	out = b.String()
	return out, out != name
}

// hasRustHash reports whether name ends in `::h` followed by 16 hex digits.
func hasRustHash(name string) bool {
	n := len(name)
	if n < rustHashLen+3 {
		return false
	}
	if name[n-rustHashLen-3:n-rustHashLen] != "::h" {
		return false
	}
	for i := n - rustHashLen; i < n; i++ {
		c := name[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
