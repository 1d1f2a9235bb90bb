package main

import (
	"strings"
	"unicode"
)

// field name casing logic.
//
// callers use camelCase field names; the backend uses snake_case.  the
// transform is purely syntactic and must round-trip for every field name in
// the node catalog (validated at startup).

func backendFieldName(caller string) string {
	var b strings.Builder

	for _, r := range caller {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func callerFieldName(backend string) string {
	var b strings.Builder

	upperNext := false

	for _, r := range backend {
		if r == '_' {
			upperNext = true
			continue
		}

		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func capitalize(s string) string {
	// first character upper, rest unchanged
	if s == "" {
		return s
	}

	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])

	return string(r)
}
