package compiler

import "strings"

// goExportedName converts a proto field/message name (lower_snake_case or
// already CamelCase) into an exported Go identifier, the same convention
// protoc-gen-go uses for generated field accessors.
func goExportedName(protoName string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range protoName {
		if r == '_' {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(toUpperASCII(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toUpperASCII(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

// goKeywords is the fixed set of identifiers keywordSafe guards against
// (spec §4.7, "keyword-safe naming"): Go's reserved words, plus the
// predeclared identifiers most likely to shadow something a caller expects
// to still refer to the builtin.
var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
	"true": true, "false": true, "iota": true, "nil": true,
	"len": true, "cap": true, "new": true, "make": true, "append": true, "copy": true,
}

// keywordSafe appends an underscore to name if it exactly collides with a
// reserved identifier.
func keywordSafe(name string) string {
	if goKeywords[name] {
		return name + "_"
	}
	return name
}
