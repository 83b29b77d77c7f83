package config

import (
	"os"
	"strings"
	"unicode"

	"github.com/zclconf/go-cty/cty"
)

// GetEnvObject exposes the process environment as the env object. Names
// that are not valid identifiers have the offending characters replaced
// by underscores.
func GetEnvObject() cty.Value {
	vars := make(map[string]cty.Value)

	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		vars[identifier(key)] = cty.StringVal(value)
	}

	return cty.ObjectVal(vars)
}

func identifier(name string) string {
	if name == "" {
		return "_"
	}

	var b strings.Builder
	for i, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || r == '_'):
			b.WriteRune(r)
		case i > 0 && r < unicode.MaxASCII && (unicode.IsDigit(r) || r == '-'):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
