package config

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/zclconf/go-cty/cty"
)

// GetStatusCodeObject builds the httpstatus object: every status known to
// net/http under its camel-cased text (httpstatus.NotFound = 404), plus
// by_code mapping "404" back to "NotFound".
func GetStatusCodeObject() cty.Value {
	codes := make(map[string]cty.Value)
	names := make(map[string]cty.Value)

	for code := 100; code < 600; code++ {
		text := http.StatusText(code)
		if text == "" {
			continue
		}
		name := statusName(text)
		codes[name] = cty.NumberIntVal(int64(code))
		names[strconv.Itoa(code)] = cty.StringVal(name)
	}

	codes["by_code"] = cty.MapVal(names)
	return cty.ObjectVal(codes)
}

// statusName turns "Request URI Too Long" into "RequestURITooLong" and
// "I'm a teapot" into "ImATeapot".
func statusName(text string) string {
	var b strings.Builder
	upper := true
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upper {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
			upper = false
		case r == '\'':
		default:
			upper = true
		}
	}
	return b.String()
}
