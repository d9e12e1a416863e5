package dynamic

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{(\w+)\}|\$\((\w+)\)|\$([A-Za-z_]\w*)`)

// Substitute replaces ${name}, $(name) and $name with escape(vars[name]).
// Unresolved names are left verbatim.
func Substitute(tmpl string, vars map[string]string, escape func(string) string) string {
	if escape == nil {
		escape = func(s string) string { return s }
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		name := sub[1] + sub[2] + sub[3]
		v, ok := vars[name]
		if !ok {
			return m
		}
		return escape(v)
	})
}

// jsonEscape escapes s for use inside a quoted GraphQL or JSON string
func jsonEscape(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return strings.TrimSuffix(strings.TrimPrefix(string(b), `"`), `"`)
}

func queryEscape(s string) string {
	return url.QueryEscape(s)
}

func pathEscape(s string) string {
	return url.PathEscape(s)
}

// substituteREST escapes placeholders by their position in the template
func substituteREST(tmpl string, vars map[string]string) string {
	path, query, ok := strings.Cut(tmpl, "?")
	out := Substitute(path, vars, pathEscape)
	if ok {
		out += "?" + Substitute(query, vars, queryEscape)
	}
	return out
}
