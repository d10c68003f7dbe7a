// Package casing rewrites the object keys of decoded JSON values between
// camelCase and snake_case. Values are never touched, only keys.
package casing

import (
	"log/slog"
	"strings"
)

// MaxDepth is the deepest nesting level that is converted. Anything below it
// is returned as-is.
const MaxDepth = 10

// ToSnakeCase returns a copy of v with every object key rewritten to
// snake_case. The input is not modified.
func ToSnakeCase(v any) any {
	return convert(v, CamelToSnake, 0)
}

// ToCamelCase returns a copy of v with every object key rewritten to
// camelCase. The input is not modified.
func ToCamelCase(v any) any {
	return convert(v, SnakeToCamel, 0)
}

func convert(v any, rename func(string) string, depth int) any {
	if depth > MaxDepth {
		slog.Warn("casing: depth limit exceeded, subtree left unconverted",
			"max_depth", MaxDepth,
		)
		return v
	}

	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[rename(k)] = convert(val, rename, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = convert(val, rename, depth+1)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, m := range t {
			// convert always returns a map for a map input.
			out[i], _ = convert(m, rename, depth+1).(map[string]any)
		}
		return out
	default:
		return v
	}
}

// CamelToSnake replaces every uppercase ASCII letter with '_' followed by its
// lowercase form: "firstIndexInPage" becomes "first_index_in_page".
func CamelToSnake(s string) string {
	if !strings.ContainsFunc(s, isUpper) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUpper(rune(c)) {
			b.WriteByte('_')
			b.WriteByte(c + ('a' - 'A'))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// SnakeToCamel removes every '_' that is followed by a lowercase ASCII
// letter and uppercases that letter: "first_index_in_page" becomes
// "firstIndexInPage". Other underscores are kept.
func SnakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' && i+1 < len(s) && isLower(rune(s[i+1])) {
			b.WriteByte(s[i+1] - ('a' - 'A'))
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
