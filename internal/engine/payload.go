package engine

import (
	"strconv"
	"strings"
)

// Lookup walks a dotted path through an untyped JSON payload. Numeric
// segments index into arrays. It never panics; any missing or mis-typed
// segment yields (nil, false).
func Lookup(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// lookupFloat tries each path in order and returns the first value coercible
// to float64.
func lookupFloat(data map[string]any, paths ...string) (float64, bool) {
	for _, path := range paths {
		v, ok := Lookup(data, path)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// lookupString tries each path in order and returns the first present value
// coerced to a string. Missing values yield "".
func lookupString(data map[string]any, paths ...string) string {
	for _, path := range paths {
		v, ok := Lookup(data, path)
		if !ok || v == nil {
			continue
		}
		if s := coerceString(v); s != "" {
			return s
		}
	}
	return ""
}

func coerceString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case bool:
		return strconv.FormatBool(n)
	default:
		return ""
	}
}
