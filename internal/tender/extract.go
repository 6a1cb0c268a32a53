package tender

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// RawRecord is one lot record exactly as decoded from the search API JSON.
// Values are nil, scalars, []any, or map[string]any keyed by language code.
type RawRecord = map[string]any

// LanguagePriority is the order in which multilingual values are resolved.
var LanguagePriority = []string{"eng", "dan", "deu", "swe", "nor", "fra"}

// Extract resolves a raw field value to one representative scalar.
//
// Falsy scalars (0, "", false), empty sequences and empty mappings all
// resolve to def. A genuine zero or false is therefore indistinguishable
// from an absent field; callers must not rely on Extract to tell them apart.
func Extract(raw any, def any) any {
	switch v := raw.(type) {
	case nil:
		return def
	case map[string]any:
		if len(v) == 0 {
			return def
		}
		for _, lang := range LanguagePriority {
			if val, ok := v[lang]; ok {
				return pickLanguageValue(val, def)
			}
		}
		// JSON objects decode unordered, so "first" means first by key.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return pickLanguageValue(v[keys[0]], def)
	case []any:
		if len(v) == 0 {
			return def
		}
		return firstElement(v[0], def)
	default:
		if truthy(v) {
			return v
		}
		return def
	}
}

func pickLanguageValue(val any, def any) any {
	if list, ok := val.([]any); ok && len(list) > 0 {
		return firstElement(list[0], def)
	}
	return Extract(val, def)
}

// firstElement returns a sequence's first element as-is when it is a scalar,
// including falsy scalars. Nested containers are resolved recursively.
func firstElement(v any, def any) any {
	switch v.(type) {
	case nil:
		return def
	case map[string]any, []any:
		return Extract(v, def)
	default:
		return v
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// ExtractString resolves raw to a string, or nil when nothing usable is present.
func ExtractString(raw any) *string {
	v := Extract(raw, nil)
	if v == nil {
		return nil
	}
	s := scalarString(v)
	return &s
}

// ExtractStringOr is ExtractString with a fallback for missing values.
func ExtractStringOr(raw any, def string) string {
	if s := ExtractString(raw); s != nil && *s != "" {
		return *s
	}
	return def
}

// ExtractInt resolves raw to an integer, or nil when missing or non-numeric.
func ExtractInt(raw any) *int {
	v := Extract(raw, nil)
	if v == nil {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	i := int(f)
	return &i
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, ",", "")), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// flattenStrings collects every non-empty scalar inside raw, in order.
// Multilingual maps contribute their values sorted by language key.
func flattenStrings(raw any) []string {
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case nil:
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k])
			}
		default:
			if s := strings.TrimSpace(scalarString(t)); s != "" {
				out = append(out, s)
			}
		}
	}
	walk(raw)
	return out
}

func strPtr(s string) *string { return &s }
