package synth

// Helpers for pulling loosely-typed fields out of generated JSON objects.
// Every accessor tolerates absence and wrong types; bounds are clamped
// rather than rejected.

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v into [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Num reads a numeric field, returning def when absent or non-numeric.
func Num(obj map[string]interface{}, key string, def float64) float64 {
	if v, ok := obj[key].(float64); ok {
		return v
	}
	return def
}

// Str reads a string field, returning def when absent.
func Str(obj map[string]interface{}, key, def string) string {
	if v, ok := obj[key].(string); ok && v != "" {
		return v
	}
	return def
}

// StrSlice reads an array of strings, dropping non-string entries.
// Returns nil when the field is absent or not an array.
func StrSlice(obj map[string]interface{}, key string) []string {
	raw, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ObjSlice reads an array of JSON objects, dropping non-object entries.
func ObjSlice(obj map[string]interface{}, key string) []map[string]interface{} {
	raw, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// Obj reads a nested JSON object field.
func Obj(obj map[string]interface{}, key string) (map[string]interface{}, bool) {
	m, ok := obj[key].(map[string]interface{})
	return m, ok
}
