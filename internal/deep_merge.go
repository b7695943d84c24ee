// internal/deep_merge.go
// -----------------------
// Nested-mapping merge for SOAP message construction. Per-operation default
// message templates are shared tables; DeepMerge copies the template before
// overlaying caller overrides so one call can never mutate the table another
// call is reading.
package internal

// DeepMerge returns a deep copy of base with overlay's keys merged in.
// Nested maps merge recursively; any other overlay value replaces the base
// value wholesale. Neither input is mutated.
func DeepMerge(base, overlay map[string]any) map[string]any {
	out := DeepCopy(base)
	for k, v := range overlay {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := out[k].(map[string]any); ok {
				out[k] = DeepMerge(existing, sub)
				continue
			}
		}
		out[k] = deepCopyValue(v)
	}
	return out
}

// DeepCopy returns a copy of m with all nested maps and slices copied.
func DeepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return DeepCopy(tv)
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
