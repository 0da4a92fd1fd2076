package reactive

import "fmt"

// Value reads key from obj as a T. The second result is false when the key
// is missing or holds another type.
func Value[T any](obj Object, key string) (T, bool) {
	v, ok := obj.Get(key).(T)
	return v, ok
}

// Number reads a numeric field as float64. JSON-decoded props and values
// written as any Go integer or float type are accepted.
func Number(obj Object, key string) (float64, bool) {
	switch n := obj.Get(key).(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Nested returns the nested object stored under key, keeping guards.
func Nested(obj Object, key string) (Object, bool) {
	o, ok := obj.Get(key).(Object)
	return o, ok
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
