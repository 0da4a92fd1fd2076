package reactive

import "fmt"

// WriteGuardError is returned by Set on a guarded view.
type WriteGuardError struct {
	// Target is "data" or "store".
	Target string
	Key    string
}

func (e *WriteGuardError) Error() string {
	return fmt.Sprintf("reactive: %s writes are not allowed within effects by default (key %q); set AllowStateMutations to enable them", e.Target, e.Key)
}

type guarded struct {
	target string
	obj    Object
}

// Guard returns a read-only view of obj. Nested objects read through the
// view are guarded as well. Guarding a guarded view returns it unchanged.
func Guard(target string, obj Object) Object {
	if obj == nil {
		return nil
	}
	if g, ok := obj.(*guarded); ok {
		return g
	}
	return &guarded{target: target, obj: obj}
}

// Raw unwraps a guarded view. Other objects are returned unchanged.
func Raw(obj Object) Object {
	if g, ok := obj.(*guarded); ok {
		return g.obj
	}
	return obj
}

// IsGuarded reports whether obj is a guarded view.
func IsGuarded(obj Object) bool {
	_, ok := obj.(*guarded)
	return ok
}

func (g *guarded) Get(key string) any {
	v := g.obj.Get(key)
	if o, ok := v.(Object); ok {
		return Guard(g.target, o)
	}
	return v
}

func (g *guarded) Set(key string, _ any) error {
	return &WriteGuardError{Target: g.target, Key: key}
}

func (g *guarded) Has(key string) bool { return g.obj.Has(key) }

func (g *guarded) Keys() []string { return g.obj.Keys() }

func (g *guarded) MarshalJSON() ([]byte, error) {
	if m, ok := g.obj.(interface{ MarshalJSON() ([]byte, error) }); ok {
		return m.MarshalJSON()
	}
	return []byte("null"), nil
}
