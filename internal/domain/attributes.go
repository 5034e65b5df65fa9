package domain

import "maps"

// Attributes is the open-ended part of a record: caller-supplied fields that
// are stored and returned as-is, without a fixed schema.
type Attributes map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	maps.Copy(out, a)
	return out
}

// Merge returns a new map with the entries of each argument applied in order,
// later maps winning on key collisions.
func Merge(layers ...Attributes) Attributes {
	out := make(Attributes)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// Without returns a copy of a with the given keys removed.
func (a Attributes) Without(keys ...string) Attributes {
	out := a.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// String returns the value at key if it is a non-empty string.
func (a Attributes) String(key string) string {
	s, _ := a[key].(string)
	return s
}
