// Package detach produces deep copies of records that share no memory with
// the database, so they can cross goroutines freely.
//
// A record type takes part by implementing Detachable for itself, usually
// through code written by cmd/detachgen. Values that do not implement it
// (strings, numbers, times, plain structs) are copied as they are.
package detach

type Detachable[T any] interface {
	Detached() T
}

// Value detaches v when it knows how to, otherwise returns it unchanged.
// Generated Detached methods return nil for a nil receiver, so nil pointers
// are safe here.
func Value[T any](v T) T {
	if d, ok := any(v).(Detachable[T]); ok {
		return d.Detached()
	}
	return v
}

// Field detaches a value held directly in a struct field. Types whose
// Detached method has a pointer receiver are copied through it, so the
// result shares no slices or maps with *v. Other types go through Value.
func Field[T any](v *T) T {
	if d, ok := any(v).(Detachable[*T]); ok {
		if c := d.Detached(); c != nil {
			return *c
		}
	}
	return Value(*v)
}

// Slice detaches every element, keeping order. A nil slice stays nil.
func Slice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	result := make([]T, len(s))
	for i, v := range s {
		result[i] = Value(v)
	}
	return result
}

func Set[T comparable](s map[T]struct{}) map[T]struct{} {
	if s == nil {
		return nil
	}
	result := make(map[T]struct{}, len(s))
	for v := range s {
		result[Value(v)] = struct{}{}
	}
	return result
}

// Map detaches the values; keys are copied as they are.
func Map[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	result := make(map[K]V, len(m))
	for k, v := range m {
		result[k] = Value(v)
	}
	return result
}
