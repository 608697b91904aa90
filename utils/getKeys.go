package utils

import (
	"cmp"
	"slices"
)

// GetKeys returns the keys of m in ascending order, never nil.
func GetKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
