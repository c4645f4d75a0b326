// Package sliceutils provides utility functions for slices.
package sliceutils

// Difference returns a slice with the elements that are in a but not in b.
func Difference[T comparable](a, b []T) []T {
	setB := make(map[T]struct{}, len(b))
	for _, item := range b {
		setB[item] = struct{}{}
	}

	var diff []T
	for _, item := range a {
		if _, found := setB[item]; !found {
			diff = append(diff, item)
		}
	}
	return diff
}

// Intersection returns a slice with the elements that are in both a and b.
func Intersection[T comparable](a, b []T) []T {
	setB := make(map[T]struct{}, len(b))
	for _, item := range b {
		setB[item] = struct{}{}
	}

	var intersection []T
	for _, item := range a {
		if _, found := setB[item]; found {
			intersection = append(intersection, item)
		}
	}
	return intersection
}

// Map returns a new slice with f applied to every element of a.
func Map[T, U any](a []T, f func(T) U) []U {
	out := make([]U, 0, len(a))
	for _, item := range a {
		out = append(out, f(item))
	}
	return out
}

// EqualContent reports whether a and b hold the same elements with the same
// multiplicity, regardless of their order.
func EqualContent[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[T]int, len(a))
	for _, item := range a {
		counts[item]++
	}
	for _, item := range b {
		if counts[item] == 0 {
			return false
		}
		counts[item]--
	}
	return true
}
