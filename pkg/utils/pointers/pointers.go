// Package pointers provides small helpers for working with optional
// (possibly-nil) pointer fields such as filter.F's Since/Until/Limit.
package pointers

// Present returns true if a pointer is non-nil.
func Present[V any](v *V) bool { return v != nil }

// Value dereferences a pointer, returning the zero value if nil.
func Value[V any](v *V) (o V) {
	if v == nil {
		return
	}
	return *v
}

// Of returns a pointer to a copy of v, for populating optional fields from a
// literal.
func Of[V any](v V) *V { return &v }
