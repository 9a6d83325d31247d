package kind

import "sort"

// S is an ordered set of kinds, used by filter.F's Kinds field.
type S []K

// NewS builds a kinds.S from the given raw kind numbers.
func NewS(ks ...uint16) S {
	s := make(S, len(ks))
	for i, k := range ks {
		s[i] = K(k)
	}
	return s
}

func (s S) Len() int           { return len(s) }
func (s S) Less(i, j int) bool { return s[i] < s[j] }
func (s S) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Sort orders the set ascending, used to canonicalize a filter before
// fingerprinting it for deduplication.
func (s S) Sort() { sort.Sort(s) }

// Contains reports whether k is a member of the set.
func (s S) Contains(k uint16) bool {
	for _, kk := range s {
		if kk.Equal(k) {
			return true
		}
	}
	return false
}

// ToUint16 returns the set as a slice of raw kind numbers.
func (s S) ToUint16() []uint16 {
	o := make([]uint16, len(s))
	for i, k := range s {
		o[i] = uint16(k)
	}
	return o
}

// IsPrivileged reports whether any kind in the set requires
// participant-only visibility; used to decide whether a filter needs an
// authenticated connection.
func (s S) IsPrivileged() bool {
	for _, k := range s {
		if IsPrivileged(uint16(k)) {
			return true
		}
	}
	return false
}
