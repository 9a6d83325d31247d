package tag

import "sort"

// S is an ordered list of tags, matching an event's Tags field and a
// filter's parsed tag-list. Unlike a set, duplicate tags are preserved: the
// protocol permits repeating the same tag (e.g. multiple "e" tags).
type S []T

// NewS builds a tags.S from the given tags.
func NewS(ts ...T) S { return S(ts) }

func (s S) Len() int           { return len(s) }
func (s S) Less(i, j int) bool { return s[i].Key() < s[j].Key() }
func (s S) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Sort orders the list by key, used when canonicalizing a filter's tag
// queries so identical filter contents produce identical fingerprints.
func (s S) Sort() { sort.Stable(s) }

// GetFirst returns the first tag whose key matches, or nil.
func (s S) GetFirst(key string) T {
	for _, t := range s {
		if t.Key() == key {
			return t
		}
	}
	return nil
}

// GetAll returns every tag whose key matches.
func (s S) GetAll(key string) (out S) {
	for _, t := range s {
		if t.Key() == key {
			out = append(out, t)
		}
	}
	return
}

// ContainsAny reports whether any tag with the given key has one of the
// given values in its Value field - used to evaluate a filter's "#e", "#p"
// style tag queries against an event's tags.
func (s S) ContainsAny(key string, values []string) bool {
	for _, t := range s {
		if t.Key() != key {
			continue
		}
		v := t.Value()
		for _, want := range values {
			if v == want {
				return true
			}
		}
	}
	return false
}
