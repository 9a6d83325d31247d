// Package tag implements the nostr tag: an ordered list of strings whose
// first element is a single-letter (usually) key, as used in an event's
// Tags field and in a filter's tag-based queries (the "#e", "#p", ... keys).
package tag

// Tag position constants, so index access reads as intent rather than magic
// numbers.
const (
	Key = iota
	Value
	Relay
)

// T is a single nostr tag, e.g. ["e", "<event-id>", "<relay-hint>"].
type T []string

// New builds a tag.T from its fields.
func New(fields ...string) T { return T(fields) }

// Key returns the tag's first field (its identifying letter), or "" if
// empty.
func (t T) Key() string {
	if len(t) > Key {
		return t[Key]
	}
	return ""
}

// Value returns the tag's second field, or "" if absent.
func (t T) Value() string {
	if len(t) > Value {
		return t[Value]
	}
	return ""
}

// Relay returns the tag's third field, conventionally a relay hint on "e"
// and "p" tags.
func (t T) Relay() string {
	if len(t) > Relay {
		return t[Relay]
	}
	return ""
}

// Len reports the number of fields in the tag.
func (t T) Len() int { return len(t) }

// Clone returns a deep copy of t.
func (t T) Clone() T {
	c := make(T, len(t))
	copy(c, t)
	return c
}
