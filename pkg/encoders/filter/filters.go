package filter

import "quadrelay.dev/pkg/encoders/event"

// S is a FilterGroup: a disjunction of Filters, exactly as a REQ message's
// filter list is interpreted (an event need only satisfy one of them).
type S []*F

// Matches reports whether ev satisfies any filter in the group.
func (s S) Matches(ev *event.E) bool {
	for _, f := range s {
		if f != nil && f.Matches(ev) {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether any filter in the group queries a
// privileged kind, meaning the requesting connection must be
// authenticated.
func (s S) IsPrivileged() bool {
	for _, f := range s {
		if f != nil && f.Kinds.IsPrivileged() {
			return true
		}
	}
	return false
}
