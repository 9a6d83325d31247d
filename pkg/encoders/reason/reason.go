// Package reason enumerates the machine-readable prefixes NIP-01 specifies
// for the message field of an OK/CLOSED envelope ("reason: human text"),
// mapping directly onto the error kinds of spec.md §7.
package reason

import "fmt"

// Code is a NIP-01 machine-readable OK/CLOSED message prefix.
type Code string

const (
	Duplicate    Code = "duplicate"
	Blocked      Code = "blocked"
	RateLimited  Code = "rate-limited"
	Invalid      Code = "invalid"
	Error        Code = "error"
	AuthRequired Code = "auth-required"
	Restricted   Code = "restricted"
	Unsupported  Code = "unsupported"
	PoW          Code = "pow"
)

// F formats a human-readable message prefixed with the machine-readable
// code, e.g. "duplicate: event already stored".
func (c Code) F(format string, args ...any) string {
	return string(c) + ": " + fmt.Sprintf(format, args...)
}

// String returns the bare code.
func (c Code) String() string { return string(c) }
