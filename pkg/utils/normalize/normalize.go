// Package normalize canonicalizes relay URLs and wraps ad-hoc error
// strings in a reason-coded form, mirroring pkg/encoders/reason's
// Code.F pattern for non-protocol errors.
package normalize

import (
	"fmt"
	"strings"
)

// URL canonicalizes a relay URL: trims whitespace, lowercases the scheme
// and host, defaults to wss:// when no scheme is given, and drops a
// trailing slash, so the same relay reached two different ways dedupes to
// one string.
func URL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if !strings.Contains(u, "://") {
		u = "wss://" + u
	}
	parts := strings.SplitN(u, "://", 2)
	scheme := strings.ToLower(parts[0])
	rest := parts[1]
	slash := strings.IndexByte(rest, '/')
	host := rest
	path := ""
	if slash >= 0 {
		host = rest[:slash]
		path = rest[slash:]
	}
	host = strings.ToLower(host)
	path = strings.TrimSuffix(path, "/")
	return scheme + "://" + host + path
}

// Code is an error-message prefix for conditions outside the protocol's
// own reason vocabulary.
type Code string

// Error is the generic normalization/parse-failure code.
const Error Code = "error"

// Errorf formats a human-readable message prefixed with the code.
func (c Code) Errorf(format string, args ...any) error {
	return fmt.Errorf(string(c)+": "+format, args...)
}
