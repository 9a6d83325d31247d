// Package version holds the build-time identity strings reported in logs
// and in the NIP-11 relay information document.
package version

// V is the relay's version string, overridden at build time via
// -ldflags "-X quadrelay.dev/pkg/version.V=...".
var V = "v0.1.0"

// URL points at the relay software's source repository, reported as the
// NIP-11 "software" field.
var URL = "https://github.com/quadrelay/quadrelay"

// Description is the description HandleRelayInfo reports in the NIP-11
// document.
var Description = "a quadrelay nostr relay"
