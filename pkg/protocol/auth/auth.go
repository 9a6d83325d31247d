// Package auth implements NIP-42 relay authentication: validating the
// signed kind 22242 event a client sends in response to an AUTH challenge.
package auth

import (
	"fmt"
	"time"

	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/utils/normalize"
)

// Window bounds how far a kind 22242 event's created_at may drift from
// now and still be accepted.
const Window = 10 * time.Minute

// Validate reports whether ev is a well-formed, correctly signed NIP-42
// auth response to challenge, addressed to relayURL.
func Validate(ev *event.E, challenge []byte, relayURL string) (ok bool, err error) {
	if ok, err = validateCommon(ev, relayURL); err != nil || !ok {
		return
	}
	challengeTag := ev.Tags.GetFirst("challenge")
	if challengeTag == nil {
		err = fmt.Errorf("auth: missing challenge tag")
		return false, err
	}
	if challengeTag.Value() != string(challenge) {
		err = fmt.Errorf("auth: challenge does not match")
		return false, err
	}
	return true, nil
}

// ValidateRequest checks a kind 22242 event presented as one-shot bearer
// credential for an HTTP request (no prior challenge round-trip): same
// relay-tag, timestamp-window and signature checks as Validate, without
// requiring a challenge tag.
func ValidateRequest(ev *event.E, relayURL string) (ok bool, err error) {
	return validateCommon(ev, relayURL)
}

func validateCommon(ev *event.E, relayURL string) (ok bool, err error) {
	if ev == nil {
		err = fmt.Errorf("auth: missing event")
		return
	}
	if ev.Kind != uint16(kind.ClientAuthentication) {
		err = fmt.Errorf(
			"auth: expected kind %d, got %d", kind.ClientAuthentication, ev.Kind,
		)
		return
	}
	now := time.Now()
	evTime := time.Unix(ev.CreatedAt, 0)
	if evTime.Before(now.Add(-Window)) || evTime.After(now.Add(Window)) {
		err = fmt.Errorf("auth: event timestamp out of window")
		return
	}
	relayTag := ev.Tags.GetFirst("relay")
	if relayTag == nil {
		err = fmt.Errorf("auth: missing relay tag")
		return
	}
	if normalize.URL(relayTag.Value()) != normalize.URL(relayURL) {
		err = fmt.Errorf("auth: relay tag does not match this relay")
		return
	}
	if ok, err = ev.Verify(); err != nil || !ok {
		return false, err
	}
	return true, nil
}
