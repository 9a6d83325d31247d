package app

import (
	"strings"

	"quadrelay.dev/pkg/encoders/envelopes/eventenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/okenvelope"
	"quadrelay.dev/pkg/encoders/reason"
	"quadrelay.dev/pkg/writer"
)

// OK represents a function that processes events or operations, using provided
// parameters to generate formatted messages and return errors if any issues
// occur during processing.
type OK func(
	l *Listener, env eventenvelope.I, format string, params ...any,
) (err error)

// OKs provides a collection of handler functions for managing different types
// of operational outcomes, each corresponding to specific error or status
// conditions such as authentication requirements, rate limiting, and invalid
// inputs.
type OKs struct {
	Ok           OK
	AuthRequired OK
	Duplicate    OK
	Blocked      OK
	RateLimited  OK
	Invalid      OK
	Error        OK
}

// Ok provides a collection of handler functions for managing different types of
// operational outcomes, each corresponding to specific error or status
// conditions such as authentication requirements, rate limiting, and invalid
// inputs.
var Ok = OKs{
	Ok: func(
		l *Listener, env eventenvelope.I, format string,
		params ...any,
	) (err error) {
		return okenvelope.NewFrom(
			env.Id(), true, "",
		).Write(l)
	},
	AuthRequired: func(
		l *Listener, env eventenvelope.I, format string,
		params ...any,
	) (err error) {
		return okenvelope.NewFrom(
			env.Id(), false, reason.AuthRequired.F(format, params...),
		).Write(l)
	},
	// Duplicate reports ok=true: per NIP-01, resubmitting an event the
	// relay already has is not a rejection.
	Duplicate: func(
		l *Listener, env eventenvelope.I, format string,
		params ...any,
	) (err error) {
		return okenvelope.NewFrom(
			env.Id(), true, reason.Duplicate.F(format, params...),
		).Write(l)
	},
	Blocked: func(
		l *Listener, env eventenvelope.I, format string,
		params ...any,
	) (err error) {
		return okenvelope.NewFrom(
			env.Id(), false, reason.Blocked.F(format, params...),
		).Write(l)
	},
	RateLimited: func(
		l *Listener, env eventenvelope.I, format string,
		params ...any,
	) (err error) {
		return okenvelope.NewFrom(
			env.Id(), false, reason.RateLimited.F(format, params...),
		).Write(l)
	},
	Invalid: func(
		l *Listener, env eventenvelope.I, format string,
		params ...any,
	) (err error) {
		return okenvelope.NewFrom(
			env.Id(), false, reason.Invalid.F(format, params...),
		).Write(l)
	},
	Error: func(
		l *Listener, env eventenvelope.I, format string,
		params ...any,
	) (err error) {
		return okenvelope.NewFrom(
			env.Id(), false, reason.Error.F(format, params...),
		).Write(l)
	},
}

// writeOutcome dispatches a writer.Outcome to the OKs entry matching its
// reason code, so an OK message reads the same whichever layer produced it
// — ingest validation, the writer's duplicate/blocked classification, or
// rate limiting — instead of the raw already-formatted string going straight
// to the wire.
func writeOutcome(l *Listener, env eventenvelope.I, outcome writer.Outcome) (err error) {
	if outcome.Reason == "" {
		return Ok.Ok(l, env, "")
	}
	code, msg := splitReason(outcome.Reason)
	switch code {
	case reason.Duplicate:
		return Ok.Duplicate(l, env, "%s", msg)
	case reason.Blocked:
		return Ok.Blocked(l, env, "%s", msg)
	case reason.Invalid:
		return Ok.Invalid(l, env, "%s", msg)
	case reason.RateLimited:
		return Ok.RateLimited(l, env, "%s", msg)
	case reason.AuthRequired:
		return Ok.AuthRequired(l, env, "%s", msg)
	default:
		return okenvelope.NewFrom(env.Id(), outcome.OK, outcome.Reason).Write(l)
	}
}

// splitReason pulls the "code: " prefix reason.Code.F writes off a message,
// reporting the bare code and the remainder. An unrecognized or missing
// prefix reports an empty code so the caller falls back to the raw message.
func splitReason(s string) (reason.Code, string) {
	i := strings.Index(s, ": ")
	if i < 0 {
		return "", s
	}
	return reason.Code(s[:i]), s[i+2:]
}
