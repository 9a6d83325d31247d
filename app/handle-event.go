package app

import (
	"context"

	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/acl"
	"quadrelay.dev/pkg/encoders/envelopes/authenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/eventenvelope"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/ingest"
	"quadrelay.dev/pkg/writer"
)

// HandleEvent decodes an EVENT submission, checks write access, and hands
// the event to the ingest pool for id/signature verification and
// persistence. The OK response is written from the pool's callback, which
// runs on a worker goroutine rather than this connection's read loop, so a
// slow store write never blocks this client from sending its next frame.
func (l *Listener) HandleEvent(msg []byte) (err error) {
	env := eventenvelope.NewSubmission()
	if err = env.UnmarshalJSON(msg); chk.E(err) {
		return
	}

	accessLevel := acl.Registry.GetAccessLevel(l.authedPubkey.Load(), l.remote)
	if accessLevel == "none" || accessLevel == "read" {
		if err = Ok.AuthRequired(l, env, "auth required for write access"); chk.E(err) {
			return
		}
		if err = authenvelope.NewChallengeWith(l.challenge.Load()).Write(l); chk.E(err) {
			return
		}
		return
	}
	isAdmin := accessLevel == "admin"
	ev := env.Event

	job := &ingest.Job{
		Ctx:    context.Background(),
		Event:  ev,
		Admins: l.Admins,
		Remote: l.remote,
		Callback: func(outcome writer.Outcome) {
			if werr := writeOutcome(l, env, outcome); chk.E(werr) {
				return
			}
			if outcome.OK && isAdmin &&
				(kind.K(ev.Kind) == kind.FollowList || kind.K(ev.Kind) == kind.RelayListMetadata) {
				go func() {
					if cErr := acl.Registry.Configure(); chk.E(cErr) {
						log.E.F("failed to reconfigure ACL: %v", cErr)
					}
				}()
			}
		},
	}
	if !l.Ingest.Submit(job) {
		if err = Ok.RateLimited(l, env, "relay is overloaded, try again shortly"); chk.E(err) {
			return
		}
	}
	return
}
