package app

import (
	"lol.mleku.dev/chk"
	"quadrelay.dev/pkg/acl"
	"quadrelay.dev/pkg/encoders/envelopes/authenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/okenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/reqenvelope"
	"quadrelay.dev/pkg/encoders/reason"
	"quadrelay.dev/pkg/reqworker"
)

// HandleReq decodes a REQ, checks read access, and hands the filter group
// to the reqworker pool. The pool resolves historical matches, sends EOSE,
// and registers a live subscription with the reqmonitor pool if the
// filters aren't already exhausted; none of that work runs on this
// connection's read loop.
func (l *Listener) HandleReq(msg []byte) (err error) {
	env := reqenvelope.New()
	if err = env.UnmarshalJSON(msg); chk.E(err) {
		return
	}
	if acl.Registry.Active.Load() != "none" {
		if err = authenvelope.NewChallengeWith(l.challenge.Load()).Write(l); chk.E(err) {
			return
		}
	}
	accessLevel := acl.Registry.GetAccessLevel(l.authedPubkey.Load(), l.remote)
	if accessLevel == "none" {
		if err = okenvelope.NewFrom(
			env.Subscription, false,
			reason.AuthRequired.F("user not authed or has no read access"),
		).Write(l); chk.E(err) {
			return
		}
		return
	}
	req := &reqworker.Request{
		Ctx:          l.ctx,
		Conn:         l.conn,
		Writer:       l,
		Remote:       l.remote,
		SubID:        env.Subscription,
		Filters:      env.Filters,
		AuthedPubkey: l.authedPubkey.Load(),
		IsAdmin:      accessLevel == "admin",
	}
	l.ReqWorker.Submit(req)
	return
}
