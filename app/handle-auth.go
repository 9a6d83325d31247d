package app

import (
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/encoders/envelopes/authenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/okenvelope"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/protocol/auth"
)

func (l *Listener) HandleAuth(b []byte) (err error) {
	env := authenvelope.NewResponse()
	if err = env.UnmarshalJSON(b); chk.E(err) {
		return
	}
	if env.Event == nil {
		return
	}
	var valid bool
	if valid, err = auth.Validate(
		env.Event, l.challenge.Load(),
		l.ServiceURL(l.req),
	); err != nil {
		e := err.Error()
		if err = Ok.Error(l, env, e); chk.E(err) {
			return
		}
		return
	} else if !valid {
		if err = Ok.Error(
			l, env, "auth response event is invalid",
		); chk.E(err) {
			return
		}
		return
	} else {
		if err = okenvelope.NewFrom(
			hex.Enc(env.Event.ID), true, "",
		).Write(l); chk.E(err) {
			return
		}
		log.D.F(
			"%s authed to pubkey %0x", l.remote,
			env.Event.Pubkey,
		)
		l.authedPubkey.Store(env.Event.Pubkey)
	}
	return
}
