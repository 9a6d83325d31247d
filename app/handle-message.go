package app

import (
	"fmt"

	"lol.mleku.dev/chk"
	"lol.mleku.dev/errorf"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/encoders/envelopes"
	"quadrelay.dev/pkg/encoders/envelopes/authenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/closeenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/eventenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/negcloseenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/negmsgenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/negopenenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/noticeenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/reqenvelope"
	"quadrelay.dev/pkg/negentropy"
)

func (l *Listener) HandleMessage(msg []byte, remote string) {
	log.D.C(
		func() string {
			return fmt.Sprintf(
				"%s received message:\n%s", remote, msg,
			)
		},
	)
	var err error
	var t string
	if t, _, err = envelopes.Identify(msg); !chk.E(err) {
		switch t {
		case eventenvelope.L:
			err = l.HandleEvent(msg)
		case reqenvelope.L:
			err = l.HandleReq(msg)
		case closeenvelope.L:
			err = l.HandleClose(msg)
		case authenvelope.L:
			err = l.HandleAuth(msg)
		case negopenenvelope.L:
			err = l.handleNegOpen(msg)
		case negmsgenvelope.L:
			err = l.handleNegMsg(msg)
		case negcloseenvelope.L:
			err = l.handleNegClose(msg)
		default:
			err = errorf.E("unknown envelope type %s\n%s", t, msg)
		}
	}
	if err != nil {
		log.D.C(
			func() string {
				return fmt.Sprintf(
					"notice->%s %s", remote, err,
				)
			},
		)
		if err = noticeenvelope.NewFrom(err.Error()).Write(l); chk.E(err) {
			return
		}
	}

}

// handleNegOpen decodes a NEG-OPEN and starts a reconciliation session on
// the negentropy pool; the pool writes NEG-MSG/NEG-ERR directly to l.
func (l *Listener) handleNegOpen(msg []byte) (err error) {
	env := negopenenvelope.New()
	if err = env.UnmarshalJSON(msg); chk.E(err) {
		return
	}
	l.Negentropy.SubmitOpen(
		&negentropy.Open{
			Ctx:     l.ctx,
			Conn:    l.conn,
			Remote:  l.remote,
			Writer:  l,
			SubID:   env.Subscription,
			Filter:  env.Filter,
			Message: env.Message,
		},
	)
	return
}

// handleNegMsg decodes a NEG-MSG and continues an already-open session.
func (l *Listener) handleNegMsg(msg []byte) (err error) {
	env := negmsgenvelope.New()
	if err = env.UnmarshalJSON(msg); chk.E(err) {
		return
	}
	l.Negentropy.SubmitContinue(
		&negentropy.Continue{
			Ctx:     l.ctx,
			Conn:    l.conn,
			Remote:  l.remote,
			Writer:  l,
			SubID:   env.Subscription,
			Message: env.Message,
		},
	)
	return
}

// handleNegClose decodes a NEG-CLOSE and tears down the named session.
func (l *Listener) handleNegClose(msg []byte) (err error) {
	env := negcloseenvelope.New()
	if err = env.UnmarshalJSON(msg); chk.E(err) {
		return
	}
	l.Negentropy.SubmitClose(
		&negentropy.Close{
			Conn:  l.conn,
			SubID: env.Subscription,
		},
	)
	return
}
