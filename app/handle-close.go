package app

import (
	"errors"

	"lol.mleku.dev/chk"
	"quadrelay.dev/pkg/encoders/envelopes/closeenvelope"
	"quadrelay.dev/pkg/negentropy"
	"quadrelay.dev/pkg/reqmonitor"
)

// HandleClose processes a CLOSE envelope: it cancels any live reqmonitor
// subscription and any open negentropy session registered under the same
// id for this connection.
func (l *Listener) HandleClose(
	req []byte,
) (err error) {
	env := closeenvelope.New()
	if err = env.UnmarshalJSON(req); chk.E(err) {
		return
	}
	if len(env.ID) == 0 {
		return errors.New("CLOSE has no <id>")
	}
	l.ReqMonitor.Receive(
		&reqmonitor.Command{
			Cancel: true,
			Remote: l.remote,
			Conn:   l.conn,
			ID:     env.ID,
		},
	)
	l.Negentropy.SubmitClose(
		&negentropy.Close{
			Conn:  l.conn,
			SubID: env.ID,
		},
	)
	return
}
