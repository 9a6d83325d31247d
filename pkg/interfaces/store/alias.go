package store

import (
	"net/http"

	"quadrelay.dev/pkg/encoders/envelopes/okenvelope"
)

type Responder = http.ResponseWriter
type Req = *http.Request
type OK = okenvelope.T

// IdPkTs is the decoded form of a fullIdPubkey index entry: enough to
// evaluate a filter against an event without fetching its full record.
type IdPkTs struct {
	Id  []byte
	Pub []byte
	Ts  int64
	Ser uint64
}
