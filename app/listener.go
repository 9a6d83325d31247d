package app

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"lol.mleku.dev/chk"
	"quadrelay.dev/pkg/utils/atomic"
)

type Listener struct {
	*Server
	conn         *websocket.Conn
	ctx          context.Context
	remote       string
	req          *http.Request
	challenge    atomic.Bytes
	authedPubkey atomic.Bytes
}

// Ctx returns the listener's connection-scoped context; every call returns
// the same context.
func (l *Listener) Ctx() context.Context {
	return l.ctx
}

func (l *Listener) Write(p []byte) (n int, err error) {
	writeCtx, cancel := context.WithTimeout(
		context.Background(), DefaultWriteTimeout,
	)
	defer cancel()
	if err = l.conn.Write(writeCtx, websocket.MessageText, p); chk.E(err) {
		return
	}
	n = len(p)
	return
}
