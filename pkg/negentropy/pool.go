// (continuation of package negentropy: the worker pool wiring sessions to
// connections)
package negentropy

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/coder/websocket"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/encoders/envelopes/negerrenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/negmsgenvelope"
	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/interfaces/store"
	"quadrelay.dev/pkg/metrics"
)

// Store resolves a filter to the id/timestamp pairs a session reconciles
// over; satisfied by *database.D.
type Store interface {
	QueryForIds(c context.Context, f *filter.F) ([]*store.IdPkTs, error)
}

// DefaultQueueDepth bounds how many NEG-* commands may be waiting for a
// free worker.
const DefaultQueueDepth = 256

// Open is a NEG-OPEN command: start a session for req.SubID scoped to
// req.Filter, reconcile req.Message against it, and write the relay's
// reply (NEG-MSG, or NEG-ERR if the filter or bound is rejected) to
// req.Writer.
type Open struct {
	Ctx     context.Context
	Conn    *websocket.Conn
	Remote  string
	Writer  io.Writer
	SubID   string
	Filter  *filter.F
	Message []byte
}

// Continue is a NEG-MSG command against an already-open session.
type Continue struct {
	Ctx     context.Context
	Conn    *websocket.Conn
	Remote  string
	Writer  io.Writer
	SubID   string
	Message []byte
}

// Close is a NEG-CLOSE command, or the connection-level cleanup issued
// when a websocket disconnects.
type Close struct {
	Conn  *websocket.Conn
	SubID string
}

type command struct {
	open     *Open
	cont     *Continue
	closeCmd *Close
}

type sessionKey struct {
	conn  *websocket.Conn
	subID string
}

// Pool runs Workers goroutines servicing NEG-OPEN/NEG-MSG/NEG-CLOSE
// commands against a shared session table. Reconciliation work is
// comparatively rare and heavier per call than per-event delivery, so
// unlike reqmonitor's per-connection shards, one session table behind a
// single mutex is sufficient here; workers hold it only to look up, insert
// or remove a session, never across a Reconcile call or any I/O.
type Pool struct {
	store Store
	jobs  chan command
	stop  chan struct{}

	sessions      map[sessionKey]*Session
	mx            chan struct{} // 1-buffered channel used as a mutex
	metrics       *metrics.Registry
	maxSyncEvents int
}

// New starts a Pool of the given worker count, resolving filters through
// store. reg may be nil to disable counters. maxSyncEvents bounds the ids a
// single session may exchange before it reports exceeded; 0 uses
// DefaultMaxSyncEvents.
func New(workers, queueDepth int, store Store, reg *metrics.Registry, maxSyncEvents int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	if maxSyncEvents <= 0 {
		maxSyncEvents = DefaultMaxSyncEvents
	}
	p := &Pool{
		store:         store,
		jobs:          make(chan command, queueDepth),
		stop:          make(chan struct{}),
		sessions:      make(map[sessionKey]*Session),
		mx:            make(chan struct{}, 1),
		metrics:       reg,
		maxSyncEvents: maxSyncEvents,
	}
	p.mx <- struct{}{}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

// Stop halts every worker goroutine.
func (p *Pool) Stop() { close(p.stop) }

// SubmitOpen enqueues a NEG-OPEN command, reporting false if the pool is
// saturated.
func (p *Pool) SubmitOpen(o *Open) bool { return p.submit(command{open: o}) }

// SubmitContinue enqueues a NEG-MSG command.
func (p *Pool) SubmitContinue(c *Continue) bool { return p.submit(command{cont: c}) }

// SubmitClose enqueues a NEG-CLOSE command, or a connection-teardown
// cleanup for every session the connection still owns when subID is
// empty.
func (p *Pool) SubmitClose(c *Close) bool { return p.submit(command{closeCmd: c}) }

func (p *Pool) submit(c command) bool {
	select {
	case p.jobs <- c:
		return true
	default:
		log.W.F("negentropy: queue full, dropping command")
		return false
	}
}

func (p *Pool) run() {
	for {
		select {
		case <-p.stop:
			return
		case c := <-p.jobs:
			switch {
			case c.open != nil:
				p.handleOpen(c.open)
			case c.cont != nil:
				p.handleContinue(c.cont)
			case c.closeCmd != nil:
				p.handleClose(c.closeCmd)
			}
		}
	}
}

func (p *Pool) lock()   { <-p.mx }
func (p *Pool) unlock() { p.mx <- struct{}{} }

func (p *Pool) handleOpen(o *Open) {
	fc := *o.Filter
	fc.Limit = nil
	f := &fc
	rows, err := p.store.QueryForIds(o.Ctx, f)
	if chk.E(err) {
		p.writeErr(o.Writer, o.SubID, "error: failed to resolve filter: "+err.Error())
		return
	}
	items := make(Items, 0, len(rows))
	for _, row := range rows {
		if len(row.Id) != IDSize {
			continue
		}
		var it Item
		it.Timestamp = row.Ts
		copy(it.ID[:], row.Id)
		items = append(items, it)
	}
	sess := NewSession(items, p.maxSyncEvents)
	if p.metrics != nil {
		p.metrics.NegSessions.Inc()
	}

	incoming, err := Unmarshal(bytes.NewReader(o.Message))
	if chk.E(err) {
		p.writeErr(o.Writer, o.SubID, "invalid: malformed initial reconciliation message")
		return
	}
	p.lock()
	p.sessions[sessionKey{conn: o.Conn, subID: o.SubID}] = sess
	p.unlock()

	p.reconcileAndReply(sess, o.Writer, o.SubID, incoming)
}

func (p *Pool) handleContinue(c *Continue) {
	p.lock()
	sess, ok := p.sessions[sessionKey{conn: c.Conn, subID: c.SubID}]
	p.unlock()
	if !ok {
		p.writeErr(c.Writer, c.SubID, "invalid: no open reconciliation session for this id")
		return
	}
	incoming, err := Unmarshal(bytes.NewReader(c.Message))
	if chk.E(err) {
		p.writeErr(c.Writer, c.SubID, "invalid: malformed reconciliation message")
		return
	}
	p.reconcileAndReply(sess, c.Writer, c.SubID, incoming)
}

func (p *Pool) reconcileAndReply(sess *Session, w io.Writer, subID string, incoming Message) {
	outgoing, have, need, exceeded, err := sess.Reconcile(incoming)
	if chk.E(err) {
		p.writeErr(w, subID, "error: "+err.Error())
		return
	}
	if exceeded {
		if p.metrics != nil {
			p.metrics.NegExceeded.Inc()
		}
		p.writeErr(w, subID, "rate-limited: reconciliation exceeded the session's event bound")
		return
	}
	if len(have) > 0 || len(need) > 0 {
		log.D.C(
			func() string {
				return "negentropy: session " + subID + " have=" + strconv.Itoa(len(have)) + " need=" + strconv.Itoa(len(need))
			},
		)
	}
	if len(outgoing) == 0 {
		return
	}
	var buf bytes.Buffer
	if err = outgoing.Marshal(&buf); chk.E(err) {
		p.writeErr(w, subID, "error: failed to encode reconciliation message")
		return
	}
	en := negmsgenvelope.NewFrom(subID, buf.Bytes())
	if err = en.Write(w); chk.E(err) {
		log.D.F("negentropy: failed to write NEG-MSG for %s: %v", subID, err)
	}
}

func (p *Pool) handleClose(c *Close) {
	p.lock()
	defer p.unlock()
	if c.SubID == "" {
		for k := range p.sessions {
			if k.conn == c.Conn {
				delete(p.sessions, k)
			}
		}
		return
	}
	delete(p.sessions, sessionKey{conn: c.Conn, subID: c.SubID})
}

func (p *Pool) writeErr(w io.Writer, subID, msg string) {
	en := negerrenvelope.NewFrom(subID, msg)
	if err := en.Write(w); err != nil {
		log.D.F("negentropy: failed to write NEG-ERR for %s: %v", subID, err)
	}
}
