// Package reqmonitor tracks every connection's live REQ subscriptions and
// matches each newly committed event against them. It replaces a single
// global-lock subscriber map with a fixed set of shards, each owning its
// own connections and its own goroutine, so that matching and delivery for
// one connection never contends with another and a slow websocket write on
// one shard can't stall delivery on the rest.
package reqmonitor

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/encoders/envelopes/eventenvelope"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/interfaces/publisher"
	"quadrelay.dev/pkg/interfaces/typer"
	"quadrelay.dev/pkg/metrics"
	"quadrelay.dev/pkg/utils"
)

// Type identifies reqmonitor commands and satisfies publisher.I's Type
// method.
const Type = "reqmonitor"

// DefaultWriteTimeout bounds how long a single subscription delivery may
// block on a slow client before the connection is dropped.
const DefaultWriteTimeout = 5 * time.Second

// commandQueueDepth and deliveryQueueDepth bound each shard's inboxes; a
// shard that falls behind drops rather than blocking its caller.
const (
	commandQueueDepth  = 256
	deliveryQueueDepth = 1024
)

// Subscription is one connection's live REQ: the filter group it asked
// for, its remote address (for logging) and, if it authenticated, its
// pubkey (needed to decide whether it may see privileged-kind events).
//
// LatestQuadID is the watermark seeded from the REQ's historical scan at
// registration time (reqworker.Pool.finish): every event with a quadID at
// or below it was already covered by the scan, so only a strictly greater
// quadID is eligible for live delivery here. This closes the gap between
// the scan's snapshot and this subscription's registration without either
// missing an event committed during the scan or redelivering one the scan
// already sent.
type Subscription struct {
	Filters      filter.S
	Remote       string
	AuthedPubkey []byte
	LatestQuadID uint64
}

// Matches reports whether ev satisfies this subscription's filter group.
func (s Subscription) Matches(ev *event.E) bool { return s.Filters.Matches(ev) }

// Command is a subscription-management instruction routed to the shard
// that owns Conn. Sent by HandleReq/HandleClose as a typer.T through
// Receive.
type Command struct {
	Conn   *websocket.Conn
	Remote string

	// Cancel, when true, removes a subscription (ID set) or every
	// subscription for Conn (ID empty) instead of adding one.
	Cancel bool

	ID      string
	Filters filter.S

	AuthedPubkey []byte

	// LatestQuadID seeds the registered Subscription's watermark; see
	// Subscription.LatestQuadID.
	LatestQuadID uint64
}

// Type implements typer.T.
func (c *Command) Type() (typeName string) { return Type }

// Pool is a sharded publisher.I: every connection is assigned to exactly
// one shard by a hash of its *websocket.Conn pointer, and all commands and
// deliveries for that connection are handled by that shard's goroutine,
// one at a time, so ordering toward a single client is preserved even
// though shards run concurrently.
type Pool struct {
	shards  []*shard
	metrics *metrics.Registry
}

var _ publisher.I = (*Pool)(nil)

// delivery is one committed event queued for a shard's matching pass,
// carrying the quadID needed to gate each subscription's watermark.
type delivery struct {
	ev     *event.E
	quadID uint64
}

// shard owns a disjoint subset of connections and processes both
// subscription commands and event deliveries for them from a single
// goroutine.
type shard struct {
	mx   sync.RWMutex
	subs map[*websocket.Conn]map[string]Subscription

	commands  chan *Command
	deliverCh chan delivery
	stop      chan struct{}
	metrics   *metrics.Registry
}

// New starts a Pool of n shards. n should track available CPUs; a
// single-shard pool degrades to the original global-lock behaviour. reg
// may be nil to disable counters.
func New(n int, reg *metrics.Registry) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{shards: make([]*shard, n), metrics: reg}
	for i := range p.shards {
		s := &shard{
			subs:      make(map[*websocket.Conn]map[string]Subscription),
			commands:  make(chan *Command, commandQueueDepth),
			deliverCh: make(chan delivery, deliveryQueueDepth),
			stop:      make(chan struct{}),
			metrics:   reg,
		}
		p.shards[i] = s
		go s.run()
	}
	return p
}

// Stop halts every shard goroutine. Pending commands and deliveries are
// discarded.
func (p *Pool) Stop() {
	for _, s := range p.shards {
		close(s.stop)
	}
}

// Type implements publisher.I.
func (p *Pool) Type() (typeName string) { return Type }

// shardFor picks the shard that owns conn, stable for the lifetime of the
// connection.
func (p *Pool) shardFor(conn *websocket.Conn) *shard {
	h := fnv.New32a()
	fmt.Fprintf(h, "%p", conn)
	return p.shards[h.Sum32()%uint32(len(p.shards))]
}

// Receive implements publisher.I: routes a subscription command to the
// shard that owns its connection. Never blocks the caller for long - the
// command queue is sized generously and a full queue only means a
// connection is opening/closing subscriptions faster than the shard can
// apply them, which is itself worth logging.
func (p *Pool) Receive(msg typer.T) {
	cmd, ok := msg.(*Command)
	if !ok {
		return
	}
	sh := p.shardFor(cmd.Conn)
	select {
	case sh.commands <- cmd:
	default:
		log.W.F("reqmonitor: command queue full for %s, dropping", cmd.Remote)
	}
}

// Deliver implements publisher.I: fans ev out to every shard, since any
// shard may own a connection with a matching subscription. Delivery is
// asynchronous - the caller (the writer, after a commit) never blocks on a
// slow client. quadID gates delivery against each subscription's
// LatestQuadID watermark.
func (p *Pool) Deliver(ev *event.E, quadID uint64) {
	for _, sh := range p.shards {
		select {
		case sh.deliverCh <- delivery{ev: ev, quadID: quadID}:
		default:
			log.W.F(
				"reqmonitor: delivery queue full, dropping event %s for a shard",
				hex.Enc(ev.ID),
			)
			if p.metrics != nil {
				p.metrics.DeliveryDropped.Inc()
			}
		}
	}
}

func (s *shard) run() {
	for {
		select {
		case <-s.stop:
			return
		case cmd := <-s.commands:
			s.apply(cmd)
		case d := <-s.deliverCh:
			s.deliver(d.ev, d.quadID)
		}
	}
}

func (s *shard) apply(cmd *Command) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if cmd.Cancel {
		if cmd.ID == "" {
			if n := len(s.subs[cmd.Conn]); n > 0 && s.metrics != nil {
				s.metrics.ReqCancelled.Add(float64(n))
			}
			delete(s.subs, cmd.Conn)
		} else if subs, ok := s.subs[cmd.Conn]; ok {
			if _, existed := subs[cmd.ID]; existed && s.metrics != nil {
				s.metrics.ReqCancelled.Inc()
			}
			delete(subs, cmd.ID)
			if len(subs) == 0 {
				delete(s.subs, cmd.Conn)
			}
		}
		return
	}
	subs, ok := s.subs[cmd.Conn]
	if !ok {
		subs = make(map[string]Subscription)
		s.subs[cmd.Conn] = subs
	}
	// re-opening a subscription id on the same connection implicitly
	// replaces whatever it was previously watching.
	subs[cmd.ID] = Subscription{
		Filters: cmd.Filters, Remote: cmd.Remote, AuthedPubkey: cmd.AuthedPubkey,
		LatestQuadID: cmd.LatestQuadID,
	}
}

// deliver writes ev to every matching subscription this shard owns. It
// takes a write-lock snapshot of matches - upgraded from a read-lock since a
// delivered match also advances that subscription's LatestQuadID watermark -
// then writes outside the lock so a slow client can't stall subsequent
// Receive calls against this shard. quadID gates each subscription: one at
// or below a subscription's watermark was already covered by that
// subscription's historical scan and is skipped here.
func (s *shard) deliver(ev *event.E, quadID uint64) {
	type target struct {
		conn *websocket.Conn
		id   string
		sub  Subscription
	}
	s.mx.Lock()
	var targets []target
	for conn, subs := range s.subs {
		for id, sub := range subs {
			if quadID <= sub.LatestQuadID {
				continue
			}
			if sub.Matches(ev) {
				sub.LatestQuadID = quadID
				subs[id] = sub
				targets = append(targets, target{conn: conn, id: id, sub: sub})
			}
		}
	}
	s.mx.Unlock()
	if len(targets) == 0 {
		return
	}
	for _, t := range targets {
		if kind.IsPrivileged(ev.Kind) && !authorizedForPrivileged(ev, t.sub.AuthedPubkey) {
			continue
		}
		res, err := eventenvelope.NewResultWith(t.id, ev)
		if err != nil {
			log.E.F("reqmonitor: failed to build event envelope for %s: %v", t.sub.Remote, err)
			continue
		}
		var data []byte
		if data, err = res.MarshalJSON(); err != nil {
			log.E.F("reqmonitor: failed to marshal event envelope for %s: %v", t.sub.Remote, err)
			continue
		}
		writeCtx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
		err = t.conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			log.D.F("reqmonitor: delivery to %s (sub %s) failed: %v, dropping subscriber", t.sub.Remote, t.id, err)
			s.removeConn(t.conn)
			_ = t.conn.CloseNow()
			continue
		}
		if s.metrics != nil {
			s.metrics.DeliveryOK.Inc()
		}
	}
}

func (s *shard) removeConn(conn *websocket.Conn) {
	s.mx.Lock()
	defer s.mx.Unlock()
	delete(s.subs, conn)
}

// authorizedForPrivileged reports whether a subscriber authenticated as pk
// may receive a privileged-kind event: it must be the author or a tagged
// participant.
func authorizedForPrivileged(ev *event.E, pk []byte) bool {
	if len(pk) == 0 {
		return false
	}
	if utils.FastEqual(ev.Pubkey, pk) {
		return true
	}
	for _, t := range ev.Tags.GetAll("p") {
		dec, err := hex.Dec(t.Value())
		if err != nil {
			continue
		}
		if utils.FastEqual(dec, pk) {
			return true
		}
	}
	return false
}
