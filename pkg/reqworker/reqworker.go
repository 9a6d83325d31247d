// Package reqworker runs the historical-scan half of a REQ off the
// connection's own goroutine. A fixed pool of workers pulls queued
// requests, resolves each filter against the store, and streams results
// back over the connection; a request whose filters take longer than a
// time slice to resolve is requeued from where it left off so one large
// backfill can't starve every other connection's subscriptions.
package reqworker

import (
	"context"
	"io"
	"time"

	"github.com/coder/websocket"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/encoders/envelopes/closedenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/eoseenvelope"
	"quadrelay.dev/pkg/encoders/envelopes/eventenvelope"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/interfaces/publisher"
	"quadrelay.dev/pkg/metrics"
	"quadrelay.dev/pkg/reqmonitor"
	"quadrelay.dev/pkg/utils"
	"quadrelay.dev/pkg/utils/pointers"
)

// Store resolves a single filter to its matching events; satisfied by
// *database.D.
type Store interface {
	QueryEvents(c context.Context, f *filter.F) (event.S, error)
	// LastQuadID reports the store's current event sequence watermark,
	// snapshotted at scan start so the live subscription registered at
	// EOSE knows which quadIDs its scan already covered.
	LastQuadID() uint64
}

// TimeSlice bounds how long a single pass through a request's filters may
// run before the remainder is requeued behind other workers' requests.
const TimeSlice = 20 * time.Millisecond

// Request is one REQ awaiting historical resolution.
type Request struct {
	Ctx          context.Context
	Conn         *websocket.Conn
	Writer       io.Writer
	Remote       string
	SubID        string
	Filters      filter.S
	AuthedPubkey []byte
	IsAdmin      bool
}

// continuation tracks a request across time-slice yields.
type continuation struct {
	req       *Request
	remaining filter.S
	sent      map[string]struct{}
	collected int

	// started and scanStartQuadID capture the store's quadID watermark
	// before the scan's first query, seeding the live subscription
	// registered at EOSE so it only delivers events above what the scan
	// already covers.
	started         bool
	scanStartQuadID uint64
}

// Pool runs Workers goroutines resolving queued requests against store.
type Pool struct {
	jobs    chan *continuation
	store   Store
	monitor publisher.I
	stop    chan struct{}
	metrics *metrics.Registry
}

// DefaultQueueDepth bounds how many REQs may be waiting for a free
// worker.
const DefaultQueueDepth = 1024

// New starts a Pool of the given worker count. monitor receives the live
// subscription once a request's historical scan reaches EOSE. reg may be
// nil to disable counters.
func New(workers, queueDepth int, store Store, monitor publisher.I, reg *metrics.Registry) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	p := &Pool{
		jobs:    make(chan *continuation, queueDepth),
		store:   store,
		monitor: monitor,
		stop:    make(chan struct{}),
		metrics: reg,
	}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

// Stop halts every worker goroutine.
func (p *Pool) Stop() { close(p.stop) }

// Submit enqueues req, reporting false if the pool is saturated.
func (p *Pool) Submit(req *Request) bool {
	c := &continuation{req: req, remaining: req.Filters, sent: make(map[string]struct{})}
	select {
	case p.jobs <- c:
		return true
	default:
		log.W.F("reqworker: queue full, rejecting REQ from %s", req.Remote)
		return false
	}
}

func (p *Pool) run() {
	for {
		select {
		case <-p.stop:
			return
		case c := <-p.jobs:
			p.resolve(c)
		}
	}
}

// resolve processes filters from c until either they're exhausted (EOSE)
// or the time slice expires, in which case the remainder is requeued.
func (p *Pool) resolve(c *continuation) {
	if !c.started {
		c.scanStartQuadID = p.store.LastQuadID()
		c.started = true
	}
	deadline := time.Now().Add(TimeSlice)
	req := c.req
	for len(c.remaining) > 0 {
		f := c.remaining[0]
		c.remaining = c.remaining[1:]
		if f != nil && pointers.Present(f.Limit) && *f.Limit == 0 {
			continue
		}
		found, err := p.store.QueryEvents(req.Ctx, f)
		if p.metrics != nil {
			p.metrics.ReqQueries.Inc()
		}
		if chk.E(err) {
			continue
		}
		c.collected += len(found)
		for _, ev := range filterVisible(found, req) {
			res, rerr := eventenvelope.NewResultWith(req.SubID, ev)
			if chk.E(rerr) {
				continue
			}
			if err = res.Write(req.Writer); chk.E(err) {
				return
			}
			c.sent[hex.Enc(ev.ID)] = struct{}{}
		}
		if time.Now().After(deadline) && len(c.remaining) > 0 {
			select {
			case p.jobs <- c:
			default:
				log.W.F("reqworker: queue full while requeuing continuation for %s", req.Remote)
				p.finish(c)
			}
			return
		}
	}
	p.finish(c)
}

// finish sends EOSE, decides whether the subscription should stay open
// for live events, and if so hands it to the reqmonitor pool.
func (p *Pool) finish(c *continuation) {
	req := c.req
	if err := eoseenvelope.NewFrom(req.SubID).Write(req.Writer); chk.E(err) {
		return
	}
	keepOpen := false
	var liveFilters filter.S
	for _, f := range req.Filters {
		if len(f.IDs) > 0 {
			var notFound []string
			for _, id := range f.IDs {
				if _, ok := c.sent[id]; !ok {
					notFound = append(notFound, id)
				}
			}
			if len(notFound) == 0 {
				continue
			}
			f.IDs = notFound
			liveFilters = append(liveFilters, f)
			keepOpen = true
			continue
		}
		liveFilters = append(liveFilters, f)
		keepOpen = true
		if pointers.Present(f.Limit) && c.collected < *f.Limit {
			keepOpen = true
		}
	}
	if !keepOpen {
		if err := closedenvelope.NewFrom(req.SubID, "").Write(req.Writer); chk.E(err) {
			return
		}
		return
	}
	p.monitor.Receive(
		&reqmonitor.Command{
			Conn:         req.Conn,
			Remote:       req.Remote,
			ID:           req.SubID,
			Filters:      liveFilters,
			AuthedPubkey: req.AuthedPubkey,
			LatestQuadID: c.scanStartQuadID,
		},
	)
}

// filterVisible drops events req's connection isn't authorized to see:
// privileged-kind events are only visible to their author or a tagged
// participant, unless the connection is an admin.
func filterVisible(evs event.S, req *Request) event.S {
	if req.IsAdmin {
		return evs
	}
	out := make(event.S, 0, len(evs))
	for _, ev := range evs {
		if !kind.IsPrivileged(ev.Kind) {
			out = append(out, ev)
			continue
		}
		pk := req.AuthedPubkey
		if len(pk) == 0 {
			continue
		}
		if utils.FastEqual(ev.Pubkey, pk) {
			out = append(out, ev)
			continue
		}
		for _, t := range ev.Tags.GetAll("p") {
			dec, err := hex.Dec(t.Value())
			if err != nil {
				continue
			}
			if utils.FastEqual(dec, pk) {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
