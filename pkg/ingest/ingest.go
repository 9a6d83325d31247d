// Package ingest runs the CPU-bound front half of event submission:
// recomputing an event's id and verifying its signature, off the
// websocket read goroutine, across a fixed pool of workers. Validated
// events are hand off to a writer.Writer; the pool never itself touches
// the store.
package ingest

import (
	"context"

	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/metrics"
	"quadrelay.dev/pkg/ratelimit"
	"quadrelay.dev/pkg/utils"
	"quadrelay.dev/pkg/writer"
)

// Submitter is the write path a validated event is handed to; satisfied
// by *writer.Writer.
type Submitter interface {
	Submit(ctx context.Context, ev *event.E, admins [][]byte, callback func(writer.Outcome)) bool
	QueueLen() int
}

// Job is one event submission awaiting signature verification.
type Job struct {
	Ctx      context.Context
	Event    *event.E
	Admins   [][]byte
	Remote   string
	Callback func(writer.Outcome)
}

// Pool runs Workers goroutines pulling from a shared bounded queue. Fixed
// worker count bounds the CPU spent on schnorr verification under load;
// a full queue is reported to the caller as backpressure rather than
// growing without bound.
type Pool struct {
	jobs    chan *Job
	writer  Submitter
	workers int
	stop    chan struct{}

	limiter *ratelimit.Limiter
	metrics *metrics.Registry
}

// DefaultQueueDepth bounds how many submitted events may be waiting for a
// free verification worker.
const DefaultQueueDepth = 4096

// New starts a Pool of the given worker count, submitting validated
// events to w. limiter and reg may be nil: a nil limiter disables
// per-remote throttling, a nil reg disables counters.
func New(workers int, queueDepth int, w Submitter, limiter *ratelimit.Limiter, reg *metrics.Registry) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	p := &Pool{
		jobs:    make(chan *Job, queueDepth),
		writer:  w,
		workers: workers,
		stop:    make(chan struct{}),
		limiter: limiter,
		metrics: reg,
	}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

// Stop halts every worker goroutine. Queued jobs are discarded.
func (p *Pool) Stop() { close(p.stop) }

// QueueLen reports how many submissions are waiting on a free worker.
func (p *Pool) QueueLen() int { return len(p.jobs) }

// Submit enqueues a job, reporting false if the pool is saturated. The
// caller (the websocket read loop) should pause reading further frames
// from this connection until capacity frees up. A job refused by the rate
// limiter is answered through its Callback and reported as handled (true).
func (p *Pool) Submit(j *Job) bool {
	if p.limiter != nil && !p.limiter.Allow(j.Remote) {
		if p.metrics != nil {
			p.metrics.RateLimited.WithLabelValues("ingest").Inc()
		}
		j.Callback(writer.Outcome{OK: false, Reason: "rate-limited: too many events from this connection"})
		return true
	}
	select {
	case p.jobs <- j:
		if p.metrics != nil {
			p.metrics.QueueDepth.WithLabelValues("ingest").Set(float64(len(p.jobs)))
		}
		return true
	default:
		log.W.F("ingest: queue full, applying backpressure to %s", j.Remote)
		return false
	}
}

func (p *Pool) run() {
	for {
		select {
		case <-p.stop:
			return
		case j := <-p.jobs:
			p.process(j)
		}
	}
}

func (p *Pool) process(j *Job) {
	ev := j.Event
	calculatedID, err := ev.GetIDBytes()
	if err != nil {
		p.reject(j, "invalid: could not compute event id: "+err.Error())
		return
	}
	if !utils.FastEqual(calculatedID, ev.ID) {
		p.reject(j, "invalid: event id does not match its contents")
		return
	}
	ok, err := ev.Verify()
	if err != nil {
		p.reject(j, "error: failed to verify signature: "+err.Error())
		return
	}
	if !ok {
		p.reject(j, "invalid: signature is invalid")
		return
	}
	if !p.writer.Submit(j.Ctx, ev, j.Admins, j.Callback) {
		log.W.F("ingest: writer queue full, rejecting event from %s", j.Remote)
		p.reject(j, "rate-limited: relay is overloaded, try again shortly")
		return
	}
	if p.metrics != nil {
		p.metrics.EventsAccepted.WithLabelValues(kindClass(ev.Kind)).Inc()
	}
}

func (p *Pool) reject(j *Job, reason string) {
	if p.metrics != nil {
		p.metrics.EventsRejected.WithLabelValues(reason).Inc()
	}
	j.Callback(writer.Outcome{OK: false, Reason: reason})
}

// kindClass buckets a kind into the coarse classes reported by
// quadrelay_events_accepted_total, avoiding a cardinality explosion from
// one label value per numeric kind.
func kindClass(kind uint16) string {
	switch {
	case kind == 0 || kind == 3 || (kind >= 10000 && kind < 20000):
		return "replaceable"
	case kind >= 20000 && kind < 30000:
		return "ephemeral"
	case kind >= 30000 && kind < 40000:
		return "parameterized-replaceable"
	default:
		return "regular"
	}
}
