// Package writer owns the single goroutine that ever opens a write
// transaction against the event store. Validated events arrive from the
// ingest pool over a channel; the writer batches them by count or by a
// time window, persists each one, and only after a batch's events are
// durably committed does it hand them to the subscription matcher, so a
// client can never observe an event that a crash could still roll back.
package writer

import (
	"context"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/log"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/encoders/reason"
	"quadrelay.dev/pkg/interfaces/publisher"
	"quadrelay.dev/pkg/metrics"
)

// Store is the persistence surface the writer depends on; satisfied by
// *database.D. WriteBatch opens the single transaction a drained batch
// commits through; every other method runs against the transaction it is
// handed so install/replace/delete land atomically with the rest of the
// batch.
type Store interface {
	WriteBatch(fn func(txn *badger.Txn) error) error
	SaveEventTxn(txn *badger.Txn, ev *event.E) (kc, vc int, quadID uint64, err error)
	CheckForDeletedTxn(txn *badger.Txn, ev *event.E, admins [][]byte) error
	ApplyDeletionTxn(txn *badger.Txn, ev *event.E, admins [][]byte) (bool, error)
	// NextQuadID hands out the next position in the store's monotonic
	// event sequence, used to give ephemeral events (which are never
	// stored) a quadID in the same ordering as persisted ones.
	NextQuadID() (uint64, error)
}

// Outcome is reported back to the connection that submitted an event.
type Outcome struct {
	OK     bool
	Reason string
}

// job is one validated event awaiting a decision from the writer.
type job struct {
	ctx      context.Context
	ev       *event.E
	admins   [][]byte
	callback func(Outcome)
}

// Config bounds the writer's batching behaviour.
type Config struct {
	// QueueDepth bounds how many validated events may be waiting for the
	// writer at once; beyond this, Submit reports backpressure.
	QueueDepth int
	// BatchSize is the most events processed before yielding to let the
	// reqmonitor pool drain deliveries for the batch just committed.
	BatchSize int
	// BatchWindow bounds how long the writer waits to fill a batch before
	// processing whatever it has.
	BatchWindow time.Duration
}

// DefaultConfig matches the batching window a single relay process can
// sustain without building up unbounded submit latency.
var DefaultConfig = Config{QueueDepth: 4096, BatchSize: 64, BatchWindow: 50 * time.Millisecond}

// Writer serializes every store write through one goroutine and hands
// committed events to monitor in commit order.
type Writer struct {
	store   Store
	monitor publisher.I
	cfg     Config
	metrics *metrics.Registry

	jobs chan *job
	stop chan struct{}
}

// New starts the writer's goroutine, persisting through store and
// publishing commits through monitor. reg may be nil to disable counters.
func New(store Store, monitor publisher.I, cfg Config, reg *metrics.Registry) *Writer {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig.QueueDepth
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = DefaultConfig.BatchWindow
	}
	w := &Writer{
		store:   store,
		monitor: monitor,
		cfg:     cfg,
		metrics: reg,
		jobs:    make(chan *job, cfg.QueueDepth),
		stop:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Stop halts the writer goroutine. Jobs still queued are discarded.
func (w *Writer) Stop() { close(w.stop) }

// Submit hands a validated event to the writer. It reports false if the
// queue is full, which the caller should treat as backpressure toward the
// submitting connection (stop reading further frames until it eases).
func (w *Writer) Submit(
	ctx context.Context, ev *event.E, admins [][]byte, callback func(Outcome),
) bool {
	select {
	case w.jobs <- &job{ctx: ctx, ev: ev, admins: admins, callback: callback}:
		return true
	default:
		return false
	}
}

// QueueLen reports how many jobs are currently waiting, used by the
// ingest pool to decide when to pause reading from a connection.
func (w *Writer) QueueLen() int { return len(w.jobs) }

func (w *Writer) run() {
	batch := make([]*job, 0, w.cfg.BatchSize)
	timer := time.NewTimer(w.cfg.BatchWindow)
	defer timer.Stop()
	for {
		select {
		case <-w.stop:
			return
		case j := <-w.jobs:
			batch = append(batch, j)
			if len(batch) >= w.cfg.BatchSize {
				w.processBatch(batch)
				batch = batch[:0]
				resetTimer(timer, w.cfg.BatchWindow)
			}
		case <-timer.C:
			if len(batch) > 0 {
				w.processBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(w.cfg.BatchWindow)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// processBatch persists every job in submission order inside one badger
// transaction, so the whole batch's installs — including a replaceable
// event's delete-old paired with its insert-new — commit together. Only
// after that single commit succeeds are jobs delivered to the subscription
// matcher, so a client can never observe an event a crash could still roll
// back.
func (w *Writer) processBatch(batch []*job) {
	outcomes := make([]Outcome, len(batch))
	quadIDs := make([]uint64, len(batch))
	err := w.store.WriteBatch(
		func(txn *badger.Txn) error {
			for i, j := range batch {
				ok, msg, quadID := w.persist(txn, j)
				outcomes[i] = Outcome{OK: ok, Reason: msg}
				quadIDs[i] = quadID
			}
			return nil
		},
	)
	if err != nil {
		log.E.F("writer: batch commit failed: %v", err)
		for i := range outcomes {
			outcomes[i] = Outcome{OK: false, Reason: reason.Error.F("%v", err)}
		}
	}
	committed := make([]*event.E, 0, len(batch))
	committedQuadIDs := make([]uint64, 0, len(batch))
	for i, j := range batch {
		if outcomes[i].OK {
			committed = append(committed, j.ev)
			committedQuadIDs = append(committedQuadIDs, quadIDs[i])
		}
		if j.callback != nil {
			j.callback(outcomes[i])
		}
	}
	if w.metrics != nil {
		if err != nil {
			w.metrics.WriterErrors.Inc()
		} else {
			w.metrics.WriterCommits.Inc()
		}
	}
	for i, ev := range committed {
		w.monitor.Deliver(ev, committedQuadIDs[i])
	}
}

// persist applies one event's write against the batch's shared
// transaction, reporting the quadID the event was assigned (via
// NextQuadID even for ephemeral kinds, which skip the store write) so
// Deliver can gate live subscriptions on it. An already-stored event is
// reported as the duplicate outcome (ok=true), distinct from a
// policy-blocked one (ok=false) — per NIP-01, resubmitting a known event
// is not a rejection.
func (w *Writer) persist(txn *badger.Txn, j *job) (ok bool, msg string, quadID uint64) {
	ev := j.ev
	if kind.IsEphemeral(ev.Kind) {
		var err error
		if quadID, err = w.store.NextQuadID(); err != nil {
			log.E.F("writer: NextQuadID for ephemeral %0x: %v", ev.ID, err)
		}
		return true, "", quadID
	}
	if ev.Kind == uint16(kind.EventDeletion) {
		valid, err := w.store.ApplyDeletionTxn(txn, ev, j.admins)
		if err != nil {
			log.E.F("writer: ApplyDeletion for %0x: %v", ev.ID, err)
		}
		if !valid {
			return false, reason.Blocked.F("cannot delete events that belong to other users"), 0
		}
	} else if err := w.store.CheckForDeletedTxn(txn, ev, j.admins); err != nil {
		return false, stripBlocked(err.Error()), 0
	}
	_, _, quadID, err := w.store.SaveEventTxn(txn, ev)
	if err != nil {
		if isDuplicate(err) {
			return true, reason.Duplicate.F("event already stored: %0x", ev.ID), 0
		}
		return false, stripBlocked(err.Error()), 0
	}
	return true, "", quadID
}

func stripBlocked(s string) string {
	const prefix = "blocked: "
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

func isDuplicate(err error) bool {
	return strings.HasPrefix(err.Error(), "duplicate: ")
}
