// Package ratelimit gates connection attempts and per-connection traffic
// with token-bucket limiters, so a single abusive client or a distributed
// burst cannot starve the ingester's queue for everyone else. Two levels
// mirror the shape spec.md's §4.3 backpressure path needs: a global bucket
// protects the process as a whole, a per-remote bucket protects against
// one address flooding.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
	"lol.mleku.dev/log"
)

// Config holds the token-bucket parameters for both levels. Zero values
// fall back to the defaults in New.
type Config struct {
	// GlobalRate and GlobalBurst bound total events/sec across every
	// connection.
	GlobalRate  float64
	GlobalBurst int

	// RemoteRate and RemoteBurst bound events/sec from a single remote
	// address.
	RemoteRate  float64
	RemoteBurst int

	// RemoteTTL is how long a remote's bucket survives without traffic
	// before it is swept, bounding the map's growth under high connection
	// churn.
	RemoteTTL time.Duration
}

const (
	defaultGlobalRate  = 500.0
	defaultGlobalBurst = 1000
	defaultRemoteRate  = 20.0
	defaultRemoteBurst = 40
	defaultRemoteTTL   = 10 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.GlobalRate == 0 {
		c.GlobalRate = defaultGlobalRate
	}
	if c.GlobalBurst == 0 {
		c.GlobalBurst = defaultGlobalBurst
	}
	if c.RemoteRate == 0 {
		c.RemoteRate = defaultRemoteRate
	}
	if c.RemoteBurst == 0 {
		c.RemoteBurst = defaultRemoteBurst
	}
	if c.RemoteTTL == 0 {
		c.RemoteTTL = defaultRemoteTTL
	}
	return c
}

type remoteEntry struct {
	limiter *rate.Limiter
	seenAt  time.Time
}

// Limiter is a two-level rate limiter: one global token bucket shared by
// every caller, and one bucket per remote address, created lazily and
// swept on a timer. A stale remote address is never distinguished from a
// never-seen one; both simply get a fresh bucket on next use.
type Limiter struct {
	cfg Config

	global *rate.Limiter

	mu      sync.Mutex
	remotes map[string]*remoteEntry

	stop chan struct{}
}

// New builds a Limiter from cfg and starts its sweep loop.
func New(cfg Config) *Limiter {
	cfg = cfg.withDefaults()
	l := &Limiter{
		cfg:     cfg,
		global:  rate.NewLimiter(rate.Limit(cfg.GlobalRate), cfg.GlobalBurst),
		remotes: make(map[string]*remoteEntry),
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether an event from remote may proceed: the global
// bucket is checked first so one address cannot exhaust it purely to
// learn whether others are throttled, then the address's own bucket.
func (l *Limiter) Allow(remote string) bool {
	if !l.global.Allow() {
		log.D.C(func() string { return "ratelimit: global bucket exhausted, rejecting " + remote })
		return false
	}
	if !l.remoteLimiter(remote).Allow() {
		log.D.C(func() string { return "ratelimit: remote bucket exhausted for " + remote })
		return false
	}
	return true
}

func (l *Limiter) remoteLimiter(remote string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.remotes[remote]
	if ok {
		entry.seenAt = time.Now()
		return entry.limiter
	}
	entry = &remoteEntry{
		limiter: rate.NewLimiter(rate.Limit(l.cfg.RemoteRate), l.cfg.RemoteBurst),
		seenAt:  time.Now(),
	}
	l.remotes[remote] = entry
	return entry.limiter
}

func (l *Limiter) sweepLoop() {
	t := time.NewTicker(l.cfg.RemoteTTL / 2)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for remote, entry := range l.remotes {
		if now.Sub(entry.seenAt) > l.cfg.RemoteTTL {
			delete(l.remotes, remote)
		}
	}
}

// Stop halts the sweep loop.
func (l *Limiter) Stop() { close(l.stop) }

// Tracked reports how many remote addresses currently hold a bucket, for
// diagnostics.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.remotes)
}
