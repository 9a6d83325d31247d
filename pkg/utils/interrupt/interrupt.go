// Package interrupt runs a set of cleanup handlers exactly once on process
// shutdown, whether triggered by an OS signal or an explicit call to Exit.
// It exists so that startup code (the profiler switch, the daemon's own
// os/signal loop) can register cleanup without owning the signal channel
// itself.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
)

var (
	mx       sync.Mutex
	handlers []func()
	once     sync.Once
	sigCh    chan os.Signal
)

// AddHandler registers fn to run once, in LIFO order, when the process is
// asked to shut down.
func AddHandler(fn func()) {
	mx.Lock()
	defer mx.Unlock()
	handlers = append(handlers, fn)
}

// Listen starts a background goroutine that runs all registered handlers
// the first time one of sigs arrives, then re-raises the signal's default
// behaviour by exiting the process.
func Listen(sigs ...os.Signal) {
	mx.Lock()
	if sigCh != nil {
		mx.Unlock()
		return
	}
	sigCh = make(chan os.Signal, 1)
	mx.Unlock()
	signal.Notify(sigCh, sigs...)
	go func() {
		<-sigCh
		Exit()
	}()
}

// Exit runs every registered handler exactly once, then terminates the
// process.
func Exit() {
	once.Do(runHandlers)
	os.Exit(0)
}

func runHandlers() {
	mx.Lock()
	hs := make([]func(), len(handlers))
	copy(hs, handlers)
	mx.Unlock()
	for i := len(hs) - 1; i >= 0; i-- {
		hs[i]()
	}
}
