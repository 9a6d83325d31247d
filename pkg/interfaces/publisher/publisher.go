package publisher

import (
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/interfaces/typer"
)

type I interface {
	typer.T
	// Deliver fans a committed event out to matching live subscriptions.
	// quadID is the event's position in the store's monotonic event
	// sequence (see database.D.NextQuadID), used to gate delivery against
	// a subscription's latestQuadID so the scan-to-live hand-off neither
	// misses nor duplicates an event.
	Deliver(ev *event.E, quadID uint64)
	Receive(msg typer.T)
}

type Publishers []I
