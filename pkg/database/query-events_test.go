package database

import (
	"context"
	"os"
	"testing"

	"quadrelay.dev/pkg/crypto/p256k"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/encoders/tag"
	"quadrelay.dev/pkg/encoders/timestamp"
)

// hexID and hexPubkey render an event's binary fields the way filter.F's
// IDs/Authors lists expect them, for use across this package's tests.
func hexID(ev *event.E) string     { return hex.Enc(ev.ID) }
func hexPubkey(ev *event.E) string { return hex.Enc(ev.Pubkey) }

// openTestDB opens a fresh database in a temporary directory and returns a
// cleanup func that removes it.
func openTestDB(t *testing.T) (d *D, ctx context.Context, cleanup func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "quadrelay-test-*")
	if err != nil {
		t.Fatal(err)
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(context.Background())
	d, err = New(ctx, cancel, dir, "error")
	if err != nil {
		t.Fatal(err)
	}
	return d, ctx, func() {
		cancel()
		d.Close()
		os.RemoveAll(dir)
	}
}

// newSigner returns a fresh keypair for signing test events.
func newSigner(t *testing.T) *p256k.Signer {
	t.Helper()
	s := new(p256k.Signer)
	if err := s.Generate(); err != nil {
		t.Fatal(err)
	}
	return s
}

// newSignedEvent builds and signs an event with the given fields, leaving
// Tags empty unless set by the caller afterward.
func newSignedEvent(
	t *testing.T, signer *p256k.Signer, k uint16, createdAt int64,
	content string, tags tag.S,
) *event.E {
	t.Helper()
	ev := event.New()
	ev.Kind = k
	ev.CreatedAt = createdAt
	ev.Content = content
	ev.Tags = tags
	if ev.Tags == nil {
		ev.Tags = tag.NewS()
	}
	if err := ev.Sign(signer); err != nil {
		t.Fatal(err)
	}
	return ev
}

func saveEvent(t *testing.T, d *D, ctx context.Context, ev *event.E) {
	t.Helper()
	if _, _, err := d.SaveEvent(ctx, ev); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}
}

func TestQueryEventsByID(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	ev1 := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now()), "hello", nil)
	ev2 := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now())+1, "world", nil)
	saveEvent(t, d, ctx, ev1)
	saveEvent(t, d, ctx, ev2)

	evs, err := d.QueryEvents(ctx, &filter.F{IDs: []string{hexID(ev1)}})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if string(evs[0].ID) != string(ev1.ID) {
		t.Fatalf("got wrong event back")
	}
}

func TestQueryEventsByKind(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	note := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now()), "a note", nil)
	reaction := newSignedEvent(t, signer, uint16(kind.Reaction), int64(timestamp.Now()), "+", nil)
	saveEvent(t, d, ctx, note)
	saveEvent(t, d, ctx, reaction)

	evs, err := d.QueryEvents(ctx, &filter.F{Kinds: kind.NewS(uint16(kind.TextNote))})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(evs) != 1 || evs[0].Kind != uint16(kind.TextNote) {
		t.Fatalf("expected 1 TextNote event, got %d", len(evs))
	}
}

func TestQueryEventsByAuthor(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	alice := newSigner(t)
	bob := newSigner(t)
	evA := newSignedEvent(t, alice, uint16(kind.TextNote), int64(timestamp.Now()), "from alice", nil)
	evB := newSignedEvent(t, bob, uint16(kind.TextNote), int64(timestamp.Now()), "from bob", nil)
	saveEvent(t, d, ctx, evA)
	saveEvent(t, d, ctx, evB)

	evs, err := d.QueryEvents(ctx, &filter.F{Authors: []string{hexPubkey(evA)}})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(evs) != 1 || string(evs[0].Pubkey) != string(evA.Pubkey) {
		t.Fatalf("expected 1 event from alice, got %d", len(evs))
	}
}

func TestQueryEventsByTag(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	tagged := newSignedEvent(
		t, signer, uint16(kind.TextNote), int64(timestamp.Now()), "tagged",
		tag.NewS(tag.New("e", "deadbeef")),
	)
	untagged := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now()), "untagged", nil)
	saveEvent(t, d, ctx, tagged)
	saveEvent(t, d, ctx, untagged)

	evs, err := d.QueryEvents(ctx, &filter.F{Tags: tag.NewS(tag.New("#e", "deadbeef"))})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(evs) != 1 || string(evs[0].ID) != string(tagged.ID) {
		t.Fatalf("expected 1 tagged event, got %d", len(evs))
	}
}

func TestReplaceableEventsKeepOnlyNewest(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	older := newSignedEvent(t, signer, uint16(kind.ProfileMetadata), 1000, "old profile", nil)
	newer := newSignedEvent(t, signer, uint16(kind.ProfileMetadata), 2000, "new profile", nil)
	saveEvent(t, d, ctx, older)
	saveEvent(t, d, ctx, newer)

	evs, err := d.QueryEvents(ctx, &filter.F{Authors: []string{hexPubkey(older)}, Kinds: kind.NewS(uint16(kind.ProfileMetadata))})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected exactly 1 surviving profile event, got %d", len(evs))
	}
	if string(evs[0].ID) != string(newer.ID) {
		t.Fatalf("expected the newer profile event to survive")
	}
}

func TestDeletionRemovesEventFromQueries(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	target := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now()), "delete me", nil)
	saveEvent(t, d, ctx, target)

	if err := d.DeleteEvent(ctx, target.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}

	evs, err := d.QueryEvents(ctx, &filter.F{IDs: []string{hexID(target)}})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("expected deleted event to be absent, got %d results", len(evs))
	}
}
