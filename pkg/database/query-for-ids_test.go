package database

import (
	"testing"

	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/encoders/tag"
	"quadrelay.dev/pkg/encoders/timestamp"
)

func TestQueryForIds(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	ev1 := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now()), "first", nil)
	ev2 := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now())+1, "second", nil)
	saveEvent(t, d, ctx, ev1)
	saveEvent(t, d, ctx, ev2)

	idPkTs, err := d.QueryForIds(ctx, &filter.F{Authors: []string{hexPubkey(ev1)}})
	if err != nil {
		t.Fatalf("QueryForIds: %v", err)
	}
	if len(idPkTs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(idPkTs))
	}
	// newest first
	if string(idPkTs[0].Id) != string(ev2.ID) {
		t.Fatalf("expected newest event first")
	}
}

func TestQueryForIdsRejectsIDFilter(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	_, err := d.QueryForIds(ctx, &filter.F{IDs: []string{"00"}})
	if err == nil {
		t.Fatal("expected an error when filtering QueryForIds by IDs")
	}
}

func TestQueryForIdsRespectsLimit(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	for i := 0; i < 5; i++ {
		ev := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now())+int64(i), "note", nil)
		saveEvent(t, d, ctx, ev)
	}
	limit := 2
	idPkTs, err := d.QueryForIds(ctx, &filter.F{Authors: []string{hex.Enc(signer.Pub())}, Limit: &limit})
	if err != nil {
		t.Fatalf("QueryForIds: %v", err)
	}
	if len(idPkTs) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(idPkTs))
	}
}

func TestQueryForIdsByTag(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	tagged := newSignedEvent(
		t, signer, uint16(kind.TextNote), int64(timestamp.Now()), "tagged",
		tag.NewS(tag.New("p", "cafebabe")),
	)
	untagged := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now())+1, "untagged", nil)
	saveEvent(t, d, ctx, tagged)
	saveEvent(t, d, ctx, untagged)

	idPkTs, err := d.QueryForIds(ctx, &filter.F{Tags: tag.NewS(tag.New("#p", "cafebabe"))})
	if err != nil {
		t.Fatalf("QueryForIds: %v", err)
	}
	if len(idPkTs) != 1 || string(idPkTs[0].Id) != string(tagged.ID) {
		t.Fatalf("expected only the tagged event, got %d results", len(idPkTs))
	}
}
