package database

import (
	"testing"

	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/encoders/timestamp"
)

func TestQueryEventsBySearchTerms(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	match := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now()), "the quick brown fox", nil)
	noMatch := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now())+1, "something else entirely", nil)
	saveEvent(t, d, ctx, match)
	saveEvent(t, d, ctx, noMatch)

	evs, err := d.QueryEvents(ctx, &filter.F{Search: "quick"})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(evs) != 1 || string(evs[0].ID) != string(match.ID) {
		t.Fatalf("expected 1 matching event, got %d", len(evs))
	}
}

func TestQueryForIdsBySearchRanksByRecencyAndCount(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	older := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now()), "fox", nil)
	newer := newSignedEvent(t, signer, uint16(kind.TextNote), int64(timestamp.Now())+100, "fox", nil)
	saveEvent(t, d, ctx, older)
	saveEvent(t, d, ctx, newer)

	idPkTs, err := d.QueryForIds(ctx, &filter.F{Search: "fox"})
	if err != nil {
		t.Fatalf("QueryForIds: %v", err)
	}
	if len(idPkTs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(idPkTs))
	}
	if string(idPkTs[0].Id) != string(newer.ID) {
		t.Fatalf("expected the more recent match to rank first")
	}
}
