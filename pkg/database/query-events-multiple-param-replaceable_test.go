package database

import (
	"testing"

	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/encoders/tag"
	"quadrelay.dev/pkg/encoders/timestamp"
)

func TestMultipleParameterizedReplaceableEvents(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	k := uint16(kind.LongFormContent)

	// two distinct d-tags: each keeps its own newest version independently
	aOld := newSignedEvent(t, signer, k, 1000, "article a v1", tag.NewS(tag.New("d", "article-a")))
	aNew := newSignedEvent(t, signer, k, 2000, "article a v2", tag.NewS(tag.New("d", "article-a")))
	bOld := newSignedEvent(t, signer, k, 1000, "article b v1", tag.NewS(tag.New("d", "article-b")))
	bNew := newSignedEvent(t, signer, k, 2000, "article b v2", tag.NewS(tag.New("d", "article-b")))

	saveEvent(t, d, ctx, aOld)
	saveEvent(t, d, ctx, aNew)
	saveEvent(t, d, ctx, bOld)
	saveEvent(t, d, ctx, bNew)

	evs, err := d.QueryEvents(ctx, &filter.F{Authors: []string{hexPubkey(aOld)}, Kinds: kind.NewS(k)})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 surviving articles (one per d-tag), got %d", len(evs))
	}
	seen := map[string]bool{}
	for _, ev := range evs {
		seen[string(ev.ID)] = true
	}
	if !seen[string(aNew.ID)] || !seen[string(bNew.ID)] {
		t.Fatalf("expected the newest version of each d-tag to survive")
	}
	if seen[string(aOld.ID)] || seen[string(bOld.ID)] {
		t.Fatalf("expected the older versions to have been superseded")
	}
}

func TestParameterizedReplaceableQueryByDTag(t *testing.T) {
	d, ctx, cleanup := openTestDB(t)
	defer cleanup()

	signer := newSigner(t)
	k := uint16(kind.LongFormContent)
	a := newSignedEvent(t, signer, k, int64(timestamp.Now()), "article a", tag.NewS(tag.New("d", "article-a")))
	b := newSignedEvent(t, signer, k, int64(timestamp.Now()), "article b", tag.NewS(tag.New("d", "article-b")))
	saveEvent(t, d, ctx, a)
	saveEvent(t, d, ctx, b)

	evs, err := d.QueryEvents(ctx, &filter.F{Tags: tag.NewS(tag.New("#d", "article-a"))})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(evs) != 1 || string(evs[0].ID) != string(a.ID) {
		t.Fatalf("expected only article-a, got %d results", len(evs))
	}
}
