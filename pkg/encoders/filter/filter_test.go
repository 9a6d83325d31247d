package filter

import (
	"encoding/json"
	"testing"

	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/timestamp"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	for range 50 {
		f := GenFilter()
		f.Sort()
		b, err := json.Marshal(f)
		if err != nil {
			t.Fatal(err)
		}
		f2 := New()
		if err = json.Unmarshal(b, f2); err != nil {
			t.Fatalf("unmarshal error: %v\n%s", err, b)
		}
		f2.Sort()
		b2, err := json.Marshal(f2)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != string(b2) {
			t.Fatalf("marshal mismatch:\n%s\n%s", b, b2)
		}
	}
}

func TestMatchesRespectsKindAndAuthor(t *testing.T) {
	ev := event.New()
	ev.Pubkey = make([]byte, 32)
	ev.Pubkey[0] = 0xAB
	ev.Kind = 1
	ev.CreatedAt = 1000

	f := New()
	f.Kinds = append(f.Kinds, 1)
	if !f.Matches(ev) {
		t.Fatal("expected kind-only filter to match")
	}

	f2 := New()
	f2.Kinds = append(f2.Kinds, 2)
	if f2.Matches(ev) {
		t.Fatal("expected mismatched kind filter to reject")
	}
}

func TestMatchesTimeBounds(t *testing.T) {
	ev := event.New()
	ev.CreatedAt = 500
	f := New()
	since := timestamp.T(600)
	f.Since = &since
	if f.Matches(ev) {
		t.Fatal("expected since bound to reject earlier event")
	}
}

func TestFilterGroupIsDisjunction(t *testing.T) {
	ev := event.New()
	ev.Kind = 5
	a := New()
	a.Kinds = append(a.Kinds, 1)
	b := New()
	b.Kinds = append(b.Kinds, 5)
	group := S{a, b}
	if !group.Matches(ev) {
		t.Fatal("expected group to match via second filter")
	}
}
