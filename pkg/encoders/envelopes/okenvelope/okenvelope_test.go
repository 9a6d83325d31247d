package okenvelope

import (
	"encoding/json"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	en := NewFrom("deadbeef", false, "duplicate: already have this event")
	b, err := json.Marshal(en)
	if err != nil {
		t.Fatal(err)
	}
	en2 := New()
	if err = json.Unmarshal(b, en2); err != nil {
		t.Fatal(err)
	}
	if en2.OK || en2.EventID != "deadbeef" {
		t.Fatalf("round trip mismatch: %+v", en2)
	}
}
