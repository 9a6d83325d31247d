package closedenvelope

import (
	"encoding/json"
	"testing"

	"quadrelay.dev/pkg/encoders/reason"
)

func TestRoundTrip(t *testing.T) {
	en := NewFrom("sub-1", reason.AuthRequired.F("please authenticate"))
	b, err := json.Marshal(en)
	if err != nil {
		t.Fatal(err)
	}
	en2 := New()
	if err = json.Unmarshal(b, en2); err != nil {
		t.Fatal(err)
	}
	if en2.ID != "sub-1" {
		t.Fatalf("got id %q, want %q", en2.ID, "sub-1")
	}
	if en2.Message != "auth-required: please authenticate" {
		t.Fatalf("got message %q", en2.Message)
	}
}
