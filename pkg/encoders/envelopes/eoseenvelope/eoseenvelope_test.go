package eoseenvelope

import (
	"encoding/json"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	en := NewFrom("sub-1")
	b, err := json.Marshal(en)
	if err != nil {
		t.Fatal(err)
	}
	en2 := New()
	if err = json.Unmarshal(b, en2); err != nil {
		t.Fatal(err)
	}
	if en2.Subscription != "sub-1" {
		t.Fatalf("got %q", en2.Subscription)
	}
}
