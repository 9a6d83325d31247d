package closeenvelope

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
	if en2.ID != en.ID {
		t.Fatalf("got %q, want %q", en2.ID, en.ID)
	}
}
