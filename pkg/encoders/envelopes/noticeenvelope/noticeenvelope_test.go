package noticeenvelope

import (
	"encoding/json"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	en := NewFrom("malformed request")
	b, err := json.Marshal(en)
	if err != nil {
		t.Fatal(err)
	}
	en2 := New()
	if err = json.Unmarshal(b, en2); err != nil {
		t.Fatal(err)
	}
	if en2.Message != "malformed request" {
		t.Fatalf("got %q", en2.Message)
	}
}
