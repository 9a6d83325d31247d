package countenvelope

import (
	"encoding/json"
	"testing"
)

func TestResponseRoundTrip(t *testing.T) {
	res, err := NewResponseFrom("sub-1", 42, true)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	res2 := NewResponse()
	if err = json.Unmarshal(b, res2); err != nil {
		t.Fatal(err)
	}
	if res2.Count != 42 || !res2.Approximate || res2.Subscription != "sub-1" {
		t.Fatalf("round trip mismatch: %+v", res2)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	req := NewRequest("sub-2", nil)
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	req2 := New()
	if err = json.Unmarshal(b, req2); err != nil {
		t.Fatal(err)
	}
	if req2.Subscription != "sub-2" {
		t.Fatalf("got %q, want %q", req2.Subscription, "sub-2")
	}
}
