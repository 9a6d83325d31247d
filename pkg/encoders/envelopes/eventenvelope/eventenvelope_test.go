package eventenvelope

import (
	"crypto/rand"
	"encoding/json"
	"testing"

	"quadrelay.dev/pkg/encoders/event"
)

func sampleEvent() *event.E {
	ev := event.New()
	ev.ID = make([]byte, 32)
	ev.Pubkey = make([]byte, 32)
	_, _ = rand.Read(ev.ID)
	_, _ = rand.Read(ev.Pubkey)
	ev.Sig = make([]byte, 64)
	_, _ = rand.Read(ev.Sig)
	ev.CreatedAt = 1700000000
	ev.Kind = 1
	ev.Content = "hello"
	return ev
}

func TestSubmissionRoundTrip(t *testing.T) {
	ev := sampleEvent()
	en := NewSubmissionWith(ev)
	b, err := json.Marshal(en)
	if err != nil {
		t.Fatal(err)
	}
	en2 := NewSubmission()
	if err = json.Unmarshal(b, en2); err != nil {
		t.Fatal(err)
	}
	if string(en2.Event.ID) != string(ev.ID) {
		t.Fatal("round trip lost event id")
	}
}

func TestResultRoundTrip(t *testing.T) {
	ev := sampleEvent()
	en, err := NewResultWith("sub-1", ev)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(en)
	if err != nil {
		t.Fatal(err)
	}
	en2 := NewResult()
	if err = json.Unmarshal(b, en2); err != nil {
		t.Fatal(err)
	}
	if en2.Subscription != "sub-1" {
		t.Fatalf("got %q, want %q", en2.Subscription, "sub-1")
	}
}

func TestResultRejectsBadSubscription(t *testing.T) {
	if _, err := NewResultWith("", sampleEvent()); err == nil {
		t.Fatal("expected error for empty subscription id")
	}
}
