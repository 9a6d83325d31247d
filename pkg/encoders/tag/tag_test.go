package tag

import "testing"

func TestTagAccessors(t *testing.T) {
	tg := New("e", "abc123", "wss://relay.example")
	if tg.Key() != "e" {
		t.Fatalf("Key() = %q, want %q", tg.Key(), "e")
	}
	if tg.Value() != "abc123" {
		t.Fatalf("Value() = %q, want %q", tg.Value(), "abc123")
	}
	if tg.Relay() != "wss://relay.example" {
		t.Fatalf("Relay() = %q, want %q", tg.Relay(), "wss://relay.example")
	}
	if tg.Clone().Key() != tg.Key() {
		t.Fatal("Clone did not preserve contents")
	}
}

func TestTagShortAccessors(t *testing.T) {
	tg := New("p")
	if tg.Value() != "" || tg.Relay() != "" {
		t.Fatal("expected empty fields for short tag")
	}
}
